package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/repository"
)

const (
	MaxMessageRunes     = 2000
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

type messageStore interface {
	Create(ctx context.Context, m *repository.DirectMessage) error
	ListForUser(ctx context.Context, userID string, limit int) ([]repository.DirectMessage, error)
}

type MessageMetrics interface {
	IncMessageSent()
}

type MessageService struct {
	messages messageStore
	metrics  MessageMetrics
	now      func() time.Time
}

func NewMessageService(messages messageStore, metrics MessageMetrics) *MessageService {
	return &MessageService{messages: messages, metrics: metrics, now: time.Now}
}

// ValidateSend reports whether Send would accept the input, without
// storing anything.
func (s *MessageService) ValidateSend(senderID, recipientID, content string) error {
	_, _, err := normalizeMessage(senderID, recipientID, content)
	return err
}

func (s *MessageService) Send(ctx context.Context, senderID, recipientID, content string) (*repository.DirectMessage, error) {
	recipientID, content, err := normalizeMessage(senderID, recipientID, content)
	if err != nil {
		return nil, err
	}

	m := &repository.DirectMessage{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncMessageSent()
	}
	return m, nil
}

// ListForUser clamps limit to [1, MaxMessageLimit]; zero or negative means the default.
func (s *MessageService) ListForUser(ctx context.Context, userID string, limit int) ([]repository.DirectMessage, error) {
	switch {
	case limit <= 0:
		limit = DefaultMessageLimit
	case limit > MaxMessageLimit:
		limit = MaxMessageLimit
	}
	items, err := s.messages.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if items == nil {
		items = []repository.DirectMessage{}
	}
	return items, nil
}

func normalizeMessage(senderID, recipientID, content string) (string, string, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > MaxMessageRunes {
		return "", "", fmt.Errorf("%w: content must be 1..%d characters", ErrBadRequest, MaxMessageRunes)
	}
	id, err := uuid.Parse(strings.TrimSpace(recipientID))
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid recipient_id", ErrBadRequest)
	}
	recipientID = id.String()
	if recipientID == senderID {
		return "", "", fmt.Errorf("%w: cannot message yourself", ErrBadRequest)
	}
	return recipientID, content, nil
}
