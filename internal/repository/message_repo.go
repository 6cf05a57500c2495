package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type DirectMessage struct {
	ID          string    `db:"id"`
	SenderID    string    `db:"sender_id"`
	RecipientID string    `db:"recipient_id"`
	Content     string    `db:"content"`
	CreatedAt   time.Time `db:"created_at"`
}

type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *DirectMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO direct_messages (id, sender_id, recipient_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.RecipientID, m.Content, m.CreatedAt,
	)
	return err
}

// ListForUser returns messages sent or received by userID, newest first.
func (r *MessageRepository) ListForUser(ctx context.Context, userID string, limit int) ([]DirectMessage, error) {
	var items []DirectMessage
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, sender_id, recipient_id, content, created_at
		FROM direct_messages
		WHERE sender_id = ? OR recipient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}
