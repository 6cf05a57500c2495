package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/api/middleware"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/repository"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

type messageService interface {
	ValidateSend(senderID, recipientID, content string) error
	Send(ctx context.Context, senderID, recipientID, content string) (*repository.DirectMessage, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]repository.DirectMessage, error)
}

type MessageHandler struct {
	messages messageService
	throttle *middleware.ActionThrottle
}

func NewMessageHandler(messages messageService, throttle *middleware.ActionThrottle) *MessageHandler {
	return &MessageHandler{messages: messages, throttle: throttle}
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

type messageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

func toMessageResponse(m repository.DirectMessage) messageResponse {
	return messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

// Send stores a direct message. Only valid messages count against the
// sender's quota.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	if mapServiceError(w, h.messages.ValidateSend(userID, req.RecipientID, req.Content)) {
		return
	}
	if _, ok := h.throttle.Admit(w, r); !ok {
		return
	}

	m, err := h.messages.Send(ctx, userID, req.RecipientID, req.Content)
	if mapServiceError(w, err) {
		return
	}

	w.Header().Set("Location", "/api/v1/messages/"+m.ID)
	response.JSON(w, http.StatusCreated, map[string]any{"status": "ok", "message": toMessageResponse(*m)})
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request")
		return
	}

	items, err := h.messages.ListForUser(ctx, userID, limit)
	if mapServiceError(w, err) {
		return
	}

	resp := make([]messageResponse, 0, len(items))
	for _, m := range items {
		resp = append(resp, toMessageResponse(m))
	}
	response.JSON(w, http.StatusOK, map[string]any{"messages": resp})
}
