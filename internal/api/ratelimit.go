package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/api/middleware"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

// RateLimitHandler consumes one unit of an action's quota for the caller,
// for actions whose side effect happens outside this service.
type RateLimitHandler struct {
	actions map[string]http.Handler
}

type consumeResponse struct {
	Status    string    `json:"status"`
	Action    string    `json:"action"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// NewRateLimitHandler wraps consume in the throttle of every configured action.
func NewRateLimitHandler(throttles map[string]*middleware.ActionThrottle) *RateLimitHandler {
	h := &RateLimitHandler{actions: make(map[string]http.Handler, len(throttles))}
	for action, th := range throttles {
		h.actions[action] = th.Middleware(http.HandlerFunc(consume))
	}
	return h
}

func (h *RateLimitHandler) Consume(w http.ResponseWriter, r *http.Request) {
	next, ok := h.actions[chi.URLParam(r, "action")]
	if !ok {
		response.Error(w, http.StatusNotFound, "unknown action")
		return
	}
	next.ServeHTTP(w, r)
}

func consume(w http.ResponseWriter, r *http.Request) {
	dec, ok := middleware.DecisionFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	response.JSON(w, http.StatusOK, consumeResponse{
		Status:    "ok",
		Action:    chi.URLParam(r, "action"),
		Remaining: dec.Remaining,
		ResetAt:   dec.ResetAt.UTC(),
	})
}
