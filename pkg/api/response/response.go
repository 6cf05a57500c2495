package response

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// RateLimitedResponse tells the client how long until it may retry,
// e.g. "45s" or "3min".
type RateLimitedResponse struct {
	ErrorResponse
	RetryIn string `json:"retry_in"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorResponse{Status: "error", Error: msg})
}

func TooManyRequests(w http.ResponseWriter, retryIn string) {
	JSON(w, http.StatusTooManyRequests, RateLimitedResponse{
		ErrorResponse: ErrorResponse{Status: "error", Error: "too many requests"},
		RetryIn:       retryIn,
	})
}
