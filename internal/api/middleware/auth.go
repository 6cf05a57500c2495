package middleware

import (
	"context"
	"net/http"

	authinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/auth"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

type ctxKey string

const ctxUserID ctxKey = "user_id"

type tokenVerifier interface {
	UserID(token string) (string, error)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxUserID).(string)
	return id, ok && id != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

func AuthMiddleware(verifier tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := authinfra.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			userID, err := verifier.UserID(token)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
