package auth

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

const TokenTypeAccess = "access"

// MaxSubjectLen bounds user ids to the width of the id columns.
const MaxSubjectLen = 64

// Claims is the access token layout of the external auth service. The
// subject is the opaque user id.
type Claims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens; it never issues them.
type Verifier struct {
	cfg config.JWTConfig
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &Verifier{cfg: cfg}, nil
}

// UserID returns the subject of a valid access token.
func (v *Verifier) UserID(tokenString string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}

	tok, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(v.cfg.Secret), nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.Type != "" && claims.Type != TokenTypeAccess {
		return "", ErrInvalidToken
	}
	if v.cfg.Issuer != "" && claims.Issuer != v.cfg.Issuer {
		return "", ErrInvalidToken
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" || utf8.RuneCountInString(sub) > MaxSubjectLen {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
