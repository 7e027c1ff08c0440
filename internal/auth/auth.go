// Package auth gates the back-office endpoints of the display daemon. Tokens
// are issued by the POS back office; the display only verifies them.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/ajeen-pos/customer-display/internal/common"
)

type contextKey struct{}

// Claims carries the verified identity attached to a request.
type Claims struct {
	Subject string
	IsAdmin bool
}

// FromContext returns the claims attached by the middleware.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(Claims)
	return c, ok
}

// Verifier parses and validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a verifier around the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse verifies the token signature and expiry and extracts the claims.
func (v *Verifier) Parse(raw string) (Claims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		return Claims{}, err
	}
	claims := Claims{Subject: tok.Subject()}
	if isAdmin, ok := tok.Get("is_admin"); ok {
		claims.IsAdmin, _ = isAdmin.(bool)
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid admin token.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractToken(r)
		if raw == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		claims, err := v.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		if !claims.IsAdmin {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
	})
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
