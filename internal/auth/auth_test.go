package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/ajeen-pos/customer-display/internal/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject string, isAdmin bool, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject(subject).
		Expiration(exp).
		Claim("is_admin", isAdmin).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func TestParseValidToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	claims, err := v.Parse(signToken(t, "manager-1", true, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, "manager-1", claims.Subject)
	require.True(t, claims.IsAdmin)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	_, err := v.Parse(signToken(t, "manager-1", true, time.Now().Add(-time.Hour)))
	require.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	v := auth.NewVerifier("other-secret")
	_, err := v.Parse(signToken(t, "manager-1", true, time.Now().Add(time.Hour)))
	require.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	var gotClaims auth.Claims
	handler := v.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"non-admin", "Bearer " + signToken(t, "cashier-1", false, time.Now().Add(time.Hour)), http.StatusForbidden},
		{"admin", "Bearer " + signToken(t, "manager-1", true, time.Now().Add(time.Hour)), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/backoffice/locations", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
	require.Equal(t, "manager-1", gotClaims.Subject)
}
