package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(v *Verifier) http.Handler {
	return v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-User", claims.Email)
		w.WriteHeader(http.StatusNoContent)
	}))
}

func call(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("s3cret", "admin")
	good, err := v.Issue("ops@example.com", time.Hour)
	require.NoError(t, err)

	expired, err := v.Issue("ops@example.com", -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewVerifier("other", "admin").Issue("ops@example.com", time.Hour)
	require.NoError(t, err)

	editor, err := NewVerifier("s3cret", "editor").Issue("ed@example.com", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid admin token", "Bearer " + good, http.StatusNoContent},
		{"scheme is case-insensitive", "bearer " + good, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong signing key", "Bearer " + otherKey, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"wrong role", "Bearer " + editor, http.StatusForbidden},
	}
	h := protected(v)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := call(h, tt.header)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want != http.StatusNoContent {
				assert.Contains(t, rr.Body.String(), `"error"`)
			}
		})
	}

	rr := call(h, "Bearer "+good)
	assert.Equal(t, "ops@example.com", rr.Header().Get("X-User"))
}

func TestParse_RejectsNoneAlgorithm(t *testing.T) {
	v := NewVerifier("s3cret", "admin")
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
