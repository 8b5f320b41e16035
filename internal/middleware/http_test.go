package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ximoveis/internal/auth"
	"ximoveis/internal/models"
	"ximoveis/internal/rate"
)

type fakeAuth map[string]auth.Identity

func (f fakeAuth) Authenticate(raw string) (auth.Identity, error) {
	id, ok := f[raw]
	if !ok {
		return auth.Identity{}, errors.New("bad token")
	}
	return id, nil
}

var tokens = fakeAuth{
	"admin":  {UserID: 1, Role: models.RoleAdmin},
	"broker": {UserID: 2, Role: models.RoleBroker},
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := Identity(r.Context()); ok {
			w.Header().Set("X-User", string(id.Role))
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func do(h http.Handler, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestClientIPTrustProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.5")

	if got := ClientIP(r, false); got != "10.0.0.5" {
		t.Fatalf("unexpected direct IP: %s", got)
	}
	if got := ClientIP(r, true); got != "1.2.3.4" {
		t.Fatalf("unexpected proxied IP: %s", got)
	}
}

func TestAuthn(t *testing.T) {
	h := Authn(tokens)(echoIdentity())
	assert.Equal(t, http.StatusUnauthorized, do(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, "forged").Code)
	w := do(h, "broker")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "BROKER", w.Header().Get("X-User"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic broker")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthn(t *testing.T) {
	h := OptionalAuthn(tokens)(echoIdentity())
	w := do(h, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-User"))
	w = do(h, "forged")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-User"))
	assert.Equal(t, "ADMIN", do(h, "admin").Header().Get("X-User"))
}

func TestRequireRole(t *testing.T) {
	h := Authn(tokens)(AdminOnly(echoIdentity()))
	assert.Equal(t, http.StatusForbidden, do(h, "broker").Code)
	assert.Equal(t, http.StatusNoContent, do(h, "admin").Code)

	h = RequireRole(models.RoleBroker, models.RoleAgency)(echoIdentity())
	assert.Equal(t, http.StatusUnauthorized, do(h, "broker").Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(rate.NewLimiter(), "login", 2, time.Minute, false)(echoIdentity())
	assert.Equal(t, http.StatusNoContent, do(h, "").Code)
	assert.Equal(t, http.StatusNoContent, do(h, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, "").Code)
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := RequestIDMiddleware(RequestLogger(logger, false)(echoIdentity()))
	w := do(h, "")
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
	require.Len(t, hook.Entries, 1)
	e := hook.LastEntry()
	assert.Equal(t, http.StatusNoContent, e.Data["status"])
	assert.Equal(t, w.Header().Get("X-Request-ID"), e.Data["request_id"])
}
