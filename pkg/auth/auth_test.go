package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/ratelimit"
)

const testSecret = "gateway-test-secret"

func init() { logger.Init("error") }

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateToken(testSecret, "user-1", "u@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := VerifyToken(testSecret, tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "u@example.com", claims.Email)
}

func TestTokenRejections(t *testing.T) {
	tok, err := GenerateToken(testSecret, "user-1", "u@example.com", time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken("wrong-secret", tok)
	require.Error(t, err)

	expired, err := GenerateToken(testSecret, "user-1", "u@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = VerifyToken(testSecret, expired)
	require.Error(t, err)

	_, err = VerifyToken(testSecret, "not.a.token")
	require.Error(t, err)
}

func TestResolveRole(t *testing.T) {
	require.Equal(t, models.RoleAdmin, ResolveRole("Support@Example.com", "support@example.com"))
	require.Equal(t, models.RoleClient, ResolveRole("user@example.com", "support@example.com"))
	require.Equal(t, models.RoleClient, ResolveRole("", "support@example.com"))
	// no admin configured means nobody is admin
	require.Equal(t, models.RoleClient, ResolveRole("support@example.com", ""))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	require.Equal(t, "", BearerToken(r))
	r.Header.Set("Authorization", "Bearer abc123")
	require.Equal(t, "abc123", BearerToken(r))
	r.Header.Set("Authorization", "bearer abc123")
	require.Equal(t, "abc123", BearerToken(r))
	r.Header.Set("Authorization", "Basic abc123")
	require.Equal(t, "", BearerToken(r))
}

func testGateway(t *testing.T) http.Handler {
	t.Helper()
	cfg := GatewayConfig{
		JWTSecret:      testSecret,
		AdminEmail:     "support@example.com",
		AllowedOrigins: []string{"https://app.example.com"},
	}
	lim := ratelimit.New(ratelimit.NewMemoryStore(), time.Minute, nil)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Header().Set("X-Resolved-Role", string(ident.Role))
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(cfg, lim)(inner)
}

func TestGatewayRejectsMissingAndBadTokens(t *testing.T) {
	h := testGateway(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/chat/history", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/v1/chat/history", nil)
	r.Header.Set("Authorization", "Bearer forged.token.value")
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotContains(t, rec.Body.String(), "details", "auth failures carry no details")
}

func TestGatewayResolvesRoles(t *testing.T) {
	h := testGateway(t)

	adminTok, err := GenerateToken(testSecret, "admin-1", "support@example.com", time.Hour)
	require.NoError(t, err)
	clientTok, err := GenerateToken(testSecret, "alice", "alice@example.com", time.Hour)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/v1/chat/history", nil)
	r.Header.Set("Authorization", "Bearer "+adminTok)
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "admin", rec.Header().Get("X-Resolved-Role"))

	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/v1/chat/history", nil)
	r.Header.Set("Authorization", "Bearer "+clientTok)
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "client", rec.Header().Get("X-Resolved-Role"))
}

func TestGatewayOpenPaths(t *testing.T) {
	h := testGateway(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusTeapot, rec.Code, "health probes bypass auth (no identity set)")
}

func TestGatewayCORS(t *testing.T) {
	h := testGateway(t)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("OPTIONS", "/v1/chat/send", nil)
	r.Header.Set("Origin", "https://app.example.com")
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// disallowed origins are never echoed
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("OPTIONS", "/v1/chat/send", nil)
	r.Header.Set("Origin", "https://evil.example.net")
	h.ServeHTTP(rec, r)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGatewayRateLimitsWithRetryAfter(t *testing.T) {
	cfg := GatewayConfig{JWTSecret: testSecret, AdminEmail: "support@example.com"}
	lim := ratelimit.New(ratelimit.NewMemoryStore(), time.Minute, map[ratelimit.Class]int{ratelimit.ClassChat: 2})
	h := Middleware(cfg, lim)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tok, err := GenerateToken(testSecret, "limited", "l@example.com", time.Hour)
	require.NoError(t, err)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		rec = httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/v1/chat/send", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		h.ServeHTTP(rec, r)
	}
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRequireAdmin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireAdmin(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/admin/clients", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/v1/admin/clients", nil)
	r = r.WithContext(WithIdentity(r.Context(), Identity{ID: "alice", Role: models.RoleClient}))
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/v1/admin/clients", nil)
	r = r.WithContext(WithIdentity(r.Context(), Identity{ID: "admin", Role: models.RoleAdmin}))
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClassifyPath(t *testing.T) {
	require.Equal(t, ratelimit.ClassAdmin, ClassifyPath("/v1/admin/broadcast"))
	require.Equal(t, ratelimit.ClassAuth, ClassifyPath("/v1/auth/login"))
	require.Equal(t, ratelimit.ClassChat, ClassifyPath("/v1/chat/send"))
	require.Equal(t, ratelimit.ClassChat, ClassifyPath("/v1/presence/heartbeat"))
	require.Equal(t, ratelimit.ClassChat, ClassifyPath("/v1/attachments/upload-url"))
	require.Equal(t, ratelimit.ClassWebhook, ClassifyPath("/v1/webhooks/smtp"))
	require.Equal(t, ratelimit.ClassPublic, ClassifyPath("/healthz"))
}
