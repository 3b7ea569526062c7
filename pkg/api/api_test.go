package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/bus"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/ratelimit"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/security"
	"chatrelay/pkg/store"
)

const (
	testJWTSecret  = "api-test-secret"
	testAdminEmail = "support@example.com"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	dir, err := os.MkdirTemp("", "chatrelay-api-test")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := store.Open(dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	security.SetSecret("api-test-encryption")
	code := m.Run()
	security.SetSecret("")
	_ = store.Close()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := relay.New(bus.New(), nil, nil)
	gw := auth.GatewayConfig{JWTSecret: testJWTSecret, AdminEmail: testAdminEmail}
	lim := ratelimit.New(ratelimit.NewMemoryStore(), time.Minute, map[ratelimit.Class]int{
		ratelimit.ClassChat:  1000,
		ratelimit.ClassAdmin: 1000,
	})
	srv := httptest.NewServer(auth.Middleware(gw, lim)(Handler(svc)))
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, userID, email string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testJWTSecret, userID, email, time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, method, url, bearer string, payload interface{}) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]interface{} {
	t.Helper()
	defer res.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newTestServer(t)

	res, err := http.Get(srv.URL + "/v1/chat/history")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestClientSendAndHistoryFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, "api-alice", "alice@example.com")

	res := doJSON(t, "POST", srv.URL+"/v1/chat/send", alice, map[string]interface{}{
		"body": "hello from the api",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	sent := decodeBody(t, res)
	require.NotEmpty(t, sent["thread_id"])
	msg := sent["message"].(map[string]interface{})
	require.Equal(t, "hello from the api", msg["body"], "sender gets the plaintext echo")

	res = doJSON(t, "GET", srv.URL+"/v1/chat/history", alice, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	hist := decodeBody(t, res)
	msgs := hist["messages"].([]interface{})
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1].(map[string]interface{})
	require.Equal(t, "hello from the api", last["body"])
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, "api-alice2", "alice2@example.com")
	admin := token(t, "api-admin", testAdminEmail)

	res := doJSON(t, "GET", srv.URL+"/v1/admin/clients", alice, nil)
	res.Body.Close()
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res = doJSON(t, "GET", srv.URL+"/v1/admin/clients", admin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeBody(t, res)
	_, ok := out["clients"]
	require.True(t, ok)
}

func TestAdminChatMirror(t *testing.T) {
	srv := newTestServer(t)
	admin := token(t, "api-admin", testAdminEmail)
	carol := token(t, "api-carol", "carol@example.com")

	res := doJSON(t, "POST", srv.URL+"/v1/admin/chat/send", admin, map[string]interface{}{
		"user_id": "api-carol",
		"body":    "welcome aboard",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res.Body.Close()

	res = doJSON(t, "GET", srv.URL+"/v1/chat/history", carol, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	hist := decodeBody(t, res)
	msgs := hist["messages"].([]interface{})
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1].(map[string]interface{})
	require.Equal(t, "welcome aboard", last["body"])
	require.Equal(t, "admin", last["sender_role"])

	// history without a target is a validation error for the admin
	res = doJSON(t, "GET", srv.URL+"/v1/admin/chat/history", admin, nil)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doJSON(t, "GET", srv.URL+"/v1/admin/chat/history?user_id=api-carol", admin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res.Body.Close()
}

func TestErrorTaxonomyMapping(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, "api-alice3", "alice3@example.com")
	admin := token(t, "api-admin", testAdminEmail)

	// 400: empty body
	res := doJSON(t, "POST", srv.URL+"/v1/chat/send", alice, map[string]interface{}{"body": ""})
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	// 404: admin history for an unknown client
	res = doJSON(t, "GET", srv.URL+"/v1/admin/chat/history?user_id=ghost", admin, nil)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	// 409: edit after delete
	res = doJSON(t, "POST", srv.URL+"/v1/chat/send", alice, map[string]interface{}{"body": "temp"})
	sent := decodeBody(t, res)
	msgID := sent["message"].(map[string]interface{})["id"].(string)
	res = doJSON(t, "POST", srv.URL+"/v1/chat/delete", alice, map[string]interface{}{"message_id": msgID})
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	res = doJSON(t, "POST", srv.URL+"/v1/chat/edit", alice, map[string]interface{}{"message_id": msgID, "body": "again"})
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)

	// 403: editing someone else's message
	res = doJSON(t, "POST", srv.URL+"/v1/admin/chat/send", admin, map[string]interface{}{"user_id": "api-alice3", "body": "from admin"})
	sent = decodeBody(t, res)
	adminMsgID := sent["message"].(map[string]interface{})["id"].(string)
	res = doJSON(t, "POST", srv.URL+"/v1/chat/edit", alice, map[string]interface{}{"message_id": adminMsgID, "body": "takeover"})
	res.Body.Close()
	require.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestMarkReadByThreadID(t *testing.T) {
	srv := newTestServer(t)
	admin := token(t, "api-admin", testAdminEmail)
	fred := token(t, "api-fred", "fred@example.com")

	res := doJSON(t, "POST", srv.URL+"/v1/chat/send", fred, map[string]interface{}{"body": "unread ping"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	sent := decodeBody(t, res)
	threadID := sent["thread_id"].(string)

	res = doJSON(t, "POST", srv.URL+"/v1/admin/chat/read", admin, map[string]interface{}{"thread_id": threadID})
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeBody(t, res)
	require.Equal(t, float64(1), out["updated"])
}

func TestPresenceEndpoints(t *testing.T) {
	srv := newTestServer(t)
	dave := token(t, "api-dave", "dave@example.com")

	res := doJSON(t, "POST", srv.URL+"/v1/presence/heartbeat", dave, nil)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	th, err := store.GetThreadByClient("api-dave")
	require.NoError(t, err)
	require.True(t, th.Online)

	res = doJSON(t, "POST", srv.URL+"/v1/presence/offline", dave, nil)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	th, err = store.GetThread(th.ID)
	require.NoError(t, err)
	require.False(t, th.Online)
}

func TestBroadcastEndpoint(t *testing.T) {
	srv := newTestServer(t)
	admin := token(t, "api-admin", testAdminEmail)
	erin := token(t, "api-erin", "erin@example.com")

	// seed a thread
	res := doJSON(t, "POST", srv.URL+"/v1/chat/send", erin, map[string]interface{}{"body": "hi"})
	res.Body.Close()

	res = doJSON(t, "POST", srv.URL+"/v1/admin/broadcast", admin, map[string]interface{}{
		"content": "scheduled maintenance",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeBody(t, res)
	require.GreaterOrEqual(t, out["sent"].(float64), float64(1))
	require.Equal(t, out["sent"], out["total_threads"])

	res = doJSON(t, "GET", srv.URL+"/v1/chat/history", erin, nil)
	hist := decodeBody(t, res)
	msgs := hist["messages"].([]interface{})
	last := msgs[len(msgs)-1].(map[string]interface{})
	require.Equal(t, relay.BroadcastPrefix+"scheduled maintenance", last["body"])
}
