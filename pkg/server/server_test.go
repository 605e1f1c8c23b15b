package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/retail-ai-inc/savegame/pkg/identity"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/retail-ai-inc/savegame/pkg/store/memory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.Out = io.Discard
	svc := savegame.NewService(memory.NewStore(), log)
	return NewServer(log, ServerConfig{EnableRequestLogging: true}, &Handlers{
		Service:  svc,
		Resolver: identity.HeaderResolver{},
		Logger:   log,
	})
}

func do(t *testing.T, srv *Server, method, path, owner, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		r.Header.Set(identity.DefaultHeader, owner)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	var got map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	}
	return w, got
}

func TestSaveThenLoadScenario(t *testing.T) {
	srv := newTestServer(t)

	w, got := do(t, srv, http.MethodPost, SaveSavePath, "u1", `{"saveData":{"level":3}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"code": float64(0), "msg": "ok"}, got)

	_, got = do(t, srv, http.MethodPost, LoadSavePath, "u1", "")
	assert.Equal(t, float64(0), got["code"])
	assert.Equal(t, map[string]any{"level": float64(3)}, got["saveData"])
	require.Contains(t, got, "updatedAt")
	_, err := time.Parse(time.RFC3339Nano, got["updatedAt"].(string))
	assert.NoError(t, err)
	assert.NotContains(t, got, "msg")

	_, got = do(t, srv, http.MethodPost, SaveSavePath, "u1", `{"saveData":{"level":5}}`)
	assert.Equal(t, map[string]any{"code": float64(0), "msg": "ok"}, got)

	_, got = do(t, srv, http.MethodGet, LoadSavePath, "u1", "")
	assert.Equal(t, map[string]any{"level": float64(5)}, got["saveData"])
}

func TestLoadNeverSaved(t *testing.T) {
	srv := newTestServer(t)

	w, _ := do(t, srv, http.MethodPost, LoadSavePath, "never-saved-user", "")
	assert.JSONEq(t, `{"code":0,"saveData":null,"msg":"no save found"}`, w.Body.String())
}

func TestFailureEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		owner string
		body  string
		want  string
	}{
		{"load without identity", LoadSavePath, "", "", "no identity"},
		{"save without identity", SaveSavePath, "", `{"saveData":{"level":3}}`, "no identity"},
		{"save without identity and bad body", SaveSavePath, "", `{{{`, "no identity"},
		{"save with bad body", SaveSavePath, "u1", `{{{`, "invalid data"},
		{"save with empty body", SaveSavePath, "u1", ``, "invalid data"},
		{"save without saveData", SaveSavePath, "u1", `{}`, "invalid data"},
		{"save with null saveData", SaveSavePath, "u1", `{"saveData":null}`, "invalid data"},
		{"save with string saveData", SaveSavePath, "u1", `{"saveData":"not-an-object"}`, "invalid data"},
		{"save with array saveData", SaveSavePath, "u1", `{"saveData":[1,2]}`, "invalid data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			w, got := do(t, srv, http.MethodPost, tt.path, tt.owner, tt.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, float64(-1), got["code"])
			assert.Equal(t, tt.want, got["msg"])
		})
	}
}

func TestWrongMethodReturnsEnvelope(t *testing.T) {
	srv := newTestServer(t)
	for _, tt := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, SaveSavePath},
		{http.MethodPut, SaveSavePath},
		{http.MethodDelete, LoadSavePath},
	} {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w, got := do(t, srv, tt.method, tt.path, "u1", "")
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, float64(-1), got["code"])
			assert.Equal(t, "method not allowed", got["msg"])
		})
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	w, _ := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, LoadSavePath, "u1", "")

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "savegame_operations_total")
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
