package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/guardlens/internal/config"
	"github.com/mbd888/guardlens/internal/sessions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "development",
		LogLevel:       "error",
		LogFormat:      "text",
		RateLimitRPM:   6000,
		RateLimitBurst: 1000,
		SimSeed:        7,
	}
}

// newTestServer creates a server with an in-memory store
func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	s, err := New(cfg, WithStore(sessions.NewMemoryStore()), WithDrainDelay(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := serve(s, "GET", path)
		require.Equal(t, http.StatusOK, w.Code, path)
		resp := decode(t, w)
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, Version, resp["version"])
		assert.Len(t, resp["checks"], 1)
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, serve(s, "GET", "/health/live").Code)
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusServiceUnavailable, serve(s, "GET", "/health/ready").Code,
		"not ready before Start")

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, http.StatusOK, serve(s, "GET", "/health/ready").Code)
}

func TestInfoEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, "GET", "/api")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, ProductName, resp["name"])
	assert.Equal(t, Version, resp["version"])
	assert.Equal(t, float64(6), resp["pages"])
	assert.Equal(t, float64(0), resp["mounted"])
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	expected := []string{
		"GET:/",
		"GET:/agents",
		"GET:/detection",
		"GET:/analytics",
		"GET:/privacy",
		"GET:/models",
		"GET:/ws",
		"GET:/metrics",
		"GET:/v1/pages",
		"POST:/v1/pages/:slug/mount",
		"POST:/v1/monitoring/:action",
		"GET:/v1/sessions",
		"GET:/v1/sessions/:id",
	}

	routeSet := make(map[string]bool)
	for _, route := range s.router.Routes() {
		routeSet[route.Method+":"+route.Path] = true
	}
	for _, e := range expected {
		assert.True(t, routeSet[e], "route %s not registered", e)
	}
}

func TestRedirects(t *testing.T) {
	s := newTestServer(t)

	for from, to := range redirects {
		w := serve(s, "GET", from)
		assert.Equal(t, http.StatusPermanentRedirect, w.Code, from)
		assert.Equal(t, to, w.Header().Get("Location"), from)
	}

	w := serve(s, "GET", "/reports?range=7d")
	assert.Equal(t, "/analytics?range=7d", w.Header().Get("Location"))
}

// ---------------------------------------------------------------------------
// Page tests
// ---------------------------------------------------------------------------

func TestPageVisitMountsAndSetsHeaders(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, "GET", "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.Board().Mounted("dashboard"))

	assert.Equal(t, "no-store, max-age=0", w.Header().Get("Cache-Control"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	resp := decode(t, w)
	assert.Equal(t, "dashboard", resp["slug"])
	assert.Contains(t, resp["panels"], "monitoring")
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestMonitoringSessionIsRecorded(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, serve(s, "GET", "/").Code)
	require.Equal(t, http.StatusOK, serve(s, "POST", "/v1/monitoring/start").Code)
	require.Equal(t, http.StatusOK, serve(s, "POST", "/v1/monitoring/stop").Code)

	w := serve(s, "GET", "/v1/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(1), resp["count"])
}

func TestAutoMount(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.AutoMount = true })
	require.NoError(t, s.Start(context.Background()))

	for _, p := range s.Board().Pages() {
		assert.True(t, p.Mounted, p.Slug)
	}

	require.NoError(t, s.Shutdown())
	for _, p := range s.Board().Pages() {
		assert.False(t, p.Mounted, "shutdown unmounts %s", p.Slug)
	}
}

// ---------------------------------------------------------------------------
// WebSocket test
// ---------------------------------------------------------------------------

func TestWebSocketReceivesPanelUpdates(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Start(context.Background()))

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := http.Post(ts.URL+"/v1/pages/agents/mount", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev struct {
			Type string `json:"type"`
			Page string `json:"page"`
		}
		require.NoError(t, json.Unmarshal(msg, &ev))
		if ev.Type == "panel_update" && ev.Page == "agents" {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, "GET", "/v1/nonexistent")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error"])
}

func TestMaskDSN(t *testing.T) {
	masked := maskDSN("postgres://app:secret@db:5432/guardlens")
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "app:")
	assert.Contains(t, masked, "@db:5432/guardlens")
	assert.Equal(t, "***", maskDSN("postgres://%zz"))
}
