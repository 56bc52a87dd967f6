package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/code-analyzer/internal/analyzer"
	"github.com/sozercan/code-analyzer/internal/config"
	"github.com/sozercan/code-analyzer/internal/llm"
)

type stubProvider struct {
	mu     sync.Mutex
	calls  int
	invoke func(ctx context.Context, code string) (string, error)
}

func (s *stubProvider) Invoke(ctx context.Context, _, userContent string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.invoke(ctx, userContent)
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func replying(out string) *stubProvider {
	return &stubProvider{invoke: func(context.Context, string) (string, error) { return out, nil }}
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
			MaxBodyBytes:    1 << 16,
		},
		CORS: config.CORSConfig{
			AllowedOrigins:   []string{"http://localhost:4200", "http://127.0.0.1:4200"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		},
	}
}

func newTestServer(cfg config.Config, p llm.Provider) http.Handler {
	return New(cfg, analyzer.New(p)).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	rec := do(t, newTestServer(testConfig(), nil), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"message": "Code Analyzer API is running", "status": "healthy"}, decodeBody(t, rec))
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		provider  llm.Provider
		available bool
	}{
		{name: "available", provider: replying("{}"), available: true},
		{name: "degraded", provider: nil, available: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(testConfig(), tt.provider), http.MethodGet, "/health", "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, map[string]any{
				"status":        "healthy",
				"llm_available": tt.available,
				"version":       "1.0.0",
			}, decodeBody(t, rec))
		})
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	stub := replying("```json\n{\"Errors\":\"syntax error\",\"Code\":\"def f(x): return x\",\"Details\":\"adds x\"}\n```")
	h := newTestServer(testConfig(), stub)

	rec := do(t, h, http.MethodPost, "/analyze", `{"code": "def f(x): return x+"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"Errors":  "syntax error",
		"Code":    "def f(x): return x",
		"Details": "adds x",
	}, decodeBody(t, rec))
	assert.Equal(t, 1, stub.Calls())
}

func TestAnalyzeEndpointUnparseableOutput(t *testing.T) {
	h := newTestServer(testConfig(), replying("I cannot help with that."))

	rec := do(t, h, http.MethodPost, "/analyze", `{"code": "x = 1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, analyzer.ParseFailureErrors, body["Errors"])
	assert.Equal(t, analyzer.ParseFailureCode, body["Code"])
	assert.Contains(t, body["Details"], "I cannot help with that.")
}

func TestAnalyzeEndpointRejectsBlankCode(t *testing.T) {
	for _, body := range []string{`{"code": ""}`, `{"code": "  \n "}`, `{}`} {
		stub := replying("{}")
		h := newTestServer(testConfig(), stub)

		rec := do(t, h, http.MethodPost, "/analyze", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, map[string]any{"detail": "Code field is required and cannot be empty"}, decodeBody(t, rec))
		assert.Equal(t, 0, stub.Calls(), body)
	}
}

func TestAnalyzeEndpointMalformedBody(t *testing.T) {
	stub := replying("{}")
	rec := do(t, newTestServer(testConfig(), stub), http.MethodPost, "/analyze", `{"code": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(decodeBody(t, rec)["detail"].(string), "Invalid request: "))
	assert.Equal(t, 0, stub.Calls())
}

func TestAnalyzeEndpointTrailingData(t *testing.T) {
	stub := replying(`{"Errors":"none","Code":"c","Details":"d"}`)
	h := newTestServer(testConfig(), stub)

	for _, body := range []string{`{"code":"x"} junk`, `{"code":"x"}{"code":"y"}`, `{"code":"x"} }`} {
		rec := do(t, h, http.MethodPost, "/analyze", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Invalid request: unexpected data after JSON object", decodeBody(t, rec)["detail"], body)
	}
	assert.Equal(t, 0, stub.Calls())

	rec := do(t, h, http.MethodPost, "/analyze", "{\"code\":\"x\"}\n\t ")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stub.Calls())
}

func TestAnalyzeEndpointBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 32
	stub := replying("{}")

	rec := do(t, newTestServer(cfg, stub), http.MethodPost, "/analyze", `{"code": "`+strings.Repeat("x", 100)+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, stub.Calls())
}

func TestAnalyzeEndpointUnavailable(t *testing.T) {
	rec := do(t, newTestServer(testConfig(), nil), http.MethodPost, "/analyze", `{"code": "x = 1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"detail": "LLM service is not available. Please check your configuration."}, decodeBody(t, rec))
}

func TestAnalyzeEndpointUpstreamFailure(t *testing.T) {
	stub := &stubProvider{invoke: func(context.Context, string) (string, error) {
		return "", errors.New("invalid api key sk-secret")
	}}

	rec := do(t, newTestServer(testConfig(), stub), http.MethodPost, "/analyze", `{"code": "x = 1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"detail": "Internal server error during code analysis"}, decodeBody(t, rec))
	assert.NotContains(t, rec.Body.String(), "sk-secret")
	assert.Equal(t, 1, stub.Calls())
}

func TestAnalyzeEndpointRequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RequestTimeout = 20 * time.Millisecond
	stub := &stubProvider{invoke: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	rec := do(t, newTestServer(cfg, stub), http.MethodPost, "/analyze", `{"code": "x = 1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error during code analysis", decodeBody(t, rec)["detail"])
}

func TestLegacyEndpoint(t *testing.T) {
	stub := replying(`{"Errors":"none","Code":"x = 1","Details":"assigns","Score":10}`)
	h := newTestServer(testConfig(), stub)

	rec := do(t, h, http.MethodPost, "/", `{"code": "x = 1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"Errors": "none", "Code": "x = 1", "Details": "assigns"}, decodeBody(t, rec))

	rec = do(t, h, http.MethodPost, "/", `{"code": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, newTestServer(testConfig(), nil), http.MethodPost, "/", `{"code": "x = 1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, stub.Calls())
}

func TestNotFound(t *testing.T) {
	rec := do(t, newTestServer(testConfig(), nil), http.MethodGet, "/api/v1/analyze", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{
		"error":  "Endpoint not found",
		"detail": "Please use /analyze endpoint for code analysis",
	}, decodeBody(t, rec))
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(testConfig(), nil), http.MethodGet, "/analyze", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeBody(t, rec)["detail"])
}

func TestPanicIsRecovered(t *testing.T) {
	stub := &stubProvider{invoke: func(context.Context, string) (string, error) {
		panic("nil map write in provider")
	}}

	rec := do(t, newTestServer(testConfig(), stub), http.MethodPost, "/analyze", `{"code": "x = 1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Internal server error", "detail": "Please try again later"}, decodeBody(t, rec))
	assert.NotContains(t, rec.Body.String(), "nil map")
}

func TestCORS(t *testing.T) {
	h := newTestServer(testConfig(), replying("{}"))

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("http://localhost:4200")
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = preflight("http://127.0.0.1:4200")
	assert.Equal(t, "http://127.0.0.1:4200", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight("http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	_, _ = rw.Write([]byte("ok"))
	assert.Equal(t, http.StatusOK, rw.status)

	rw = &responseWriter{ResponseWriter: httptest.NewRecorder()}
	rw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, rw.status)
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return fmt.Sprint(l.Addr().(*net.TCPAddr).Port)
}

// startServing runs srv until stop is called or the test ends, and waits
// for it to accept connections. stop returns what serve returned.
func startServing(t *testing.T, srv *Server) (base string, stop func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx) }()

	var once sync.Once
	var serveErr error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case serveErr = <-done:
			case <-time.After(5 * time.Second):
				serveErr = errors.New("server did not stop")
			}
		})
		return serveErr
	}
	t.Cleanup(func() { _ = stop() })

	base = "http://" + srv.server.Addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	return base, stop
}

func TestServeListenerError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testConfig()
	cfg.Server.Port = fmt.Sprint(l.Addr().(*net.TCPAddr).Port)

	err = New(cfg, analyzer.New(nil)).Run()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "server error:"), err.Error())
}

func TestServeGracefulShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = freePort(t)

	release := make(chan struct{})
	stub := &stubProvider{invoke: func(context.Context, string) (string, error) {
		<-release
		return `{"Errors":"none","Code":"c","Details":"d"}`, nil
	}}
	base, stop := startServing(t, New(cfg, analyzer.New(stub)))

	// an in-flight analysis finishes before the server stops
	type result struct {
		status int
		err    error
	}
	inFlight := make(chan result, 1)
	go func() {
		resp, err := http.Post(base+"/analyze", "application/json", strings.NewReader(`{"code":"x = 1"}`))
		if err != nil {
			inFlight <- result{err: err}
			return
		}
		resp.Body.Close()
		inFlight <- result{status: resp.StatusCode}
	}()
	require.Eventually(t, func() bool { return stub.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- stop() }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-inFlight
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.NoError(t, <-stopped)

	_, err := http.Get(base + "/")
	assert.Error(t, err)
}

func TestServeRequestTimeoutOverTheWire(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = freePort(t)
	cfg.Server.RequestTimeout = 50 * time.Millisecond
	cfg.Server.WriteTimeout = 2 * time.Second
	stub := &stubProvider{invoke: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	base, _ := startServing(t, New(cfg, analyzer.New(stub)))

	resp, err := http.Post(base+"/analyze", "application/json", strings.NewReader(`{"code":"x = 1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal server error during code analysis", body["detail"])
}
