package queryengine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adatrace/ada-trace/internal/cache"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New("127.0.0.1:0", cache.New(16), 100, 100, 2, "")
	s.Init()
	t.Cleanup(func() { s.Pool.Shutdown() })
	return s
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	body := `{"method":"bogus.call","params":{}}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown method, got %d", rw.Code)
	}
}

func TestTraceInfoMissingTraceID(t *testing.T) {
	s := newTestServer(t)
	body := `{"method":"trace.info","params":{}}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing traceId, got %d", rw.Code)
	}
}

func TestTraceInfoUnknownSession(t *testing.T) {
	s := newTestServer(t)
	body := `{"method":"trace.info","params":{"traceId":"/no/such/dir"}}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a session that doesn't exist, got %d", rw.Code)
	}
	var resp rpcResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" {
		t.Fatal("expected an error message in the rpc envelope")
	}
}

func TestPerAddressLimiterBlocksBurst(t *testing.T) {
	l := NewPerAddressLimiter(1, 1)
	if !l.Allow("10.0.0.1") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("second immediate request should be throttled")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("a different address should have its own bucket")
	}
}

func TestRPCRequiresBearerTokenWhenConfigured(t *testing.T) {
	s := New("127.0.0.1:0", cache.New(16), 100, 100, 2, "test-secret")
	s.Init()
	defer s.Pool.Shutdown()

	body := `{"method":"trace.info","params":{"traceId":"/no/such/dir"}}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", rw.Code)
	}
}

func TestWorkerPoolSubmit(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Shutdown()

	value, err := pool.Submit(func() (interface{}, error) { return 42, nil })
	if err != nil {
		t.Fatal(err)
	}
	if value.(int) != 42 {
		t.Fatalf("expected 42, got %v", value)
	}
}

func TestStatMtimesReflectsNewestEventFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	threadDir := filepath.Join(dir, "thread_0")
	if err := os.MkdirAll(threadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(threadDir, "index.atf")
	if err := os.WriteFile(indexPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(indexPath, future, future); err != nil {
		t.Fatal(err)
	}

	_, eventsMtime, err := statMtimes(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !eventsMtime.Equal(future) {
		t.Fatalf("expected eventsMtime to track the newest .atf file, got %v want %v", eventsMtime, future)
	}
}
