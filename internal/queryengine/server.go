// Package queryengine implements the query daemon's HTTP/RPC surface: a
// gorilla/mux router exposing trace.info over a tiny JSON-RPC-ish
// envelope, a Prometheus metrics endpoint, and a liveness probe. Server
// has a three-phase Init/Start/Shutdown split, with routes behind a
// CORS/compression/recovery middleware stack.
package queryengine

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/adatrace/ada-trace/internal/cache"
	"github.com/adatrace/ada-trace/pkg/log"
	"golang.org/x/time/rate"
)

// Server is the query-engine's HTTP listener and its collaborators.
type Server struct {
	Addr       string
	TraceCache *cache.Cache
	Limiter    *PerAddressLimiter
	Pool       *WorkerPool
	JWTSecret  string
	metrics    *metricsRegistry

	router *mux.Router
	srv    *http.Server
}

// New builds a Server. addr is the listen address (host:port); rateLimit
// and rateBurst configure the per-remote-address trace.info limiter;
// workers sizes the checksum/full-scan worker pool. jwtSecret, if
// non-empty, requires a bearer token on /rpc.
func New(addr string, traceCache *cache.Cache, rateLimitPerSec float64, rateBurst, workers int, jwtSecret string) *Server {
	return &Server{
		Addr:       addr,
		TraceCache: traceCache,
		Limiter:    NewPerAddressLimiter(rate.Limit(rateLimitPerSec), rateBurst),
		Pool:       NewWorkerPool(workers),
		JWTSecret:  jwtSecret,
		metrics:    newMetricsRegistry(),
	}
}

// Init builds the router and middleware stack. Call once before Start.
func (s *Server) Init() {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	router.Handle("/rpc", requireBearer(s.JWTSecret, http.HandlerFunc(s.handleRPC))).Methods(http.MethodPost)

	router.Use(handlers.CompressHandler)
	router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	router.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"})))

	s.router = router
}

// Start begins serving and blocks until Shutdown closes the listener.
func (s *Server) Start() error {
	logged := handlers.CustomLoggingHandler(io.Discard, s.router, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})

	s.srv = &http.Server{
		Addr:         s.Addr,
		Handler:      logged,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	log.Infof("query-engine listening at %s", s.Addr)

	if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server and the worker pool, waiting for in-flight
// requests and queued jobs to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		if err := s.srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.Pool.Shutdown()
	return nil
}

func (s *Server) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	io.WriteString(rw, "ok")
}

func remoteAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
