package queryengine

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adatrace/ada-trace/internal/cache"
)

// rpcRequest is the RPC envelope: one method name and a params object,
// decoded per-method below.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type traceInfoParams struct {
	TraceID          string `json:"traceId"`
	IncludeChecksums bool   `json:"include_checksums"`
	IncludeSamples   bool   `json:"include_samples"`
}

func writeRPCError(rw http.ResponseWriter, status int, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(rpcResponse{Error: msg})
}

func (s *Server) handleRPC(rw http.ResponseWriter, r *http.Request) {
	addr := remoteAddress(r)
	s.metrics.inFlight.Inc()
	defer s.metrics.inFlight.Dec()

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(rw, http.StatusBadRequest, "malformed rpc envelope: "+err.Error())
		return
	}

	s.metrics.requestsTotal.WithLabelValues(req.Method).Inc()

	switch req.Method {
	case "trace.info":
		s.handleTraceInfo(rw, addr, req.Params)
	default:
		writeRPCError(rw, http.StatusNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleTraceInfo(rw http.ResponseWriter, remoteAddr string, raw json.RawMessage) {
	if !s.Limiter.Allow(remoteAddr) {
		writeRPCError(rw, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var params traceInfoParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeRPCError(rw, http.StatusBadRequest, "malformed trace.info params: "+err.Error())
		return
	}
	if params.TraceID == "" {
		writeRPCError(rw, http.StatusBadRequest, "trace.info requires a traceId")
		return
	}

	result, err := s.Pool.Submit(func() (interface{}, error) {
		return computeCached(s.TraceCache, params, s.metrics)
	})
	if err != nil {
		writeRPCError(rw, http.StatusInternalServerError, err.Error())
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(rpcResponse{Result: result})
}

// computeCached is the cache.Compute closure wired against
// cache.ComputeTraceInfo. It runs on a worker-pool goroutine (see
// WorkerPool) so the checksum and full-scan work ComputeTraceInfo can
// trigger never blocks a request-handler goroutine.
func computeCached(traceCache *cache.Cache, params traceInfoParams, m *metricsRegistry) (cache.TraceInfo, error) {
	dir := params.TraceID
	manifestMtime, eventsMtime, err := statMtimes(dir)
	if err != nil {
		return cache.TraceInfo{}, err
	}

	hit := true
	value, err := traceCache.Get(dir, manifestMtime, eventsMtime, func() (interface{}, time.Time, time.Time, error) {
		hit = false
		return cache.ComputeTraceInfo(dir, params.IncludeChecksums, params.IncludeSamples)
	})
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
	if err != nil {
		return cache.TraceInfo{}, err
	}
	return value.(cache.TraceInfo), nil
}

// statMtimes is a cheap freshness probe: the manifest's own mtime, and the
// newest mtime among the session's .atf files, without opening a session
// reader. Cache.Get uses these to decide whether a cached TraceInfo is
// still fresh before paying for a full recompute.
func statMtimes(dir string) (manifestMtime, eventsMtime time.Time, err error) {
	manifestStat, err := os.Stat(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	manifestMtime = manifestStat.ModTime()
	eventsMtime = manifestMtime

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".atf" {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		if info.ModTime().After(eventsMtime) {
			eventsMtime = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return manifestMtime, eventsMtime, nil
}
