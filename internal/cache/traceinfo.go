package cache

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adatrace/ada-trace/internal/atf"
	"github.com/adatrace/ada-trace/internal/session"
)

// EventSample is one sampled index event, shaped for JSON-RPC responses.
type EventSample struct {
	ThreadIndex int    `json:"thread_index"`
	Sequence    uint32 `json:"sequence"`
	Timestamp   uint64 `json:"timestamp"`
	Kind        string `json:"kind"`
	HasDetail   bool   `json:"has_detail"`
}

// TraceInfo is the trace.info JSON-RPC result: trace duration, thread
// count and total event count, on-disk file sizes, and optionally
// checksums and sampled events.
type TraceInfo struct {
	TraceSession  string        `json:"trace_session"`
	TimeStartNs   uint64        `json:"time_start_ns"`
	TimeEndNs     uint64        `json:"time_end_ns"`
	ThreadCount   int           `json:"thread_count"`
	EventCount    int           `json:"event_count"`
	TotalBytes    int64         `json:"total_bytes"`
	Checksums     map[string]string `json:"checksums,omitempty"`
	FirstSamples  []EventSample `json:"first_samples,omitempty"`
	LastSamples   []EventSample `json:"last_samples,omitempty"`
}

const maxSamples = 5

// ComputeTraceInfo opens the session at dir and builds a TraceInfo,
// including checksums and samples when requested. It returns the
// manifest and latest-event-file mtimes observed, for cache invalidation.
func ComputeTraceInfo(dir string, includeChecksums, includeSamples bool) (TraceInfo, time.Time, time.Time, error) {
	manifestPath := filepath.Join(dir, "manifest.json")
	manifestStat, err := os.Stat(manifestPath)
	if err != nil {
		return TraceInfo{}, time.Time{}, time.Time{}, err
	}

	sess, err := session.Open(dir)
	if err != nil {
		return TraceInfo{}, time.Time{}, time.Time{}, err
	}
	defer sess.Close()

	info := TraceInfo{
		TraceSession: dir,
		ThreadCount:  len(sess.Threads()),
	}
	start, end := sess.TimeRange()
	info.TimeStartNs, info.TimeEndNs = start, end
	info.EventCount = int(sess.EventCount())

	eventsMtime := manifestStat.ModTime()
	var totalBytes int64
	if includeChecksums {
		info.Checksums = map[string]string{}
	}

	for _, th := range sess.Threads() {
		for _, name := range []string{"index.atf", "detail.atf"} {
			p := filepath.Join(dir, threadDirName(th.ThreadID()), name)
			st, err := os.Stat(p)
			if err != nil {
				continue
			}
			totalBytes += st.Size()
			if st.ModTime().After(eventsMtime) {
				eventsMtime = st.ModTime()
			}
			if includeChecksums {
				sum, err := md5File(p)
				if err == nil {
					info.Checksums[filepath.Join(threadDirName(th.ThreadID()), name)] = sum
				}
			}
		}
	}
	info.TotalBytes = totalBytes

	if includeSamples {
		info.FirstSamples, info.LastSamples = collectSamples(sess)
	}

	return info, manifestStat.ModTime(), eventsMtime, nil
}

func threadDirName(id uint32) string {
	return "thread_" + strconv.FormatUint(uint64(id), 10)
}

func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func collectSamples(sess *session.SessionReader) ([]EventSample, []EventSample) {
	var first, last []EventSample
	for threadIdx, th := range sess.Threads() {
		n := th.Index.Len()
		for seq := uint32(0); seq < n && len(first) < maxSamples; seq++ {
			e, ok := th.Index.Get(seq)
			if !ok {
				break
			}
			first = append(first, toSample(threadIdx, seq, e))
		}
		for i := 0; i < int(n) && len(last) < maxSamples; i++ {
			seq := n - 1 - uint32(i)
			e, ok := th.Index.Get(seq)
			if !ok {
				break
			}
			last = append(last, toSample(threadIdx, seq, e))
		}
	}
	return first, last
}

func toSample(threadIdx int, seq uint32, e atf.IndexEvent) EventSample {
	return EventSample{
		ThreadIndex: threadIdx,
		Sequence:    seq,
		Timestamp:   e.TimestampNs,
		Kind:        e.EventKind.String(),
		HasDetail:   e.HasDetail(),
	}
}
