package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SessionReader opens a session directory: its manifest and every thread
// declared in it whose directory actually exists on disk.
type SessionReader struct {
	dir      string
	manifest Manifest
	threads  []*ThreadReader
}

// Open parses dir/manifest.json and opens a ThreadReader for every declared
// thread whose thread_<id>/ subdirectory exists. A declared-but-missing
// thread directory is silently skipped: the thread exited before any event
// reached disk, which is an accepted, non-error state.
func Open(dir string) (*SessionReader, error) {
	manifestPath := filepath.Join(dir, "manifest.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}

	var threads []*ThreadReader
	for _, info := range m.Threads {
		threadDir := filepath.Join(dir, fmt.Sprintf("thread_%d", info.ID))
		if _, err := os.Stat(threadDir); err != nil {
			continue
		}
		tr, err := OpenThread(threadDir)
		if err != nil {
			for _, opened := range threads {
				opened.Close()
			}
			return nil, fmt.Errorf("open thread %d: %w", info.ID, err)
		}
		threads = append(threads, tr)
	}

	return &SessionReader{dir: dir, manifest: m, threads: threads}, nil
}

// Close releases every thread reader's memory maps.
func (s *SessionReader) Close() error {
	var err error
	for _, t := range s.threads {
		if cerr := t.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Threads returns every successfully opened thread reader, in manifest
// order.
func (s *SessionReader) Threads() []*ThreadReader { return s.threads }

// Manifest returns the parsed session manifest.
func (s *SessionReader) Manifest() Manifest { return s.manifest }

// EventCount sums the index length of every thread.
func (s *SessionReader) EventCount() uint64 {
	var total uint64
	for _, t := range s.threads {
		total += uint64(t.Index.Len())
	}
	return total
}

// TimeRange returns the minimum start and maximum end across all threads,
// or (0, 0) if the session has no threads.
func (s *SessionReader) TimeRange() (uint64, uint64) {
	if len(s.threads) == 0 {
		return 0, 0
	}
	minStart := ^uint64(0)
	var maxEnd uint64
	for _, t := range s.threads {
		start, end := t.TimeRange()
		if start < minStart {
			minStart = start
		}
		if end > maxEnd {
			maxEnd = end
		}
	}
	return minStart, maxEnd
}
