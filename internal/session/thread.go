// Package session pairs per-file readers into a per-thread view, loads a
// session directory's manifest and all of its threads, and merge-sorts
// events across threads by global timestamp.
package session

import (
	"os"
	"path/filepath"

	"github.com/adatrace/ada-trace/internal/atf"
	"github.com/adatrace/ada-trace/internal/reader"
)

// ThreadReader combines one thread's index reader with its optional detail
// reader and resolves the bidirectional links between them.
type ThreadReader struct {
	Index  *reader.IndexReader
	Detail *reader.DetailReader // nil if the thread has no detail.atf
}

// OpenThread opens threadDir/index.atf (mandatory) and threadDir/detail.atf
// (if present).
func OpenThread(threadDir string) (*ThreadReader, error) {
	idx, err := reader.OpenIndex(filepath.Join(threadDir, "index.atf"))
	if err != nil {
		return nil, err
	}

	detailPath := filepath.Join(threadDir, "detail.atf")
	var det *reader.DetailReader
	if _, statErr := os.Stat(detailPath); statErr == nil {
		det, err = reader.OpenDetail(detailPath)
		if err != nil {
			idx.Close()
			return nil, err
		}
	}

	return &ThreadReader{Index: idx, Detail: det}, nil
}

// Close releases both underlying memory maps.
func (t *ThreadReader) Close() error {
	var err error
	if t.Detail != nil {
		err = t.Detail.Close()
	}
	if cerr := t.Index.Close(); err == nil {
		err = cerr
	}
	return err
}

// GetDetailFor resolves the forward link from an index event to its
// paired detail record in O(1). Returns ok=false when the event carries no
// detail link or the thread has no detail file.
func (t *ThreadReader) GetDetailFor(e atf.IndexEvent) (atf.DetailEvent, bool) {
	if !e.HasDetail() || t.Detail == nil {
		return atf.DetailEvent{}, false
	}
	return t.Detail.Get(e.DetailSeq)
}

// GetIndexFor resolves the backward link from a detail event to its
// paired index event in O(1) via the back-link sequence number.
func (t *ThreadReader) GetIndexFor(d atf.DetailEvent) (atf.IndexEvent, bool) {
	return t.Index.Get(d.Header.IndexSeq)
}

// ThreadID returns the owning thread's identifier.
func (t *ThreadReader) ThreadID() uint32 { return t.Index.ThreadID() }

// TimeRange delegates to the index reader.
func (t *ThreadReader) TimeRange() (uint64, uint64) { return t.Index.TimeRange() }
