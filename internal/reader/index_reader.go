// Package reader implements the per-file ATF v2 readers: memory-mapped,
// O(1)-access views over a single index.atf or detail.atf file.
package reader

import (
	"fmt"

	"github.com/adatrace/ada-trace/internal/atf"
	"github.com/adatrace/ada-trace/pkg/log"
)

// IndexReader memory-maps a single index.atf file. It is safe for
// concurrent use from any number of goroutines: the backing map is
// immutable and no interior mutable state exists after Open returns.
type IndexReader struct {
	path   string
	mapped *mappedFile
	header atf.IndexHeader
	footer atf.IndexFooter
	hasFooter bool
	count  uint32
}

// OpenIndex maps path, validates its header, and probes for a trailing
// footer to recover the authoritative event count.
func OpenIndex(path string) (*IndexReader, error) {
	m, err := openMapped(path)
	if err != nil {
		return nil, err
	}
	h, err := atf.ParseIndexHeader(m.Data)
	if err != nil {
		m.Close()
		return nil, err
	}
	if err := atf.ValidateIndexHeader(path, len(m.Data), h); err != nil {
		m.Close()
		return nil, err
	}

	r := &IndexReader{path: path, mapped: m, header: h}

	if int(h.FooterOffset)+atf.IndexFooterSize <= len(m.Data) {
		if f, ok := atf.ParseIndexFooter(m.Data[h.FooterOffset:]); ok {
			r.footer = f
			r.hasFooter = true
			r.count = uint32(f.EventCount)
		}
	}
	if !r.hasFooter {
		avail := len(m.Data) - int(h.EventsOffset)
		if avail < 0 {
			avail = 0
		}
		r.count = uint32(avail / atf.IndexEventSize)
	}
	return r, nil
}

// Close releases the memory map and underlying file descriptor.
func (r *IndexReader) Close() error {
	return r.mapped.Close()
}

// Len returns the authoritative event count: the footer's, when valid,
// else a file-size-derived estimate.
func (r *IndexReader) Len() uint32 { return r.count }

// HasDetail reports whether the paired thread carries a detail.atf file,
// per the header's flag bit.
func (r *IndexReader) HasDetail() bool { return r.header.HasDetail() }

// ThreadID returns the thread this file belongs to.
func (r *IndexReader) ThreadID() uint32 { return r.header.ThreadID }

// HasFooter reports whether a valid footer was found at open time. False
// means the event count was derived from file size, the signal the
// footer-repair sweep uses to flag a file for attention.
func (r *IndexReader) HasFooter() bool { return r.hasFooter }

// Path returns the path this reader was opened from.
func (r *IndexReader) Path() string { return r.path }

// TimeRange returns (start, end) nanosecond bounds, preferring the footer
// when present and falling back to the header otherwise.
func (r *IndexReader) TimeRange() (uint64, uint64) {
	if r.hasFooter {
		return r.footer.TimeStartNs, r.footer.TimeEndNs
	}
	return r.header.TimeStartNs, r.header.TimeEndNs
}

// Get returns the event at seq in O(1), or ok=false if seq is out of
// range.
func (r *IndexReader) Get(seq uint32) (atf.IndexEvent, bool) {
	if seq >= r.count {
		return atf.IndexEvent{}, false
	}
	off := int(r.header.EventsOffset) + int(seq)*atf.IndexEventSize
	if off+atf.IndexEventSize > len(r.mapped.Data) {
		log.Warnf("index reader: %s: event %d offset beyond file bounds, treating as absent", r.path, seq)
		return atf.IndexEvent{}, false
	}
	return atf.ParseIndexEvent(r.mapped.Data[off : off+atf.IndexEventSize]), true
}

// Iter returns every event in file order, length Len().
func (r *IndexReader) Iter() []atf.IndexEvent {
	out := make([]atf.IndexEvent, 0, r.count)
	for i := uint32(0); i < r.count; i++ {
		if e, ok := r.Get(i); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *IndexReader) String() string {
	return fmt.Sprintf("IndexReader(%s, thread=%d, events=%d)", r.path, r.header.ThreadID, r.count)
}
