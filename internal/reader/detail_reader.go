package reader

import (
	"fmt"

	"github.com/adatrace/ada-trace/internal/atf"
	"github.com/adatrace/ada-trace/pkg/log"
)

// DetailReader memory-maps a single detail.atf file and builds an offset
// index on open so that Get(seq) is O(1) despite events being
// variable-length.
type DetailReader struct {
	path    string
	mapped  *mappedFile
	header  atf.DetailHeader
	footer  atf.DetailFooter
	hasFooter bool
	offsets []int // byte offset of event i within mapped.Data
	eventsEnd int   // end of the events section (start of footer, if any)
}

// OpenDetail maps path, validates its header, and walks the events section
// building an offset index. A record whose declared length is internally
// inconsistent (too small, or larger than the remaining bytes) still gets
// an index slot — Len() counts it, Get() on it returns false — but the
// walk stops there rather than trusting its length to find the next
// record. This never causes OpenDetail itself to fail.
func OpenDetail(path string) (*DetailReader, error) {
	m, err := openMapped(path)
	if err != nil {
		return nil, err
	}
	h, err := atf.ParseDetailHeader(m.Data)
	if err != nil {
		m.Close()
		return nil, err
	}
	if err := atf.ValidateDetailHeader(path, len(m.Data), h); err != nil {
		m.Close()
		return nil, err
	}

	r := &DetailReader{path: path, mapped: m, header: h}

	// Footer is a fixed 64 bytes trailing the events section; attempt a
	// tail-of-file probe the way the index reader does via FooterOffset,
	// but the detail header carries no explicit footer offset, so probe
	// the final DetailFooterSize bytes of the file directly.
	if len(m.Data) >= atf.DetailFooterSize {
		tail := m.Data[len(m.Data)-atf.DetailFooterSize:]
		if f, ok := atf.ParseDetailFooter(tail); ok {
			r.footer = f
			r.hasFooter = true
		}
	}

	end := len(m.Data)
	if r.hasFooter {
		end -= atf.DetailFooterSize
	}
	r.eventsEnd = end

	off := int(h.EventsOffset)
	for off+atf.DetailEventHeaderSize <= end {
		// The offset is recorded before the length is validated: a
		// corrupt trailing record still occupies a detail_seq slot (Get
		// on it returns false), it just stops the walk from continuing
		// past it.
		r.offsets = append(r.offsets, off)
		ev, ok := atf.ParseDetailEvent(m.Data[off:end])
		if !ok {
			break
		}
		off += int(ev.Header.TotalLength)
	}
	if r.hasFooter && uint64(len(r.offsets)) != r.footer.EventCount {
		log.Warnf("detail reader: %s: footer claims %d events, walk found %d; trusting the walk", path, r.footer.EventCount, len(r.offsets))
	}
	return r, nil
}

// Close releases the memory map and underlying file descriptor.
func (r *DetailReader) Close() error {
	return r.mapped.Close()
}

// Len returns the number of detail events discovered during the open-time
// walk.
func (r *DetailReader) Len() int { return len(r.offsets) }

// ThreadID returns the thread this file belongs to.
func (r *DetailReader) ThreadID() uint32 { return r.header.ThreadID }

// HasFooter reports whether a valid footer was found at open time.
func (r *DetailReader) HasFooter() bool { return r.hasFooter }

// Path returns the path this reader was opened from.
func (r *DetailReader) Path() string { return r.path }

// Get returns the detail event at detailSeq in O(1) via the offset index.
func (r *DetailReader) Get(detailSeq uint32) (atf.DetailEvent, bool) {
	idx := int(detailSeq)
	if idx < 0 || idx >= len(r.offsets) {
		return atf.DetailEvent{}, false
	}
	off := r.offsets[idx]
	ev, ok := atf.ParseDetailEvent(r.mapped.Data[off:r.eventsEnd])
	if !ok {
		return atf.DetailEvent{}, false
	}
	return ev, true
}

// GetByIndexSeq scans the file in order looking for the detail event whose
// back-link equals indexSeq. This is O(n): callers typically go forward
// from index to detail via Get, not the reverse, so no reverse index is
// maintained.
func (r *DetailReader) GetByIndexSeq(indexSeq uint32) (atf.DetailEvent, bool) {
	for i := range r.offsets {
		ev, ok := r.Get(uint32(i))
		if ok && ev.Header.IndexSeq == indexSeq {
			return ev, true
		}
	}
	return atf.DetailEvent{}, false
}

// Iter returns every detail event in file order.
func (r *DetailReader) Iter() []atf.DetailEvent {
	out := make([]atf.DetailEvent, 0, len(r.offsets))
	for i := range r.offsets {
		if ev, ok := r.Get(uint32(i)); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (r *DetailReader) String() string {
	return fmt.Sprintf("DetailReader(%s, thread=%d, events=%d)", r.path, r.header.ThreadID, len(r.offsets))
}
