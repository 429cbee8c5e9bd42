// Package writer implements the append-only ATF v2 file writer side: the
// drainer that empties the native agent's shared ring buffer onto disk
// calls into IndexWriter/DetailWriter to produce index.atf/detail.atf
// files with a valid header, in-order events, and a trailing footer on
// clean finalize.
package writer

import (
	"bufio"
	"fmt"
	"hash"
	"hash/crc32"
	"os"

	"github.com/adatrace/ada-trace/internal/atf"
)

// IndexWriter appends fixed-width index events to a single index.atf file.
// It is not safe for concurrent use; the drainer owns one writer per
// thread.
type IndexWriter struct {
	f           *os.File
	w           *bufio.Writer
	threadID    uint32
	clockType   uint8
	hasDetail   bool
	count       uint64
	bytesWritten uint64
	timeStart   uint64
	timeEnd     uint64
	crc         hash.Hash32
	closed      bool
}

// CreateIndexWriter creates path (truncating any existing file), writes a
// placeholder header, and returns a writer ready to accept events via
// Append. The header is rewritten with final offsets when Finalize runs.
// hasDetail sets the header flag announcing a companion detail.atf file.
func CreateIndexWriter(path string, threadID uint32, clockType uint8, hasDetail bool) (*IndexWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	var flags uint32
	if hasDetail {
		flags = atf.IndexFlagHasDetailFile
	}
	placeholder := atf.IndexHeader{
		Magic:        atf.IndexMagic,
		Endian:       atf.EndianLittle,
		Version:      atf.FormatVersion,
		Flags:        flags,
		ThreadID:     threadID,
		ClockType:    clockType,
		EventSize:    atf.IndexEventSize,
		EventsOffset: atf.IndexHeaderSize,
	}
	var buf [atf.IndexHeaderSize]byte
	atf.PutIndexHeader(buf[:], placeholder)
	if _, err := f.Write(buf[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &IndexWriter{
		f:         f,
		w:         bufio.NewWriter(f),
		threadID:  threadID,
		clockType: clockType,
		hasDetail: hasDetail,
		crc:       crc32.NewIEEE(),
	}, nil
}

// Append writes one index event and folds it into the running checksum and
// time bounds.
func (iw *IndexWriter) Append(e atf.IndexEvent) error {
	if iw.closed {
		return fmt.Errorf("index writer: append after finalize")
	}
	var buf [atf.IndexEventSize]byte
	atf.PutIndexEvent(buf[:], e)
	if _, err := iw.w.Write(buf[:]); err != nil {
		return err
	}
	iw.crc.Write(buf[:])
	if iw.count == 0 || e.TimestampNs < iw.timeStart {
		iw.timeStart = e.TimestampNs
	}
	if e.TimestampNs > iw.timeEnd {
		iw.timeEnd = e.TimestampNs
	}
	iw.count++
	iw.bytesWritten += atf.IndexEventSize
	return nil
}

// Finalize writes the trailing footer, then backfills the header with the
// final event count and offsets, leaving the file in the state a reader
// expects on clean shutdown.
func (iw *IndexWriter) Finalize() error {
	if iw.closed {
		return nil
	}
	if err := iw.w.Flush(); err != nil {
		return err
	}
	footerOffset := uint64(atf.IndexHeaderSize) + iw.bytesWritten

	footer := atf.IndexFooter{
		Checksum:     iw.crc.Sum32(),
		EventCount:   iw.count,
		TimeStartNs:  iw.timeStart,
		TimeEndNs:    iw.timeEnd,
		BytesWritten: iw.bytesWritten,
	}
	var footerBuf [atf.IndexFooterSize]byte
	atf.PutIndexFooter(footerBuf[:], footer)
	if _, err := iw.f.Write(footerBuf[:]); err != nil {
		return err
	}

	var flags uint32
	if iw.hasDetail {
		flags = atf.IndexFlagHasDetailFile
	}
	header := atf.IndexHeader{
		Magic:        atf.IndexMagic,
		Endian:       atf.EndianLittle,
		Version:      atf.FormatVersion,
		Flags:        flags,
		ThreadID:     iw.threadID,
		ClockType:    iw.clockType,
		EventSize:    atf.IndexEventSize,
		EventCount:   uint32(iw.count),
		EventsOffset: atf.IndexHeaderSize,
		FooterOffset: footerOffset,
		TimeStartNs:  iw.timeStart,
		TimeEndNs:    iw.timeEnd,
	}
	var headerBuf [atf.IndexHeaderSize]byte
	atf.PutIndexHeader(headerBuf[:], header)
	if _, err := iw.f.WriteAt(headerBuf[:], 0); err != nil {
		return err
	}

	iw.closed = true
	return iw.f.Close()
}

// Abort closes the file without writing a footer, leaving a header-valid
// file a reader will recover via the file-size fallback rather than the
// footer.
func (iw *IndexWriter) Abort() error {
	if iw.closed {
		return nil
	}
	iw.w.Flush()
	iw.closed = true
	return iw.f.Close()
}
