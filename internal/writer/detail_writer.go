package writer

import (
	"bufio"
	"fmt"
	"hash"
	"hash/crc32"
	"os"

	"github.com/adatrace/ada-trace/internal/atf"
)

// DetailWriter appends variable-length detail events to a single
// detail.atf file. Not safe for concurrent use.
type DetailWriter struct {
	f             *os.File
	w             *bufio.Writer
	threadID      uint32
	count         uint64
	bytesWritten  uint64
	timeStart     uint64
	timeEnd       uint64
	indexSeqStart uint64
	indexSeqEnd   uint64
	crc           hash.Hash32
	closed        bool
}

// CreateDetailWriter creates path and writes a placeholder header.
func CreateDetailWriter(path string, threadID uint32) (*DetailWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	placeholder := atf.DetailHeader{
		Magic:        atf.DetailMagic,
		Endian:       atf.EndianLittle,
		Version:      atf.FormatVersion,
		ThreadID:     threadID,
		EventsOffset: atf.DetailHeaderSize,
	}
	var buf [atf.DetailHeaderSize]byte
	atf.PutDetailHeader(buf[:], placeholder)
	if _, err := f.Write(buf[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &DetailWriter{f: f, w: bufio.NewWriter(f), threadID: threadID, crc: crc32.NewIEEE()}, nil
}

// Append writes one detail event's header plus payload, filling in
// TotalLength, ThreadID, and the running event count/time bounds.
func (dw *DetailWriter) Append(eventType atf.DetailEventType, flags uint16, indexSeq uint32, timestamp uint64, payload []byte) error {
	if dw.closed {
		return fmt.Errorf("detail writer: append after finalize")
	}
	total := atf.DetailEventHeaderSize + len(payload)
	h := atf.DetailEventHeader{
		TotalLength: uint32(total),
		EventType:   eventType,
		Flags:       flags,
		IndexSeq:    indexSeq,
		ThreadID:    dw.threadID,
		Timestamp:   timestamp,
	}
	buf := make([]byte, total)
	atf.PutDetailEventHeader(buf, h)
	copy(buf[atf.DetailEventHeaderSize:], payload)

	if _, err := dw.w.Write(buf); err != nil {
		return err
	}
	dw.crc.Write(buf)

	if dw.count == 0 || indexSeq < uint32(dw.indexSeqStart) {
		dw.indexSeqStart = uint64(indexSeq)
	}
	if indexSeq > uint32(dw.indexSeqEnd) {
		dw.indexSeqEnd = uint64(indexSeq)
	}
	if dw.count == 0 || timestamp < dw.timeStart {
		dw.timeStart = timestamp
	}
	if timestamp > dw.timeEnd {
		dw.timeEnd = timestamp
	}
	dw.count++
	dw.bytesWritten += uint64(total)
	return nil
}

// Finalize writes the trailing footer and backfills the header.
func (dw *DetailWriter) Finalize() error {
	if dw.closed {
		return nil
	}
	if err := dw.w.Flush(); err != nil {
		return err
	}

	footer := atf.DetailFooter{
		Checksum:    dw.crc.Sum32(),
		EventCount:  dw.count,
		BytesLength: dw.bytesWritten,
		TimeStartNs: dw.timeStart,
		TimeEndNs:   dw.timeEnd,
	}
	var footerBuf [atf.DetailFooterSize]byte
	atf.PutDetailFooter(footerBuf[:], footer)
	if _, err := dw.f.Write(footerBuf[:]); err != nil {
		return err
	}

	header := atf.DetailHeader{
		Magic:         atf.DetailMagic,
		Endian:        atf.EndianLittle,
		Version:       atf.FormatVersion,
		ThreadID:      dw.threadID,
		EventsOffset:  atf.DetailHeaderSize,
		EventCount:    dw.count,
		BytesLength:   dw.bytesWritten,
		IndexSeqStart: dw.indexSeqStart,
		IndexSeqEnd:   dw.indexSeqEnd,
	}
	var headerBuf [atf.DetailHeaderSize]byte
	atf.PutDetailHeader(headerBuf[:], header)
	if _, err := dw.f.WriteAt(headerBuf[:], 0); err != nil {
		return err
	}

	dw.closed = true
	return dw.f.Close()
}

// Abort closes the file without a footer, leaving a header-valid file a
// reader can still open and walk via the events-section scan.
func (dw *DetailWriter) Abort() error {
	if dw.closed {
		return nil
	}
	dw.w.Flush()
	dw.closed = true
	return dw.f.Close()
}
