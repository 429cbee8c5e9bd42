package atf

// IndexHeader is the 64-byte header of an index.atf file, copied out of the
// mapped region by value so callers never hold a reference into unaligned
// memory.
type IndexHeader struct {
	Magic       [4]byte
	Endian      uint8
	Version     uint8
	Arch        uint8
	OS          uint8
	Flags       uint32
	ThreadID    uint32
	ClockType   uint8
	EventSize   uint32
	EventCount  uint32
	EventsOffset uint64
	FooterOffset uint64
	TimeStartNs  uint64
	TimeEndNs    uint64
}

// HasDetail reports whether bit 0 of Flags is set.
func (h IndexHeader) HasDetail() bool {
	return h.Flags&IndexFlagHasDetailFile != 0
}

// ParseIndexHeader reads the first IndexHeaderSize bytes of data without
// validating them; call ValidateIndexHeader separately.
func ParseIndexHeader(data []byte) (IndexHeader, error) {
	if len(data) < IndexHeaderSize {
		return IndexHeader{}, errTooSmall("index header", len(data), IndexHeaderSize)
	}
	var h IndexHeader
	copy(h.Magic[:], data[0:4])
	h.Endian = data[4]
	h.Version = data[5]
	h.Arch = data[6]
	h.OS = data[7]
	h.Flags = le.Uint32(data[8:12])
	h.ThreadID = le.Uint32(data[12:16])
	h.ClockType = data[16]
	// data[17:20] reserved, data[20:24] reserved
	h.EventSize = le.Uint32(data[24:28])
	h.EventCount = le.Uint32(data[28:32])
	h.EventsOffset = le.Uint64(data[32:40])
	h.FooterOffset = le.Uint64(data[40:48])
	h.TimeStartNs = le.Uint64(data[48:56])
	h.TimeEndNs = le.Uint64(data[56:64])
	return h, nil
}

// ValidateIndexHeader validates an index header's magic, version,
// endianness, event size, and offset bounds.
func ValidateIndexHeader(path string, fileLen int, h IndexHeader) error {
	if fileLen < IndexHeaderSize {
		return errTooSmall(path, fileLen, IndexHeaderSize)
	}
	if h.Magic != IndexMagic {
		return errInvalidMagic(path, h.Magic[:], IndexMagic)
	}
	if h.Version != FormatVersion {
		return errUnsupportedVersion(path, h.Version)
	}
	if h.Endian != EndianLittle {
		return errUnsupportedEndian(path, h.Endian)
	}
	if h.EventSize != IndexEventSize {
		return errInvalidEventSize(path, h.EventSize)
	}
	if h.EventsOffset >= uint64(fileLen) {
		return errInvalidOffset(path, h.EventsOffset, fileLen)
	}
	return nil
}

// PutIndexHeader encodes h into the first IndexHeaderSize bytes of dst.
func PutIndexHeader(dst []byte, h IndexHeader) {
	copy(dst[0:4], h.Magic[:])
	dst[4] = h.Endian
	dst[5] = h.Version
	dst[6] = h.Arch
	dst[7] = h.OS
	le.PutUint32(dst[8:12], h.Flags)
	le.PutUint32(dst[12:16], h.ThreadID)
	dst[16] = h.ClockType
	dst[17], dst[18], dst[19] = 0, 0, 0
	le.PutUint32(dst[20:24], 0)
	le.PutUint32(dst[24:28], h.EventSize)
	le.PutUint32(dst[28:32], h.EventCount)
	le.PutUint64(dst[32:40], h.EventsOffset)
	le.PutUint64(dst[40:48], h.FooterOffset)
	le.PutUint64(dst[48:56], h.TimeStartNs)
	le.PutUint64(dst[56:64], h.TimeEndNs)
}

// IndexEvent is the fixed 32-byte record making up the primary event
// stream.
type IndexEvent struct {
	TimestampNs uint64
	FunctionID  uint64
	ThreadID    uint32
	EventKind   EventKind
	CallDepth   uint32
	DetailSeq   uint32
}

// HasDetail reports whether this event is linked to a detail record.
func (e IndexEvent) HasDetail() bool {
	return e.DetailSeq != NoDetailSeq
}

// ParseIndexEvent reads a single 32-byte index event starting at offset 0
// of data. The caller is responsible for bounds-checking data's length.
func ParseIndexEvent(data []byte) IndexEvent {
	return IndexEvent{
		TimestampNs: le.Uint64(data[0:8]),
		FunctionID:  le.Uint64(data[8:16]),
		ThreadID:    le.Uint32(data[16:20]),
		EventKind:   EventKind(le.Uint32(data[20:24])),
		CallDepth:   le.Uint32(data[24:28]),
		DetailSeq:   le.Uint32(data[28:32]),
	}
}

// PutIndexEvent encodes e into the first IndexEventSize bytes of dst.
func PutIndexEvent(dst []byte, e IndexEvent) {
	le.PutUint64(dst[0:8], e.TimestampNs)
	le.PutUint64(dst[8:16], e.FunctionID)
	le.PutUint32(dst[16:20], e.ThreadID)
	le.PutUint32(dst[20:24], uint32(e.EventKind))
	le.PutUint32(dst[24:28], e.CallDepth)
	le.PutUint32(dst[28:32], e.DetailSeq)
}

// IndexFooter is the 64-byte trailer written on clean shutdown; its
// event_count supersedes the header's whenever its magic validates.
type IndexFooter struct {
	Magic        [4]byte
	Checksum     uint32
	EventCount   uint64
	TimeStartNs  uint64
	TimeEndNs    uint64
	BytesWritten uint64
}

func (f IndexFooter) valid() bool {
	return f.Magic == IndexFooterMagic
}

// ParseIndexFooter reads a 64-byte footer record, returning ok=false (not
// an error) when the magic does not validate — callers fall back to
// file-size-derived counts in that case.
func ParseIndexFooter(data []byte) (IndexFooter, bool) {
	if len(data) < IndexFooterSize {
		return IndexFooter{}, false
	}
	var f IndexFooter
	copy(f.Magic[:], data[0:4])
	if !f.valid() {
		return IndexFooter{}, false
	}
	f.Checksum = le.Uint32(data[4:8])
	f.EventCount = le.Uint64(data[8:16])
	f.TimeStartNs = le.Uint64(data[16:24])
	f.TimeEndNs = le.Uint64(data[24:32])
	f.BytesWritten = le.Uint64(data[32:40])
	return f, true
}

// PutIndexFooter encodes f into the first IndexFooterSize bytes of dst.
func PutIndexFooter(dst []byte, f IndexFooter) {
	copy(dst[0:4], IndexFooterMagic[:])
	le.PutUint32(dst[4:8], f.Checksum)
	le.PutUint64(dst[8:16], f.EventCount)
	le.PutUint64(dst[16:24], f.TimeStartNs)
	le.PutUint64(dst[24:32], f.TimeEndNs)
	le.PutUint64(dst[32:40], f.BytesWritten)
	// remaining 24 bytes reserved, left zero
}
