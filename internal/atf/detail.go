package atf

// DetailHeader is the 64-byte header of a detail.atf file.
type DetailHeader struct {
	Magic        [4]byte
	Endian       uint8
	Version      uint8
	Arch         uint8
	OS           uint8
	Flags        uint32
	ThreadID     uint32
	EventsOffset uint64
	EventCount   uint64
	BytesLength  uint64
	IndexSeqStart uint64
	IndexSeqEnd   uint64
}

// ParseDetailHeader reads the first DetailHeaderSize bytes of data without
// validating them; call ValidateDetailHeader separately.
func ParseDetailHeader(data []byte) (DetailHeader, error) {
	if len(data) < DetailHeaderSize {
		return DetailHeader{}, errTooSmall("detail header", len(data), DetailHeaderSize)
	}
	var h DetailHeader
	copy(h.Magic[:], data[0:4])
	h.Endian = data[4]
	h.Version = data[5]
	h.Arch = data[6]
	h.OS = data[7]
	h.Flags = le.Uint32(data[8:12])
	h.ThreadID = le.Uint32(data[12:16])
	// data[16:20] reserved
	h.EventsOffset = le.Uint64(data[20:28])
	h.EventCount = le.Uint64(data[28:36])
	h.BytesLength = le.Uint64(data[36:44])
	h.IndexSeqStart = le.Uint64(data[44:52])
	h.IndexSeqEnd = le.Uint64(data[52:60])
	return h, nil
}

// ValidateDetailHeader validates a detail header's magic, version,
// endianness, and offset bounds. Detail headers carry no fixed event size
// to check.
func ValidateDetailHeader(path string, fileLen int, h DetailHeader) error {
	if fileLen < DetailHeaderSize {
		return errTooSmall(path, fileLen, DetailHeaderSize)
	}
	if h.Magic != DetailMagic {
		return errInvalidMagic(path, h.Magic[:], DetailMagic)
	}
	if h.Version != FormatVersion {
		return errUnsupportedVersion(path, h.Version)
	}
	if h.Endian != EndianLittle {
		return errUnsupportedEndian(path, h.Endian)
	}
	if h.EventsOffset >= uint64(fileLen) {
		return errInvalidOffset(path, h.EventsOffset, fileLen)
	}
	return nil
}

// PutDetailHeader encodes h into the first DetailHeaderSize bytes of dst.
func PutDetailHeader(dst []byte, h DetailHeader) {
	copy(dst[0:4], h.Magic[:])
	dst[4] = h.Endian
	dst[5] = h.Version
	dst[6] = h.Arch
	dst[7] = h.OS
	le.PutUint32(dst[8:12], h.Flags)
	le.PutUint32(dst[12:16], h.ThreadID)
	le.PutUint32(dst[16:20], 0)
	le.PutUint64(dst[20:28], h.EventsOffset)
	le.PutUint64(dst[28:36], h.EventCount)
	le.PutUint64(dst[36:44], h.BytesLength)
	le.PutUint64(dst[44:52], h.IndexSeqStart)
	le.PutUint64(dst[52:60], h.IndexSeqEnd)
}

// DetailEventHeader is the fixed 24-byte header prefixing every variable
// length detail record.
type DetailEventHeader struct {
	TotalLength uint32
	EventType   DetailEventType
	Flags       uint16
	IndexSeq    uint32
	ThreadID    uint32
	Timestamp   uint64
}

// ParseDetailEventHeader reads a 24-byte header from the start of data. The
// caller must ensure len(data) >= DetailEventHeaderSize.
func ParseDetailEventHeader(data []byte) DetailEventHeader {
	return DetailEventHeader{
		TotalLength: le.Uint32(data[0:4]),
		EventType:   DetailEventType(le.Uint16(data[4:6])),
		Flags:       le.Uint16(data[6:8]),
		IndexSeq:    le.Uint32(data[8:12]),
		ThreadID:    le.Uint32(data[12:16]),
		Timestamp:   le.Uint64(data[16:24]),
	}
}

// PutDetailEventHeader encodes h into the first DetailEventHeaderSize bytes
// of dst.
func PutDetailEventHeader(dst []byte, h DetailEventHeader) {
	le.PutUint32(dst[0:4], h.TotalLength)
	le.PutUint16(dst[4:6], uint16(h.EventType))
	le.PutUint16(dst[6:8], h.Flags)
	le.PutUint32(dst[8:12], h.IndexSeq)
	le.PutUint32(dst[12:16], h.ThreadID)
	le.PutUint64(dst[16:24], h.Timestamp)
}

// DetailEvent is a parsed variable-length detail record. Payload is a slice
// directly into the caller-supplied backing buffer (typically a memory
// map); it is never copied.
type DetailEvent struct {
	Header  DetailEventHeader
	Payload []byte
}

// ParseDetailEvent parses one detail event from the start of data,
// returning false when data is too short to hold a header, or when the
// declared total length is internally inconsistent (< header size, or
// larger than the remaining bytes). This is the corruption boundary the
// detail-file indexer stops at.
func ParseDetailEvent(data []byte) (DetailEvent, bool) {
	if len(data) < DetailEventHeaderSize {
		return DetailEvent{}, false
	}
	h := ParseDetailEventHeader(data)
	if h.TotalLength < DetailEventHeaderSize || int(h.TotalLength) > len(data) {
		return DetailEvent{}, false
	}
	return DetailEvent{Header: h, Payload: data[DetailEventHeaderSize:h.TotalLength]}, true
}

// DetailFooter is the 64-byte trailer written on clean shutdown.
type DetailFooter struct {
	Magic       [4]byte
	Checksum    uint32
	EventCount  uint64
	BytesLength uint64
	TimeStartNs uint64
	TimeEndNs   uint64
}

func (f DetailFooter) valid() bool {
	return f.Magic == DetailFooterMagic
}

// ParseDetailFooter reads a 64-byte footer record, returning ok=false when
// the magic does not validate.
func ParseDetailFooter(data []byte) (DetailFooter, bool) {
	if len(data) < DetailFooterSize {
		return DetailFooter{}, false
	}
	var f DetailFooter
	copy(f.Magic[:], data[0:4])
	if !f.valid() {
		return DetailFooter{}, false
	}
	f.Checksum = le.Uint32(data[4:8])
	f.EventCount = le.Uint64(data[8:16])
	f.BytesLength = le.Uint64(data[16:24])
	f.TimeStartNs = le.Uint64(data[24:32])
	f.TimeEndNs = le.Uint64(data[32:40])
	return f, true
}

// PutDetailFooter encodes f into the first DetailFooterSize bytes of dst.
func PutDetailFooter(dst []byte, f DetailFooter) {
	copy(dst[0:4], DetailFooterMagic[:])
	le.PutUint32(dst[4:8], f.Checksum)
	le.PutUint64(dst[8:16], f.EventCount)
	le.PutUint64(dst[16:24], f.BytesLength)
	le.PutUint64(dst[24:32], f.TimeStartNs)
	le.PutUint64(dst[32:40], f.TimeEndNs)
}
