// Package atf defines the Adaptive Trace Format v2 (ATF v2) on-disk byte
// layout: fixed-size index headers/events/footers, variable-length detail
// events, and the validation rules that every reader applies before
// trusting a mapped file.
//
// All multi-byte fields are little-endian. Go has no packed-struct
// equivalent to C's repr(C, packed), so every type here is parsed out of a
// byte slice by hand rather than cast from a pointer; this keeps the
// layout exact regardless of platform alignment rules.
package atf

import "encoding/binary"

const (
	IndexHeaderSize       = 64
	IndexEventSize        = 32
	IndexFooterSize       = 64
	DetailHeaderSize      = 64
	DetailEventHeaderSize = 24
	DetailFooterSize      = 64
)

// Fixed-size byte-array declarations restating the record sizes above; they
// do not compare the constants against any Go struct layout.
var (
	_ [IndexHeaderSize]byte       = [IndexHeaderSize]byte{}
	_ [IndexEventSize]byte        = [IndexEventSize]byte{}
	_ [IndexFooterSize]byte       = [IndexFooterSize]byte{}
	_ [DetailHeaderSize]byte      = [DetailHeaderSize]byte{}
	_ [DetailEventHeaderSize]byte = [DetailEventHeaderSize]byte{}
	_ [DetailFooterSize]byte      = [DetailFooterSize]byte{}
)

var (
	IndexMagic        = [4]byte{'A', 'T', 'I', '2'}
	IndexFooterMagic  = [4]byte{'2', 'I', 'T', 'A'}
	DetailMagic       = [4]byte{'A', 'T', 'D', '2'}
	DetailFooterMagic = [4]byte{'2', 'D', 'T', 'A'}
)

const (
	EndianLittle = 0x01
	FormatVersion = 1
)

// Arch and OS byte tags carried in file headers for informational purposes;
// readers do not reject on these, only on magic/version/endian/event size.
const (
	ArchX86_64 = 1
	ArchArm64  = 2

	OSiOS     = 1
	OSAndroid = 2
	OSMacOS   = 3
	OSLinux   = 4
	OSWindows = 5
)

const (
	ClockMachContinuous = 1
	ClockQPC            = 2
	ClockBoottime       = 3
)

const NoDetailSeq uint32 = 0xFFFFFFFF

const IndexFlagHasDetailFile uint32 = 1 << 0

// EventKind tags an index event's nature. Unknown tags must never panic a
// reader; the raw value is kept as-is in the EventKind.
type EventKind uint32

const (
	KindCall      EventKind = 1
	KindReturn    EventKind = 2
	KindException EventKind = 3
)

// String renders a human-readable label, falling back to "unknown" for
// forward-compatible tags this build does not know about.
func (k EventKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	case KindException:
		return "exception"
	default:
		return "unknown"
	}
}

// DetailEventType tags a detail record's payload shape.
type DetailEventType uint16

const (
	DetailFunctionCall   DetailEventType = 3
	DetailFunctionReturn DetailEventType = 4
)

func (t DetailEventType) String() string {
	switch t {
	case DetailFunctionCall:
		return "function_call"
	case DetailFunctionReturn:
		return "function_return"
	default:
		return "unknown"
	}
}

var le = binary.LittleEndian
