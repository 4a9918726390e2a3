// Package box implements low-level ISOBMFF (MP4-family) box parsing: box
// header decoding, sibling iteration bounded by a parent slice, and a
// dotted-path finder for locating nested boxes without walking the whole
// tree by hand.
//
// The package never allocates a tree; callers hold a buffer (typically the
// moov payload) and walk it with Reader, or use Find for one-shot lookups.
package box

import "encoding/binary"

var be = binary.BigEndian

// Type is a 4-byte box type identifier.
type Type [4]byte

func (t Type) String() string {
	return string(t[:])
}

// Known box types this package and its callers need to recognize.
var (
	TypeFtyp = Type{'f', 't', 'y', 'p'}
	TypeMoov = Type{'m', 'o', 'o', 'v'}
	TypeMvhd = Type{'m', 'v', 'h', 'd'}
	TypeTrak = Type{'t', 'r', 'a', 'k'}
	TypeTkhd = Type{'t', 'k', 'h', 'd'}
	TypeMdia = Type{'m', 'd', 'i', 'a'}
	TypeMdhd = Type{'m', 'd', 'h', 'd'}
	TypeHdlr = Type{'h', 'd', 'l', 'r'}
	TypeMinf = Type{'m', 'i', 'n', 'f'}
	TypeVmhd = Type{'v', 'm', 'h', 'd'}
	TypeSmhd = Type{'s', 'm', 'h', 'd'}
	TypeDinf = Type{'d', 'i', 'n', 'f'}
	TypeDref = Type{'d', 'r', 'e', 'f'}
	TypeStbl = Type{'s', 't', 'b', 'l'}
	TypeStsd = Type{'s', 't', 's', 'd'}
	TypeStts = Type{'s', 't', 't', 's'}
	TypeStsc = Type{'s', 't', 's', 'c'}
	TypeStsz = Type{'s', 't', 's', 'z'}
	TypeStco = Type{'s', 't', 'c', 'o'}
	TypeCo64 = Type{'c', 'o', '6', '4'}
	TypeStss = Type{'s', 't', 's', 's'}
	// Metadata boxes
	TypeMeta = Type{'m', 'e', 't', 'a'}
	TypeUdta = Type{'u', 'd', 't', 'a'}
	TypeIlst = Type{'i', 'l', 's', 't'}
	// Data boxes
	TypeMdat = Type{'m', 'd', 'a', 't'}
	TypeFree = Type{'f', 'r', 'e', 'e'}
	TypeSkip = Type{'s', 'k', 'i', 'p'}
	// Sample entry boxes
	TypeAvc1 = Type{'a', 'v', 'c', '1'}
	TypeAvc3 = Type{'a', 'v', 'c', '3'}
	TypeHvc1 = Type{'h', 'v', 'c', '1'}
	TypeMp4v = Type{'m', 'p', '4', 'v'}
	TypeAvcC = Type{'a', 'v', 'c', 'C'}
	TypeMp4a = Type{'m', 'p', '4', 'a'}
	TypeEsds = Type{'e', 's', 'd', 's'}
)

// IsFullBox reports whether t carries the 4-byte version+flags prefix
// ("full box" in ISO/IEC 14496-12 terms).
func IsFullBox(t Type) bool {
	switch t {
	case TypeMvhd, TypeTkhd, TypeMdhd, TypeHdlr,
		TypeVmhd, TypeSmhd, TypeDref, TypeStsd,
		TypeStts, TypeStsc, TypeStsz, TypeStco,
		TypeCo64, TypeStss, TypeMeta, TypeEsds:
		return true
	}
	return false
}

// IsContainerBox reports whether t holds child boxes laid out end-to-end
// in its payload (as opposed to a fixed or count-prefixed data layout).
func IsContainerBox(t Type) bool {
	switch t {
	case TypeMoov, TypeTrak, TypeMdia, TypeMinf,
		TypeDinf, TypeStbl, TypeUdta, TypeMeta, TypeIlst:
		return true
	}
	return false
}

// Header is a parsed, not-yet-entered box header.
type Header struct {
	Type       Type
	HeaderSize int    // 8 or 16
	TotalSize  uint64 // includes the header
	Offset     int64  // absolute offset of the box start, stream mode only
}

// DataSize returns the size of the box's payload, excluding the header.
func (h Header) DataSize() uint64 {
	return h.TotalSize - uint64(h.HeaderSize)
}
