package sampletable

import "github.com/pkg/errors"

// ErrShortBox is returned when a fixed-layout box (mdhd, mvhd, tkhd,
// hdlr) is too short to hold its mandatory fields, regardless of
// policy — there is no meaningful partial result for these.
var ErrShortBox = errors.New("sampletable: box too short")

// Mdhd is the decoded form of an mdhd box.
type Mdhd struct {
	Timescale uint32
	Duration  uint64
	Language  string // empty if the packed language code is not decodable
}

// DecodeMdhd parses an mdhd box payload (version+flags already skipped).
// Version 0 reads timescale from data[8:12] and a 32-bit duration from
// data[12:16]; version 1 reads timescale from data[16:20] and a 64-bit
// duration from data[20:28]. The packed language follows the duration.
func DecodeMdhd(data []byte, version uint8) (Mdhd, error) {
	var m Mdhd
	var langOff int
	if version == 1 {
		if len(data) < 30 {
			return Mdhd{}, ErrShortBox
		}
		m.Timescale = be.Uint32(data[16:20])
		m.Duration = be.Uint64(data[20:28])
		langOff = 28
	} else {
		if len(data) < 18 {
			return Mdhd{}, ErrShortBox
		}
		m.Timescale = be.Uint32(data[8:12])
		m.Duration = uint64(be.Uint32(data[12:16]))
		langOff = 16
	}
	m.Language = decodeLanguage(be.Uint16(data[langOff : langOff+2]))
	return m, nil
}

// decodeLanguage unpacks the three 5-bit values + 0x60 bias ISO 639-2
// language code packed into a big-endian uint16 (spec.md section 4.4).
func decodeLanguage(v uint16) string {
	c1 := byte((v>>10)&0x1f) + 0x60
	c2 := byte((v>>5)&0x1f) + 0x60
	c3 := byte(v&0x1f) + 0x60
	if c1 < 'a' || c1 > 'z' || c2 < 'a' || c2 > 'z' || c3 < 'a' || c3 > 'z' {
		return ""
	}
	return string([]byte{c1, c2, c3})
}

// Mvhd is the decoded form of an mvhd box.
type Mvhd struct {
	Timescale uint32
	Duration  uint64
}

// DecodeMvhd parses an mvhd box payload (version+flags already skipped).
func DecodeMvhd(data []byte, version uint8) (Mvhd, error) {
	if version == 1 {
		if len(data) < 28 {
			return Mvhd{}, ErrShortBox
		}
		return Mvhd{Timescale: be.Uint32(data[16:20]), Duration: be.Uint64(data[20:28])}, nil
	}
	if len(data) < 16 {
		return Mvhd{}, ErrShortBox
	}
	return Mvhd{Timescale: be.Uint32(data[8:12]), Duration: uint64(be.Uint32(data[12:16]))}, nil
}

// Tkhd is the decoded form of a tkhd box, used by the metadata
// orchestrator for track identity and display dimensions.
type Tkhd struct {
	TrackID  uint32
	Duration uint64
	Width    uint32 // 16.16 fixed point; shift right 16 for pixels
	Height   uint32 // 16.16 fixed point
}

// DecodeTkhd parses a tkhd box payload (version+flags already skipped).
func DecodeTkhd(data []byte, version uint8) (Tkhd, error) {
	if version == 1 {
		if len(data) < 92 {
			return Tkhd{}, ErrShortBox
		}
		return Tkhd{
			TrackID:  be.Uint32(data[16:20]),
			Duration: be.Uint64(data[24:32]),
			Width:    be.Uint32(data[84:88]),
			Height:   be.Uint32(data[88:92]),
		}, nil
	}
	if len(data) < 80 {
		return Tkhd{}, ErrShortBox
	}
	return Tkhd{
		TrackID:  be.Uint32(data[8:12]),
		Duration: uint64(be.Uint32(data[16:20])),
		Width:    be.Uint32(data[72:76]),
		Height:   be.Uint32(data[76:80]),
	}, nil
}

// DecodeHdlr extracts the 4-byte handler type from an hdlr box payload
// (version+flags already skipped).
func DecodeHdlr(data []byte) (string, error) {
	if len(data) < 8 {
		return "", ErrShortBox
	}
	return string(data[4:8]), nil
}
