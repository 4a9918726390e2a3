package sampletable

import "encoding/binary"

var be = binary.BigEndian

// SttsEntry is one time-to-sample run: Count consecutive samples each
// last Duration ticks.
type SttsEntry struct {
	Count    uint32
	Duration uint32
}

// DecodeStts parses an stts box payload (version+flags already skipped
// by the caller, matching spec.md section 4.4's "skip the 4-byte
// version+flags prefix" instruction).
func DecodeStts(data []byte, policy Policy) ([]SttsEntry, error) {
	return decodeFixedWidth(data, 8, policy, func(b []byte) SttsEntry {
		return SttsEntry{Count: be.Uint32(b[0:4]), Duration: be.Uint32(b[4:8])}
	})
}

// StscEntry is one sample-to-chunk run.
type StscEntry struct {
	FirstChunk          uint32
	SamplesPerChunk     uint32
	SampleDescriptionID uint32
}

// DecodeStsc parses an stsc box payload.
func DecodeStsc(data []byte, policy Policy) ([]StscEntry, error) {
	return decodeFixedWidth(data, 12, policy, func(b []byte) StscEntry {
		return StscEntry{
			FirstChunk:          be.Uint32(b[0:4]),
			SamplesPerChunk:     be.Uint32(b[4:8]),
			SampleDescriptionID: be.Uint32(b[8:12]),
		}
	})
}

// DecodeStss parses an stss box payload into 1-indexed sync sample
// numbers.
func DecodeStss(data []byte, policy Policy) ([]uint32, error) {
	return decodeFixedWidth(data, 4, policy, func(b []byte) uint32 {
		return be.Uint32(b[0:4])
	})
}

// DecodeStco parses an stco box payload, widening each 32-bit chunk
// offset to uint64.
func DecodeStco(data []byte, policy Policy) ([]uint64, error) {
	return decodeFixedWidth(data, 4, policy, func(b []byte) uint64 {
		return uint64(be.Uint32(b[0:4]))
	})
}

// DecodeCo64 parses a co64 box payload.
func DecodeCo64(data []byte, policy Policy) ([]uint64, error) {
	return decodeFixedWidth(data, 8, policy, func(b []byte) uint64 {
		return be.Uint64(b[0:8])
	})
}

// Stsz is the decoded form of an stsz box: either every sample shares
// DefaultSize (Sizes is nil), or each sample's size is listed explicitly
// in Sizes.
type Stsz struct {
	DefaultSize uint32
	SampleCount uint32
	Sizes       []uint32 // nil when DefaultSize != 0
}

// Size returns the size of sample i (0-indexed).
func (s Stsz) Size(i int) uint32 {
	if s.DefaultSize != 0 {
		return s.DefaultSize
	}
	if i < 0 || i >= len(s.Sizes) {
		return 0
	}
	return s.Sizes[i]
}

// Len returns the number of samples this box describes: SampleCount in
// the constant-size form, or the number of entries successfully parsed
// in the per-sample form (which, under Lenient, may be less than the
// box's declared SampleCount).
func (s Stsz) Len() int {
	if s.DefaultSize != 0 {
		return int(s.SampleCount)
	}
	return len(s.Sizes)
}

// DecodeStsz parses an stsz box payload.
func DecodeStsz(data []byte, policy Policy) (Stsz, error) {
	if len(data) < 8 {
		if policy == Strict {
			return Stsz{}, ErrTruncated
		}
		return Stsz{}, nil
	}
	defaultSize := be.Uint32(data[0:4])
	sampleCount := be.Uint32(data[4:8])
	if defaultSize != 0 {
		return Stsz{DefaultSize: defaultSize, SampleCount: sampleCount}, nil
	}
	sizes, err := decodeFixedWidth(data[4:], 4, policy, func(b []byte) uint32 {
		return be.Uint32(b[0:4])
	})
	if err != nil {
		return Stsz{}, err
	}
	return Stsz{SampleCount: sampleCount, Sizes: sizes}, nil
}
