// Package sampletable decodes the ISOBMFF sample-table boxes (stts, stsz,
// stsc, stco/co64, stss, stsd, mdhd, mvhd, tkhd, hdlr) and resolves sample
// indices to absolute byte ranges within the file.
//
// The table decoders (stts, stsz, stsc, stco/co64, stss) come in two
// policy variants sharing one parsing kernel (spec.md section 4.4,
// design note 1); the fixed-layout header decoders and the stsd walk
// take no Policy. Strict aborts on the first
// short-read or inconsistent count; Lenient returns whatever prefix
// parsed cleanly. Thumbnail extraction uses Strict because it must trust
// the sample table it walks; subtitle extraction uses Lenient to survive
// the truncated stsz boxes real-world muxers are known to emit.
package sampletable

import "github.com/pkg/errors"

// Policy selects strict or lenient behavior for a decoder.
type Policy int

const (
	// Strict propagates any short-read or malformed entry as an error.
	Strict Policy = iota
	// Lenient returns the successfully parsed prefix and swallows a
	// malformed or truncated tail.
	Lenient
)

// ErrTruncated is wrapped into the error Strict decoders return when an
// entry cannot be fully read.
var ErrTruncated = errors.New("sampletable: truncated entry")

// ErrBadCount is wrapped into the error returned when a box's declared
// entry count cannot possibly fit in the remaining payload and the
// policy is Strict.
var ErrBadCount = errors.New("sampletable: entry count inconsistent with payload size")

// decodeFixedWidth runs the shared parsing kernel design note 1 asks for:
// read a big-endian uint32 count at the front of data (after any
// caller-skipped prefix), then decode `count` fixed-width entries via
// parseOne, stopping at the first truncated entry. Under Strict, a
// truncated or over-declared count is an error; under Lenient it yields
// the entries parsed so far.
func decodeFixedWidth[T any](data []byte, stride int, policy Policy, parseOne func([]byte) T) ([]T, error) {
	if len(data) < 4 {
		if policy == Strict {
			return nil, errors.Wrap(ErrTruncated, "missing entry count")
		}
		return nil, nil
	}
	count := be.Uint32(data[0:4])
	entries := data[4:]

	maxFit := len(entries) / stride
	if int(count) > maxFit {
		if policy == Strict {
			return nil, errors.Wrapf(ErrBadCount, "declared %d entries, payload fits %d", count, maxFit)
		}
		count = uint32(maxFit)
	}

	out := make([]T, 0, count)
	for i := uint32(0); i < count; i++ {
		off := int(i) * stride
		if off+stride > len(entries) {
			if policy == Strict {
				return nil, errors.Wrapf(ErrTruncated, "entry %d", i)
			}
			break
		}
		out = append(out, parseOne(entries[off:off+stride]))
	}
	return out, nil
}
