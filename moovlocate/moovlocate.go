// Package moovlocate finds the moov box within a file whose layout is
// not known in advance, without reading the whole file into memory. It
// implements the four-phase-plus-fallback search in spec.md section
// 4.3, grounded in the streaming top-level box scan the teacher's
// Scanner type performs over an io.ReadSeeker.
package moovlocate

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/silvermine/mp4probe/box"
	"github.com/silvermine/mp4probe/stream"
)

// ErrNotFound is returned when moov cannot be located by any phase,
// including the linear-scan fallback.
var ErrNotFound = errors.New("moovlocate: moov box not found")

const (
	phase1Window = 8 * 1024
	phase3Window = 512 * 1024
)

// Result is the located moov box: its payload, ready to hand to
// box.NewReader, and the byte range it occupied in the source (useful
// for diagnostics and for callers that also want the raw bytes).
type Result struct {
	Payload []byte
	Offset  int64
	Size    int64
	Phase   int // 1-5, which phase found it; see spec.md section 4.3
}

// Locate runs the phased search against src and returns the moov
// payload. src's position is left undefined on return; callers that
// need a specific position afterward must Seek explicitly.
func Locate(src stream.Source) (*Result, error) {
	size, sizeKnown, err := src.Size()
	if err != nil {
		size, sizeKnown = 0, false
	}

	if r, err := scanWindow(src, 0, phase1Window, 1); err != nil {
		return nil, err
	} else if r != nil {
		return r, nil
	}

	if sizeKnown && size > 16*1024 {
		tailStart := size - phase1Window
		if r, err := scanTailWindow(src, tailStart, size, 2); err != nil {
			return nil, err
		} else if r != nil {
			return r, nil
		}
	}

	if r, err := scanWindow(src, 0, phase3Window, 3); err != nil {
		return nil, err
	} else if r != nil {
		return r, nil
	}

	if sizeKnown && size > phase3Window*2 {
		tailStart := size - phase3Window
		if r, err := scanTailWindow(src, tailStart, size, 4); err != nil {
			return nil, err
		} else if r != nil {
			return r, nil
		}
	}

	log.Debug().Msg("moovlocate: falling back to linear scan")
	r, err := linearScan(src, size, sizeKnown)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// scanWindow reads up to windowSize bytes starting at offset and scans
// complete top-level boxes within that window (phases 1 and 3).
func scanWindow(src stream.Source, offset int64, windowSize int, phase int) (*Result, error) {
	buf, err := readWindow(src, offset, windowSize)
	if err != nil {
		return nil, err
	}
	return scanBuf(buf, offset, phase, false)
}

// scanTailWindow reads the window ending at fileSize and scans only
// boxes that are completely contained within it — a box whose header
// falls inside the window but whose declared size runs past fileSize,
// or whose start is unknown because it precedes the window, is
// skipped (phases 2 and 4, per spec.md section 4.3 step 2: "scan any
// completely contained top-level box whose declared size fits").
func scanTailWindow(src stream.Source, start, fileSize int64, phase int) (*Result, error) {
	if start < 0 {
		start = 0
	}
	buf, err := readWindow(src, start, int(fileSize-start))
	if err != nil {
		return nil, err
	}
	return scanBuf(buf, start, phase, true)
}

func readWindow(src stream.Source, offset int64, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if _, err := src.Seek(offset, stream.FromStart); err != nil {
		return nil, errors.Wrap(err, "moovlocate: seek")
	}
	buf := make([]byte, n)
	read := 0
	for read < n {
		k, err := src.Read(buf[read:])
		read += k
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "moovlocate: read")
		}
		if k == 0 {
			break
		}
	}
	return buf[:read], nil
}

// scanBuf walks top-level box headers within buf (which represents
// bytes starting at bufOffset in the source) looking for moov. When
// tailMode is true, the window may begin in the middle of a box, so
// every byte offset is tried as a moov header start, and a moov whose
// declared total size would run past the end of buf is treated as
// not-contained and skipped rather than erroring.
func scanBuf(buf []byte, bufOffset int64, phase int, tailMode bool) (*Result, error) {
	pos := 0
	for pos+8 <= len(buf) {
		size := int64(be32(buf[pos : pos+4]))
		var t box.Type
		copy(t[:], buf[pos+4:pos+8])
		headerSize := 8

		if tailMode && t != box.TypeMoov {
			pos++
			continue
		}
		if size == 1 {
			if pos+16 > len(buf) {
				break
			}
			size = int64(be64(buf[pos+8 : pos+16]))
			headerSize = 16
		}
		if size == 0 {
			size = int64(len(buf) - pos)
		}
		if size < int64(headerSize) {
			if tailMode {
				pos++
				continue
			}
			break
		}

		boxEnd := pos + int(size)
		if boxEnd > len(buf) {
			if tailMode {
				pos += headerSize
				continue
			}
			break
		}

		if t == box.TypeMoov {
			log.Debug().Int("phase", phase).Int64("offset", bufOffset+int64(pos)).Msg("moovlocate: found moov")
			return &Result{
				Payload: buf[pos+headerSize : boxEnd],
				Offset:  bufOffset + int64(pos),
				Size:    size,
				Phase:   phase,
			}, nil
		}

		pos = boxEnd
	}
	return nil, nil
}

// linearScan reads one header at a time from offset 0, jumping by each
// box's total_size, bounded by fileSize when known (spec.md section
// 4.3 step 5). When fileSize is unknown, scanning stops at the first
// short read.
func linearScan(src stream.Source, fileSize int64, sizeKnown bool) (*Result, error) {
	var hdr [16]byte
	offset := int64(0)

	for {
		if sizeKnown && offset >= fileSize {
			return nil, nil
		}
		if _, err := src.Seek(offset, stream.FromStart); err != nil {
			return nil, errors.Wrap(err, "moovlocate: seek")
		}
		if err := stream.ReadFull(src, hdr[:8]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, nil
			}
			return nil, errors.Wrap(err, "moovlocate: read header")
		}

		size := int64(be32(hdr[:4]))
		var t box.Type
		copy(t[:], hdr[4:8])
		headerSize := 8

		if size == 1 {
			if err := stream.ReadFull(src, hdr[8:16]); err != nil {
				return nil, errors.Wrap(err, "moovlocate: read extended size")
			}
			size = int64(be64(hdr[8:16]))
			headerSize = 16
		}
		if size == 0 {
			if !sizeKnown {
				return nil, nil
			}
			size = fileSize - offset
		}
		if size < int64(headerSize) {
			return nil, errors.Wrap(ErrNotFound, "malformed header during linear scan")
		}

		if t == box.TypeMoov {
			payload := make([]byte, size-int64(headerSize))
			if err := stream.ReadAt(src, payload, offset+int64(headerSize)); err != nil {
				return nil, errors.Wrap(err, "moovlocate: read moov payload")
			}
			log.Debug().Int64("offset", offset).Msg("moovlocate: found moov via linear scan")
			return &Result{Payload: payload, Offset: offset, Size: size, Phase: 5}, nil
		}

		offset += size
	}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func be64(b []byte) uint64 {
	return uint64(be32(b[:4]))<<32 | uint64(be32(b[4:8]))
}
