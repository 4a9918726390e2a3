package box

import "github.com/pkg/errors"

// maxDepth bounds the container nesting stack.
const maxDepth = 16

// maxSiblings guards iteration against maliciously crafted files that
// declare a huge number of zero-length boxes.
const maxSiblings = 100000

// ErrMalformed is returned when a box header violates the size rules in
// spec.md section 4.2: a declared total size smaller than its header, or
// one that overruns the parent slice.
var ErrMalformed = errors.New("box: malformed header")

// ErrTooManySiblings is returned when iteration exceeds maxSiblings within
// a single container level.
var ErrTooManySiblings = errors.New("box: too many sibling boxes")

type readerFrame struct {
	end    int
	boxEnd int
}

// Reader provides streaming, allocation-free parsing of ISOBMFF boxes
// over an in-memory buffer (typically the moov payload fetched once per
// extraction; see the moovlocate package).
type Reader struct {
	buf []byte
	pos int
	end int

	boxType   Type
	boxSize   uint64
	boxStart  int
	boxEnd    int
	dataStart int

	version uint8
	flags   uint32

	stack [maxDepth]readerFrame
	depth int

	err error
}

// NewReader creates a Reader over buf.
func NewReader(buf []byte) Reader {
	return Reader{buf: buf, end: len(buf)}
}

// Err returns the first error encountered by Next, if any.
func (r *Reader) Err() error { return r.err }

// Next advances to the next sibling box at the current nesting level.
// Returns false when there are no more boxes or a malformed header was
// encountered (check Err).
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	if r.boxEnd > r.pos {
		r.pos = r.boxEnd
	}
	if r.end-r.pos == 0 {
		return false
	}
	if r.end-r.pos < 8 {
		r.err = errors.Wrap(ErrMalformed, "short box header")
		return false
	}

	r.boxStart = r.pos
	size := uint64(be.Uint32(r.buf[r.pos:]))
	copy(r.boxType[:], r.buf[r.pos+4:r.pos+8])
	ptr := r.pos + 8
	headerSize := 8

	if size == 1 {
		if r.end-r.pos < 16 {
			r.err = errors.Wrap(ErrMalformed, "short extended box header")
			return false
		}
		size = be.Uint64(r.buf[ptr:])
		ptr += 8
		headerSize = 16
	}

	if size == 0 {
		size = uint64(r.end - r.pos)
	}

	if size < uint64(headerSize) {
		r.err = errors.Wrapf(ErrMalformed, "box %q declares size %d smaller than its header", r.boxType, size)
		return false
	}

	r.boxSize = size
	r.boxEnd = r.boxStart + int(size)

	if r.boxEnd > r.end {
		r.err = errors.Wrapf(ErrMalformed, "box %q total size exceeds parent", r.boxType)
		return false
	}

	if IsFullBox(r.boxType) {
		if r.boxEnd-ptr < 4 {
			r.err = errors.Wrapf(ErrMalformed, "box %q missing version/flags", r.boxType)
			return false
		}
		vf := be.Uint32(r.buf[ptr:])
		r.version = uint8(vf >> 24)
		r.flags = vf & 0x00ffffff
		ptr += 4
	} else {
		r.version = 0
		r.flags = 0
	}

	r.dataStart = ptr
	return true
}

// Type returns the current box's type.
func (r *Reader) Type() Type { return r.boxType }

// Size returns the current box's total size, including its header.
func (r *Reader) Size() uint64 { return r.boxSize }

// Version returns the version field of a full box (0 for a plain box).
func (r *Reader) Version() uint8 { return r.version }

// Flags returns the flags field of a full box (0 for a plain box).
func (r *Reader) Flags() uint32 { return r.flags }

// Offset returns the byte offset of the current box's start within the
// buffer passed to NewReader.
func (r *Reader) Offset() int { return r.boxStart }

// DataOffset returns the byte offset where the current box's payload
// begins (after any header and, for full boxes, version+flags).
func (r *Reader) DataOffset() int { return r.dataStart }

// Data returns the current box's payload. The slice aliases the buffer
// passed to NewReader and must not outlive it.
func (r *Reader) Data() []byte {
	return r.buf[r.dataStart:r.boxEnd]
}

// RawBox returns the current box including its header.
func (r *Reader) RawBox() []byte {
	return r.buf[r.boxStart:r.boxEnd]
}

// Depth returns the current nesting depth (0 at the top level).
func (r *Reader) Depth() int { return r.depth }

// Enter descends into the current container box. Call Next afterward to
// reach its first child, and Exit to return to the parent level.
func (r *Reader) Enter() {
	r.stack[r.depth] = readerFrame{end: r.end, boxEnd: r.boxEnd}
	r.depth++
	r.end = r.boxEnd
	r.pos = r.dataStart
	r.boxEnd = r.dataStart
}

// Exit returns to the parent container level entered by the matching
// Enter call.
func (r *Reader) Exit() {
	r.depth--
	f := r.stack[r.depth]
	r.end = f.end
	r.pos = f.boxEnd
	r.boxEnd = f.boxEnd
}

// Skip advances past n bytes of payload within the current container,
// e.g. the entry-count field preceding stsd or dref child boxes.
func (r *Reader) Skip(n int) {
	r.pos += n
	r.boxEnd = r.pos
}

// Find descends path (a dotted sequence of box-type tags, e.g.
// "trak.mdia.minf.stbl.stsd") starting at the top level of data and
// returns the innermost box's payload slice. It reports found=false if
// any segment of the path is absent. Find only considers the first
// match at each level, per spec.md section 4.2.
func Find(data []byte, path []string) (payload []byte, found bool, err error) {
	payload, _, found, err = FindVersioned(data, path)
	return payload, found, err
}

// FindVersioned behaves like Find but additionally reports the version
// field of the box the path resolved to (0 for a plain, non-full box).
// Callers decoding a full box whose layout depends on its version
// (mdhd, mvhd, tkhd) need this; Find is a convenience wrapper for the
// common case where version doesn't matter.
func FindVersioned(data []byte, path []string) (payload []byte, version uint8, found bool, err error) {
	if len(path) == 0 {
		return data, 0, true, nil
	}
	r := NewReader(data)
	return find(&r, path)
}

func find(r *Reader, path []string) ([]byte, uint8, bool, error) {
	target := path[0]
	count := 0
	for r.Next() {
		count++
		if count > maxSiblings {
			return nil, 0, false, ErrTooManySiblings
		}
		if r.Type().String() != target {
			continue
		}
		if len(path) == 1 {
			return r.Data(), r.Version(), true, nil
		}
		r.Enter()
		data, version, found, err := find(r, path[1:])
		r.Exit()
		return data, version, found, err
	}
	if err := r.Err(); err != nil {
		return nil, 0, false, err
	}
	return nil, 0, false, nil
}
