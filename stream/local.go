package stream

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// LocalSource adapts an *os.File to the Source contract. It performs no caching of its own; the
// OS page cache already serves repeated reads of the same region.
type LocalSource struct {
	f    *os.File
	size int64
	known bool
}

// OpenLocal opens path and wraps it as a Source.
func OpenLocal(path string) (*LocalSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "stream: open local file")
	}
	ls := &LocalSource{f: f}
	if fi, err := f.Stat(); err == nil {
		ls.size = fi.Size()
		ls.known = true
	}
	return ls, nil
}

// NewLocalSource wraps an already-open file. Ownership of f (and
// responsibility for closing it) stays with the caller.
func NewLocalSource(f *os.File) *LocalSource {
	ls := &LocalSource{f: f}
	if fi, err := f.Stat(); err == nil {
		ls.size = fi.Size()
		ls.known = true
	}
	return ls
}

// Close closes the underlying file.
func (l *LocalSource) Close() error {
	return l.f.Close()
}

// Read implements Source.
func (l *LocalSource) Read(buf []byte) (int, error) {
	n, err := l.f.Read(buf)
	if err != nil && err != io.EOF {
		return n, errors.Wrap(err, "stream: local read")
	}
	return n, err
}

// Seek implements Source.
func (l *LocalSource) Seek(offset int64, whence Whence) (int64, error) {
	var w int
	switch whence {
	case FromStart:
		w = io.SeekStart
	case FromCurrent:
		w = io.SeekCurrent
	case FromEnd:
		w = io.SeekEnd
	default:
		return 0, errors.Errorf("stream: invalid whence %d", whence)
	}
	pos, err := l.f.Seek(offset, w)
	if err != nil {
		return 0, errors.Wrap(err, "stream: local seek")
	}
	return pos, nil
}

// Size implements Source.
func (l *LocalSource) Size() (int64, bool, error) {
	return l.size, l.known, nil
}

// Stats implements Source. Local sources never touch the network, so
// every field is permanently zero.
func (l *LocalSource) Stats() Stats {
	return Stats{}
}
