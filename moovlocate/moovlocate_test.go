package moovlocate

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silvermine/mp4probe/stream"
)

// memSource is a minimal in-memory stream.Source for exercising the
// locator without touching the filesystem or network.
type memSource struct {
	data []byte
	pos  int64
}

func (m *memSource) Read(buf []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(buf, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memSource) Seek(offset int64, whence stream.Whence) (int64, error) {
	switch whence {
	case stream.FromStart:
		m.pos = offset
	case stream.FromCurrent:
		m.pos += offset
	case stream.FromEnd:
		m.pos = int64(len(m.data)) + offset
	}
	return m.pos, nil
}

func (m *memSource) Size() (int64, bool, error) { return int64(len(m.data)), true, nil }
func (m *memSource) Stats() stream.Stats        { return stream.Stats{} }

func box(boxType string, payload []byte) []byte {
	size := 8 + len(payload)
	out := make([]byte, 0, size)
	out = append(out, byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
	out = append(out, boxType...)
	out = append(out, payload...)
	return out
}

func TestLocatePhase1(t *testing.T) {
	ftyp := box("ftyp", make([]byte, 16))
	moovPayload := []byte("hello moov contents")
	moov := box("moov", moovPayload)
	mdat := box("mdat", make([]byte, 1024))

	data := append(append(ftyp, moov...), mdat...)
	src := &memSource{data: data}

	r, err := Locate(src)
	require.NoError(t, err)
	require.Equal(t, 1, r.Phase)
	require.Equal(t, moovPayload, r.Payload)
}

func TestLocatePhase2TailScan(t *testing.T) {
	ftyp := box("ftyp", make([]byte, 16))
	mdat := box("mdat", make([]byte, 20*1024))
	moovPayload := make([]byte, 64)
	copy(moovPayload, "tail moov")
	moov := box("moov", moovPayload)

	data := append(append(ftyp, mdat...), moov...)
	src := &memSource{data: data}

	r, err := Locate(src)
	require.NoError(t, err)
	require.Equal(t, 2, r.Phase)
	require.Equal(t, moovPayload, r.Payload)
}

func TestLocateNotFound(t *testing.T) {
	ftyp := box("ftyp", make([]byte, 16))
	mdat := box("mdat", make([]byte, 1024))
	data := append(ftyp, mdat...)
	src := &memSource{data: data}

	_, err := Locate(src)
	require.ErrorIs(t, err, ErrNotFound)
}
