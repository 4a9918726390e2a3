package box

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func makeBox(t4 string, payload []byte) []byte {
	size := 8 + len(payload)
	out := make([]byte, 4)
	out[0] = byte(size >> 24)
	out[1] = byte(size >> 16)
	out[2] = byte(size >> 8)
	out[3] = byte(size)
	out = append(out, []byte(t4)...)
	out = append(out, payload...)
	return out
}

func TestReaderIteratesSiblings(t *testing.T) {
	buf := append(makeBox("free", []byte{1, 2, 3}), makeBox("skip", nil)...)

	r := NewReader(buf)
	require.True(t, r.Next())
	require.Equal(t, "free", r.Type().String())
	require.Equal(t, []byte{1, 2, 3}, r.Data())

	require.True(t, r.Next())
	require.Equal(t, "skip", r.Type().String())
	require.Empty(t, r.Data())

	require.False(t, r.Next())
	require.NoError(t, r.Err())
}

func TestReaderFullBoxStripsVersionFlags(t *testing.T) {
	payload := []byte{0x01, 0x00, 0x00, 0x2a, 0xde, 0xad, 0xbe, 0xef}
	buf := makeBox("mvhd", payload)

	r := NewReader(buf)
	require.True(t, r.Next())
	require.EqualValues(t, 1, r.Version())
	require.EqualValues(t, 0x00002a, r.Flags())
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, r.Data())
}

func TestReaderEnterExit(t *testing.T) {
	child := makeBox("tkhd", []byte{0, 0, 0, 0, 0xaa})
	buf := makeBox("trak", child)

	r := NewReader(buf)
	require.True(t, r.Next())
	require.Equal(t, "trak", r.Type().String())
	r.Enter()
	require.True(t, r.Next())
	require.Equal(t, "tkhd", r.Type().String())
	require.False(t, r.Next())
	r.Exit()
	require.False(t, r.Next())
}

func TestReaderExtendedSize(t *testing.T) {
	payload := make([]byte, 20)
	buf := make([]byte, 16)
	buf[3] = 1 // size == 1 signals a 64-bit extended size follows
	copy(buf[4:8], "mdat")
	total := uint64(16 + len(payload))
	for i := 0; i < 8; i++ {
		buf[8+i] = byte(total >> uint((7-i)*8))
	}
	buf = append(buf, payload...)

	r := NewReader(buf)
	require.True(t, r.Next())
	require.Equal(t, "mdat", r.Type().String())
	require.Len(t, r.Data(), 20)
}

func TestReaderMalformedShortHeader(t *testing.T) {
	r := NewReader([]byte{0, 0, 0})
	require.False(t, r.Next())
	require.ErrorIs(t, r.Err(), ErrMalformed)
}

func TestReaderMalformedOverrunsParent(t *testing.T) {
	buf := []byte{0, 0, 0, 100, 'f', 'r', 'e', 'e'}
	r := NewReader(buf)
	require.False(t, r.Next())
	require.ErrorIs(t, r.Err(), ErrMalformed)
}

func TestFindNestedPath(t *testing.T) {
	stbl := makeBox("stsd", []byte{0, 0, 0, 0, 1, 2})
	minf := makeBox("minf", stbl)
	mdia := makeBox("mdia", minf)

	data, found, err := Find(mdia, []string{"mdia", "minf", "stsd"})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{1, 2}, data)
}

func TestFindMissingSegment(t *testing.T) {
	buf := makeBox("free", nil)
	_, found, err := Find(buf, []string{"moov"})
	require.NoError(t, err)
	require.False(t, found)
}

func TestFindVersionedReportsVersion(t *testing.T) {
	payload := []byte{0x01, 0, 0, 0}
	buf := makeBox("tkhd", payload)
	_, version, found, err := FindVersioned(buf, []string{"tkhd"})
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 1, version)
}
