package subtitle

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/stream"
)

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

func boxHdr(tag string, body []byte) []byte {
	out := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	copy(out[4:8], tag)
	copy(out[8:], body)
	return out
}

func fullBox(tag string, version byte, body []byte) []byte {
	vf := append([]byte{version, 0, 0, 0}, body...)
	return boxHdr(tag, vf)
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// buildMoovWithTx3gTrack assembles a minimal moov with one sbtl-handler
// track holding a single tx3g sample at a known absolute offset, plus
// the mdat bytes that back it.
func buildMoovWithTx3gTrack(sampleOffset uint32, sample []byte) []byte {
	stsdEntry := boxHdr("tx3g", make([]byte, 18))
	stsdBody := append(u32(1), stsdEntry...)
	stsd := fullBox("stsd", 0, stsdBody)

	stts := fullBox("stts", 0, concat(u32(1), u32(1), u32(1000)))
	stsz := fullBox("stsz", 0, concat(u32(0), u32(1), u32(uint32(len(sample)))))
	stsc := fullBox("stsc", 0, concat(u32(1), u32(1), u32(1), u32(1)))
	stco := fullBox("stco", 0, concat(u32(1), u32(sampleOffset)))

	stbl := boxHdr("stbl", concat(stsd, stts, stsz, stsc, stco))
	minf := boxHdr("minf", stbl)
	hdlr := fullBox("hdlr", 0, append(make([]byte, 4), []byte("sbtl")...))

	mdhdBody := make([]byte, 18)
	binary.BigEndian.PutUint32(mdhdBody[8:12], 1000)
	mdia := boxHdr("mdia", concat(fullBox("mdhd", 0, mdhdBody), hdlr, minf))

	tkhdBody := make([]byte, 80)
	binary.BigEndian.PutUint32(tkhdBody[8:12], 3)
	tkhd := fullBox("tkhd", 0, tkhdBody)

	trak := boxHdr("trak", concat(tkhd, mdia))
	mvhd := fullBox("mvhd", 0, concat(u32(0), u32(0), u32(1000), u32(1000)))

	return boxHdr("moov", concat(mvhd, trak))
}

func tx3gPayload(text string) []byte {
	buf := make([]byte, 2+len(text))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(text)))
	copy(buf[2:], text)
	return buf
}

func TestExtractSubtitlesEndToEnd(t *testing.T) {
	sample := tx3gPayload("hello there")
	ftyp := boxHdr("ftyp", make([]byte, 8))
	mdat := boxHdr("mdat", make([]byte, 1024))

	// moov's encoded length doesn't depend on the stco value it stores
	// (a fixed-width uint32 field), so build once to learn the layout,
	// then rebuild with the real sample offset.
	probe := buildMoovWithTx3gTrack(0, sample)
	sampleOffset := uint32(len(ftyp) + len(probe) + len(mdat))
	moov := buildMoovWithTx3gTrack(sampleOffset, sample)
	require.Len(t, moov, len(probe))

	data := concat(ftyp, moov, mdat, sample)
	src := &memSource{data: data}

	ex, cancel := extract.New(context.Background(), 0)
	defer cancel()

	cues, err := Extract(ex, src, Options{})
	require.NoError(t, err)
	require.Len(t, cues, 1)
	require.Equal(t, uint32(3), cues[0].TrackID)
	require.Equal(t, "hello there", cues[0].Text)
	require.InDelta(t, 0.0, cues[0].StartSeconds, 0.0001)
	require.InDelta(t, DefaultEndTimeGap, cues[0].EndSeconds, 0.0001)
}

func TestExtractSubtitlesNoTrackIsNotFound(t *testing.T) {
	moov := boxHdr("moov", fullBox("mvhd", 0, concat(u32(0), u32(0), u32(1000), u32(1000))))
	data := concat(boxHdr("ftyp", make([]byte, 8)), moov)
	src := &memSource{data: data}

	ex, cancel := extract.New(context.Background(), 0)
	defer cancel()

	_, err := Extract(ex, src, Options{})
	require.ErrorIs(t, err, extract.ErrNotFound)
}
