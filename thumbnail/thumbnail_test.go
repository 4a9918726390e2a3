package thumbnail

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/sampletable"
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

type fakeDecoder struct{}

func (fakeDecoder) Decode(avcc *sampletable.AvcC, sample []byte) (RawImage, error) {
	return RawImage{Width: 16, Height: 16, PixelFormat: "rgb24", Pixels: sample}, nil
}

type fakeTransform struct{}

func (fakeTransform) Transform(img RawImage, maxW, maxH, quality int) ([]byte, error) {
	return []byte("jpeg-bytes"), nil
}

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

// buildMoov constructs a minimal but structurally complete moov with
// one avc1 video track, one chunk, and four samples of size 10 each.
func buildMoov() []byte {
	avcc := boxHdr("avcC", []byte{1, 0x42, 0, 30, 0xff, 0xe0, 0x00})

	visualBody := make([]byte, 78)
	binary.BigEndian.PutUint16(visualBody[24:26], 16)
	binary.BigEndian.PutUint16(visualBody[26:28], 16)
	avc1 := boxHdr("avc1", append(visualBody, avcc...))

	stsdBody := append(u32(1), avc1...)
	stsd := fullBox("stsd", 0, stsdBody)

	sttsBody := append(u32(1), append(u32(4), u32(1000)...)...)
	stts := fullBox("stts", 0, sttsBody)

	stszBody := concat(u32(0), u32(4), u32(10), u32(10), u32(10), u32(10))
	stsz := fullBox("stsz", 0, stszBody)

	stscBody := append(u32(1), append(u32(1), append(u32(4), u32(1)...)...)...)
	stsc := fullBox("stsc", 0, stscBody)

	stco := fullBox("stco", 0, concat(u32(1), u32(1000)))

	stss := fullBox("stss", 0, append(u32(4), append(u32(1), append(u32(2), append(u32(3), u32(4)...)...)...)...))

	stbl := boxHdr("stbl", concat(stsd, stts, stsz, stsc, stco, stss))
	minf := boxHdr("minf", stbl)

	hdlr := fullBox("hdlr", 0, append(make([]byte, 4), []byte("vide")...))

	mdhdBody := make([]byte, 18)
	binary.BigEndian.PutUint32(mdhdBody[8:12], 1000) // timescale
	binary.BigEndian.PutUint32(mdhdBody[12:16], 4000) // duration
	mdhd := fullBox("mdhd", 0, mdhdBody)

	mdia := boxHdr("mdia", concat(mdhd, hdlr, minf))

	tkhdBody := make([]byte, 80)
	binary.BigEndian.PutUint32(tkhdBody[8:12], 1) // track ID
	tkhd := fullBox("tkhd", 0, tkhdBody)

	trak := boxHdr("trak", concat(tkhd, mdia))
	moov := boxHdr("moov", trak)
	return moov
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestExtractThumbnails(t *testing.T) {
	moov := buildMoov()
	data := append(boxHdr("ftyp", make([]byte, 8)), moov...)
	data = append(data, make([]byte, 1100)...) // mdat region covering chunk offset 1000

	src := &memSource{data: data}
	ex, cancel := extract.New(context.Background(), 0)
	defer cancel()

	thumbs, err := Extract(ex, src, Options{
		Count:     2,
		Decoder:   fakeDecoder{},
		Transform: fakeTransform{},
	})
	require.NoError(t, err)
	require.Len(t, thumbs, 2)
	for _, th := range thumbs {
		require.Equal(t, []byte("jpeg-bytes"), th.JPEG)
	}
}
