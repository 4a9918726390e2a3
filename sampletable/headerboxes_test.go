package sampletable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func packLanguage(c1, c2, c3 byte) uint16 {
	return (uint16(c1-0x60) << 10) | (uint16(c2-0x60) << 5) | uint16(c3-0x60)
}

func TestDecodeMdhdVersion0(t *testing.T) {
	data := make([]byte, 18)
	be.PutUint32(data[8:12], 1000)
	be.PutUint32(data[12:16], 5000)
	be.PutUint16(data[16:18], packLanguage('e', 'n', 'g'))

	m, err := DecodeMdhd(data, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1000, m.Timescale)
	require.EqualValues(t, 5000, m.Duration)
	require.Equal(t, "eng", m.Language)
}

func TestDecodeMdhdVersion1(t *testing.T) {
	data := make([]byte, 30)
	be.PutUint32(data[16:20], 48000)
	be.PutUint64(data[20:28], 1<<35)
	be.PutUint16(data[28:30], packLanguage('f', 'r', 'a'))

	m, err := DecodeMdhd(data, 1)
	require.NoError(t, err)
	require.EqualValues(t, 48000, m.Timescale)
	require.EqualValues(t, 1<<35, m.Duration)
	require.Equal(t, "fra", m.Language)
}

func TestDecodeMdhdTooShort(t *testing.T) {
	_, err := DecodeMdhd(make([]byte, 10), 0)
	require.ErrorIs(t, err, ErrShortBox)
}

func TestDecodeMdhdUndecodableLanguage(t *testing.T) {
	data := make([]byte, 18)
	be.PutUint16(data[16:18], 0xffff)
	m, err := DecodeMdhd(data, 0)
	require.NoError(t, err)
	require.Empty(t, m.Language)
}

func TestDecodeMvhd(t *testing.T) {
	data := make([]byte, 16)
	be.PutUint32(data[8:12], 600)
	be.PutUint32(data[12:16], 3600)

	m, err := DecodeMvhd(data, 0)
	require.NoError(t, err)
	require.EqualValues(t, 600, m.Timescale)
	require.EqualValues(t, 3600, m.Duration)
}

func TestDecodeTkhdVersion0(t *testing.T) {
	data := make([]byte, 80)
	be.PutUint32(data[8:12], 7)
	be.PutUint32(data[16:20], 9000)
	be.PutUint32(data[72:76], 1280<<16)
	be.PutUint32(data[76:80], 720<<16)

	tkhd, err := DecodeTkhd(data, 0)
	require.NoError(t, err)
	require.EqualValues(t, 7, tkhd.TrackID)
	require.EqualValues(t, 9000, tkhd.Duration)
	require.EqualValues(t, 1280, tkhd.Width>>16)
	require.EqualValues(t, 720, tkhd.Height>>16)
}

func TestDecodeHdlr(t *testing.T) {
	data := append([]byte{0, 0, 0, 0}, []byte("vide")...)
	handler, err := DecodeHdlr(data)
	require.NoError(t, err)
	require.Equal(t, "vide", handler)
}

func TestDecodeHdlrTooShort(t *testing.T) {
	_, err := DecodeHdlr([]byte{0, 0})
	require.ErrorIs(t, err, ErrShortBox)
}
