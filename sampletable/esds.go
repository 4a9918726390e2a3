package sampletable

import (
	"strconv"

	"github.com/silvermine/mp4probe/box"
)

// AudioEntry holds the fields of an audio sample description entry
// (mp4a) the metadata orchestrator needs: the MPEG-4 object type
// indication, extracted from the nested esds descriptor chain.
type AudioEntry struct {
	CodecTag  string
	MIMECodec string // e.g. "40.2" for AAC-LC, per RFC 6381
}

// DecodeEsdsCodec extracts the MIME codec string from an esds box's
// payload by walking the MPEG-4 descriptor chain (ES_Descriptor ->
// DecoderConfigDescriptor -> DecoderSpecificInfo) to find the object
// type indication and, for audio, the audio object type.
func DecodeEsdsCodec(data []byte) string {
	if len(data) < 2 {
		return ""
	}

	ptr, end := 0, len(data)
	if data[ptr] != 0x03 {
		return ""
	}
	ptr++

	ptr = skipDescriptorLength(data, ptr, end)
	if ptr < 0 || ptr+3 > end {
		return ""
	}

	flags := data[ptr+2]
	ptr += 3

	if flags&0x80 != 0 { // streamDependenceFlag
		ptr += 2
	}
	if flags&0x40 != 0 { // URL_Flag
		if ptr >= end {
			return ""
		}
		urlLen := int(data[ptr])
		ptr += 1 + urlLen
	}
	if flags&0x20 != 0 { // OCRstreamFlag
		ptr += 2
	}

	if ptr >= end || data[ptr] != 0x04 {
		return ""
	}
	ptr++
	ptr = skipDescriptorLength(data, ptr, end)
	if ptr < 0 || ptr+13 > end {
		return ""
	}

	oti := data[ptr]
	if oti == 0 {
		return ""
	}
	otiStr := strconv.FormatUint(uint64(oti), 16)

	ptr += 13 // OTI(1) + streamType(1) + bufferSizeDB(3) + maxBitrate(4) + avgBitrate(4)

	if ptr >= end || data[ptr] != 0x05 {
		return otiStr
	}
	ptr++
	ptr = skipDescriptorLength(data, ptr, end)
	if ptr < 0 || ptr >= end {
		return otiStr
	}

	audioObjectType := (data[ptr] & 0xf8) >> 3
	if audioObjectType == 0 {
		return otiStr
	}
	return otiStr + "." + strconv.Itoa(int(audioObjectType))
}

// skipDescriptorLength advances past a descriptor's variable-length
// size field (each length byte's high bit signals continuation).
// Returns -1 if the field runs past end.
func skipDescriptorLength(data []byte, ptr, end int) int {
	for ptr < end {
		b := data[ptr]
		ptr++
		if b&0x80 == 0 {
			return ptr
		}
	}
	return -1
}

// DecodeAudioEntry parses an mp4a sample entry body (the bytes after
// the 8-byte size+codec_tag header) and extracts its esds codec
// string, if present. The fixed AudioSampleEntry layout (reserved(6) +
// data_reference_index(2) + version/revision/vendor(8) + channels(2) +
// sample_size(2) + pre_defined(2) + reserved(2) + sample_rate(4) = 28
// bytes) precedes any child boxes.
func DecodeAudioEntry(body []byte) *AudioEntry {
	if len(body) < 28 {
		return nil
	}
	e := &AudioEntry{CodecTag: "mp4a"}
	r := box.NewReader(body[28:])
	for r.Next() {
		if r.Type() == box.TypeEsds {
			e.MIMECodec = DecodeEsdsCodec(r.Data())
			break
		}
	}
	return e
}
