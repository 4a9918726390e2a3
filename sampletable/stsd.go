package sampletable

import (
	"github.com/pkg/errors"

	"github.com/silvermine/mp4probe/box"
)

// VisualEntry holds the fields of a video sample description entry
// (avc1, avc3, hvc1, mp4v) the orchestrators need: display dimensions
// and, for AVC entries, the decoder configuration record.
type VisualEntry struct {
	CodecTag box.Type
	Width    uint16
	Height   uint16
	AvcC     *AvcC // non-nil only for avc1/avc3 entries carrying an avcC child box
}

// AvcC is the decoded AVC configuration record (profile, level, and the
// length-prefixed SPS/PPS arrays an H.264 decoder collaborator needs to
// bootstrap).
type AvcC struct {
	Profile       uint8
	Level         uint8
	LengthSize    int // NAL length-prefix size in bytes, 1/2/4
	SPS           [][]byte
	PPS           [][]byte
}

// DecodeStsd walks an stsd box payload (version+flags already skipped)
// and returns the VisualEntry for the first video sample description
// found, if any. Non-video entries (audio, subtitle codec descriptions)
// are skipped; callers needing those read stsd for handler-appropriate
// codec tags separately via RawCodecTag.
func DecodeStsd(data []byte) (*VisualEntry, error) {
	visual, _, _, err := decodeStsdEntries(data)
	return visual, err
}

// DecodeStsdAudio returns the first audio (mp4a) sample description
// entry in an stsd box payload, if any.
func DecodeStsdAudio(data []byte) (*AudioEntry, error) {
	_, audio, _, err := decodeStsdEntries(data)
	return audio, err
}

// RawCodecTag returns the box type of the first sample description
// entry in an stsd box payload, whatever kind it is (video, audio,
// subtitle, or anything this package doesn't otherwise decode). Callers
// that only need a handler-appropriate codec label — subtitle tracks in
// particular, whose tx3g/wvtt/stpp entries never populate VisualEntry or
// AudioEntry — use this instead of DecodeStsd/DecodeStsdAudio.
func RawCodecTag(data []byte) (string, error) {
	_, _, tag, err := decodeStsdEntries(data)
	return tag, err
}

func decodeStsdEntries(data []byte) (*VisualEntry, *AudioEntry, string, error) {
	if len(data) < 8 {
		return nil, nil, "", ErrShortBox
	}
	entryCount := be.Uint32(data[0:4])
	ptr := 4
	var visual *VisualEntry
	var audio *AudioEntry
	var rawTag string
	for i := uint32(0); i < entryCount; i++ {
		if ptr+8 > len(data) {
			break
		}
		size := int(be.Uint32(data[ptr : ptr+4]))
		if size < 8 || ptr+size > len(data) {
			break
		}
		var tag box.Type
		copy(tag[:], data[ptr+4:ptr+8])
		body := data[ptr+8 : ptr+size]

		if rawTag == "" {
			rawTag = tag.String()
		}
		if visual == nil && isVisualCodec(tag) {
			v, err := decodeVisualEntry(tag, body)
			if err != nil {
				return nil, nil, "", err
			}
			visual = v
		} else if audio == nil && tag == box.TypeMp4a {
			audio = DecodeAudioEntry(body)
		}
		if visual != nil && audio != nil {
			break
		}
		ptr += size
	}
	return visual, audio, rawTag, nil
}

func isVisualCodec(t box.Type) bool {
	return t == box.TypeAvc1 || t == box.TypeAvc3 || t == box.TypeHvc1 || t == box.TypeMp4v
}

// decodeVisualEntry parses a visual sample entry body (the bytes after
// the 8-byte size+codec_tag header) per spec.md section 4.4: width and
// height sit at fixed offsets 24-26 and 26-28; child boxes such as avcC
// start at offset 78.
func decodeVisualEntry(tag box.Type, body []byte) (*VisualEntry, error) {
	if len(body) < 78 {
		return nil, errors.Wrapf(ErrShortBox, "visual sample entry %q", tag)
	}
	e := &VisualEntry{
		CodecTag: tag,
		Width:    be.Uint16(body[24:26]),
		Height:   be.Uint16(body[26:28]),
	}

	if tag != box.TypeAvc1 && tag != box.TypeAvc3 {
		return e, nil
	}

	r := box.NewReader(body[78:])
	for r.Next() {
		if r.Type() == box.TypeAvcC {
			cfg, err := DecodeAvcC(r.Data())
			if err != nil {
				return nil, err
			}
			e.AvcC = cfg
			break
		}
	}
	return e, nil
}

// DecodeAvcC parses an avcC configuration record.
func DecodeAvcC(data []byte) (*AvcC, error) {
	if len(data) < 7 {
		return nil, errors.Wrap(ErrShortBox, "avcC")
	}
	cfg := &AvcC{
		Profile:    data[1],
		Level:      data[3],
		LengthSize: int(data[4]&0x03) + 1,
	}
	ptr := 5
	numSPS := int(data[ptr] & 0x1f)
	ptr++
	for i := 0; i < numSPS; i++ {
		if ptr+2 > len(data) {
			return cfg, nil
		}
		l := int(be.Uint16(data[ptr : ptr+2]))
		ptr += 2
		if ptr+l > len(data) {
			return cfg, nil
		}
		cfg.SPS = append(cfg.SPS, data[ptr:ptr+l])
		ptr += l
	}
	if ptr >= len(data) {
		return cfg, nil
	}
	numPPS := int(data[ptr])
	ptr++
	for i := 0; i < numPPS; i++ {
		if ptr+2 > len(data) {
			return cfg, nil
		}
		l := int(be.Uint16(data[ptr : ptr+2]))
		ptr += 2
		if ptr+l > len(data) {
			return cfg, nil
		}
		cfg.PPS = append(cfg.PPS, data[ptr:ptr+l])
		ptr += l
	}
	return cfg, nil
}
