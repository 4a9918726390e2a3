package subtitle

import (
	"encoding/binary"
	"unicode/utf16"
)

// Handlers is the built-in PayloadDecoder, dispatching on codec tag to
// one of the four formats spec.md section 6 names: tx3g, wvtt, stpp,
// and a generic UTF-8-with-UTF-16-fallback path for anything else.
type Handlers struct{}

// Decode implements PayloadDecoder.
func (Handlers) Decode(payload []byte, codecTag string, startSeconds float64) ([]DecodedText, error) {
	var text string
	switch codecTag {
	case "tx3g":
		text = decodeTx3g(payload)
	case "wvtt":
		text = decodeWvtt(payload)
	case "stpp":
		text = decodeStpp(payload)
	default:
		text = decodeGenericText(payload)
	}
	if text == "" {
		return nil, nil
	}
	return []DecodedText{{StartSeconds: startSeconds, Text: text}}, nil
}

// decodeTx3g reads the 2-byte big-endian length-prefixed UTF-8 cue
// text at the front of a tx3g sample; any style/box records following
// it are ignored (spec.md section 6: "2-byte big-endian length +
// UTF-8").
func decodeTx3g(payload []byte) string {
	if len(payload) < 2 {
		return ""
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	if n <= 0 || 2+n > len(payload) {
		n = len(payload) - 2
	}
	if n <= 0 {
		return ""
	}
	return string(payload[2 : 2+n])
}

// decodeWvtt extracts the cue text from a WebVTT sample's vttc/vtte
// payload boxes. A full WebVTT cue parser (cue settings, nested spans)
// is out of scope; this returns the payload box's raw text, which is
// what the orchestrator's callers need.
func decodeWvtt(payload []byte) string {
	return findVttPayload(payload)
}

func findVttPayload(data []byte) string {
	pos := 0
	for pos+8 <= len(data) {
		size := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		if size < 8 || pos+size > len(data) {
			break
		}
		tag := string(data[pos+4 : pos+8])
		body := data[pos+8 : pos+size]
		if tag == "vttc" || tag == "vtte" {
			if t := findVttPayload(body); t != "" {
				return t
			}
		}
		if tag == "payl" {
			return string(body)
		}
		pos += size
	}
	return ""
}

// decodeStpp returns the raw TTML/XML document. Full TTML parsing
// (timing spans, styling) is out of scope per spec.md section 1; the
// orchestrator's PayloadDecoder contract only promises decoded text.
func decodeStpp(payload []byte) string {
	return decodeGenericText(payload)
}

// decodeGenericText tries UTF-8 first, falling back to UTF-16 (big- or
// little-endian, detected via BOM) per spec.md section 6.
func decodeGenericText(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	if isValidUTF8(payload) {
		return string(payload)
	}
	return decodeUTF16(payload)
}

func isValidUTF8(b []byte) bool {
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c < 0x80:
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return false
			}
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return false
			}
			i += 3
		case c&0xf8 == 0xf0:
			if i+3 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 || b[i+3]&0xc0 != 0x80 {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}

func decodeUTF16(b []byte) string {
	var order binary.ByteOrder = binary.BigEndian
	start := 0
	if len(b) >= 2 {
		if b[0] == 0xff && b[1] == 0xfe {
			order = binary.LittleEndian
			start = 2
		} else if b[0] == 0xfe && b[1] == 0xff {
			start = 2
		}
	}
	b = b[start:]
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = order.Uint16(b[i*2:])
	}
	return string(utf16.Decode(u16))
}
