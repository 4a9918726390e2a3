package thumbnail

// bitReader reads individual bits and Exp-Golomb codes from a NAL unit
// payload (already stripped of its emulation-prevention bytes and
// 1-byte NAL header), the minimal subset an SPS parser needs. Grounded
// in the bit-reading approach full H.264 decoders use for exactly this
// purpose, scaled down here to read only the handful of fields needed
// to size a frame — this is not a decoder.
type bitReader struct {
	data []byte
	pos  int // bit position
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) bit() int {
	if r.pos/8 >= len(r.data) {
		return 0
	}
	b := r.data[r.pos/8]
	shift := 7 - uint(r.pos%8)
	r.pos++
	return int((b >> shift) & 1)
}

func (r *bitReader) bits(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | uint32(r.bit())
	}
	return v
}

// ue reads an unsigned Exp-Golomb coded value.
func (r *bitReader) ue() uint32 {
	leadingZeros := 0
	for r.bit() == 0 {
		leadingZeros++
		if leadingZeros > 32 || r.pos >= len(r.data)*8 {
			return 0
		}
	}
	if leadingZeros == 0 {
		return 0
	}
	return (1 << uint(leadingZeros)) - 1 + r.bits(leadingZeros)
}

// se reads a signed Exp-Golomb coded value.
func (r *bitReader) se() int32 {
	v := r.ue()
	if v%2 == 0 {
		return -int32(v / 2)
	}
	return int32(v/2 + 1)
}

// FrameSize holds the coded picture dimensions recovered from an SPS,
// after cropping. Extract does not call ParseSPSFrameSize: a
// Thumbnail's source dimensions come from the decoder's RawImage.
type FrameSize struct {
	Width  int
	Height int
}

// removeEmulationPrevention strips 0x03 emulation-prevention bytes
// following a 0x0000 start, per Annex B of the H.264 specification.
func removeEmulationPrevention(nal []byte) []byte {
	out := make([]byte, 0, len(nal))
	zeroRun := 0
	for _, b := range nal {
		if zeroRun >= 2 && b == 0x03 {
			zeroRun = 0
			continue
		}
		if b == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
		out = append(out, b)
	}
	return out
}

// ParseSPSFrameSize reads just enough of an SPS NAL unit (payload only,
// i.e. with the 1-byte NAL header already stripped) to compute the
// coded frame size, including the crop rectangle. It does not validate
// or retain any other SPS field; a full H.264 decoder collaborator
// reads the rest for itself.
func ParseSPSFrameSize(sps []byte) (FrameSize, bool) {
	if len(sps) < 4 {
		return FrameSize{}, false
	}
	rbsp := removeEmulationPrevention(sps)
	r := newBitReader(rbsp[3:]) // skip profile_idc, constraint flags, level_idc

	r.ue() // seq_parameter_set_id
	profileIdc := rbsp[0]

	chromaFormatIdc := uint32(1)
	separateColourPlane := false
	if profileIdc == 100 || profileIdc == 110 || profileIdc == 122 || profileIdc == 244 ||
		profileIdc == 44 || profileIdc == 83 || profileIdc == 86 || profileIdc == 118 ||
		profileIdc == 128 || profileIdc == 138 || profileIdc == 139 || profileIdc == 134 {
		chromaFormatIdc = r.ue()
		if chromaFormatIdc == 3 {
			separateColourPlane = r.bit() == 1
		}
		r.ue() // bit_depth_luma_minus8
		r.ue() // bit_depth_chroma_minus8
		r.bit() // qpprime_y_zero_transform_bypass_flag
		if r.bit() == 1 {
			// seq_scaling_matrix_present: scaling lists are not parsed, so
			// the fields after them cannot be located; report failure.
			return FrameSize{}, false
		}
	}

	r.ue() // log2_max_frame_num_minus4
	picOrderCntType := r.ue()
	if picOrderCntType == 0 {
		r.ue() // log2_max_pic_order_cnt_lsb_minus4
	} else if picOrderCntType == 1 {
		r.bit()
		r.se()
		r.se()
		numRefFrames := r.ue()
		for i := uint32(0); i < numRefFrames; i++ {
			r.se()
		}
	}
	r.ue() // max_num_ref_frames
	r.bit() // gaps_in_frame_num_value_allowed_flag

	picWidthInMbsMinus1 := r.ue()
	picHeightInMapUnitsMinus1 := r.ue()
	frameMbsOnly := r.bit() == 1
	if !frameMbsOnly {
		r.bit() // mb_adaptive_frame_field_flag
	}
	r.bit() // direct_8x8_inference_flag

	var cropLeft, cropRight, cropTop, cropBottom uint32
	if r.bit() == 1 {
		cropLeft = r.ue()
		cropRight = r.ue()
		cropTop = r.ue()
		cropBottom = r.ue()
	}

	frameHeightMult := uint32(1)
	if !frameMbsOnly {
		frameHeightMult = 2
	}

	width := (picWidthInMbsMinus1 + 1) * 16
	height := (picHeightInMapUnitsMinus1 + 1) * 16 * frameHeightMult

	subWidthC, subHeightC := uint32(2), uint32(2)
	switch chromaFormatIdc {
	case 0:
		subWidthC, subHeightC = 1, 1
	case 2:
		subWidthC, subHeightC = 2, 1
	case 3:
		if separateColourPlane {
			subWidthC, subHeightC = 1, 1
		}
	}
	cropUnitX := subWidthC
	cropUnitY := subHeightC * frameHeightMult
	if chromaFormatIdc == 0 {
		cropUnitX, cropUnitY = 1, frameHeightMult
	}

	width -= (cropLeft + cropRight) * cropUnitX
	height -= (cropTop + cropBottom) * cropUnitY

	if width == 0 || height == 0 {
		return FrameSize{}, false
	}
	return FrameSize{Width: int(width), Height: int(height)}, true
}
