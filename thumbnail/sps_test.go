package thumbnail

import "testing"

// A minimal baseline-profile SPS (no scaling matrices, no cropping)
// encoding a 16x16 single-macroblock frame, hand-built bit by bit:
// profile_idc=66 (baseline), constraints=0, level_idc=30,
// seq_parameter_set_id=ue(0), log2_max_frame_num_minus4=ue(0),
// pic_order_cnt_type=ue(0), log2_max_pic_order_cnt_lsb_minus4=ue(0),
// max_num_ref_frames=ue(0), gaps_in_frame_num_value_allowed_flag=0,
// pic_width_in_mbs_minus1=ue(0), pic_height_in_map_units_minus1=ue(0),
// frame_mbs_only_flag=1, direct_8x8_inference_flag=0,
// frame_cropping_flag=0, vui_parameters_present_flag=0.
func TestParseSPSFrameSizeMinimal(t *testing.T) {
	// Bits after the 3 header bytes: 1 1 1 1 1 0 1 1 1 0 0 0.
	// ue(0) is encoded as a single "1" bit.
	bits := []bool{
		true,  // sps id = ue(0)
		true,  // log2_max_frame_num_minus4 = ue(0)
		true,  // pic_order_cnt_type = ue(0)
		true,  // log2_max_pic_order_cnt_lsb_minus4 = ue(0)
		true,  // max_num_ref_frames = ue(0)
		false, // gaps_in_frame_num_value_allowed_flag
		true,  // pic_width_in_mbs_minus1 = ue(0)
		true,  // pic_height_in_map_units_minus1 = ue(0)
		true,  // frame_mbs_only_flag
		false, // direct_8x8_inference_flag
		false, // frame_cropping_flag
		false, // vui_parameters_present_flag
	}
	payload := []byte{66, 0, 30}
	payload = append(payload, packBits(bits)...)

	size, ok := ParseSPSFrameSize(payload)
	if !ok {
		t.Fatalf("expected successful parse")
	}
	if size.Width != 16 || size.Height != 16 {
		t.Fatalf("expected 16x16, got %dx%d", size.Width, size.Height)
	}
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}
