package sampletable

import (
	"github.com/pkg/errors"

	"github.com/silvermine/mp4probe/box"
)

// Track bundles everything decoded from one trak box that the
// orchestrators need: identity, timing, handler type, the first video
// sample description (if any), and the sample table itself.
type Track struct {
	TrackID    uint32
	Timescale  uint32
	Duration   uint64
	Language   string
	Handler    string
	Visual     *VisualEntry
	Audio      *AudioEntry
	CodecTag   string // first stsd entry's box type, whatever kind it is
	Table      Table
	StssAbsent bool // true when no stss box was present: every sample is a sync sample

	syncSamples []uint32
}

// DecodeTrack parses a single trak box's payload into a Track, using the
// given Policy for the sample-table boxes (Strict for thumbnails,
// Lenient for subtitles, per spec.md section 4.4).
func DecodeTrack(trakData []byte, policy Policy) (*Track, error) {
	t := &Track{}

	if tkhdData, version, ok, err := box.FindVersioned(trakData, []string{"tkhd"}); err != nil {
		return nil, err
	} else if ok {
		tkhd, err := DecodeTkhd(tkhdData, version)
		if err != nil {
			return nil, errors.Wrap(err, "tkhd")
		}
		t.TrackID = tkhd.TrackID
	}

	mdiaData, ok, err := box.Find(trakData, []string{"mdia"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("sampletable: trak missing mdia")
	}

	if mdhdData, version, ok, err := box.FindVersioned(mdiaData, []string{"mdhd"}); err != nil {
		return nil, err
	} else if ok {
		mdhd, err := DecodeMdhd(mdhdData, version)
		if err != nil {
			return nil, errors.Wrap(err, "mdhd")
		}
		t.Timescale = mdhd.Timescale
		t.Duration = mdhd.Duration
		t.Language = mdhd.Language
	}

	if hdlrData, ok, err := box.Find(mdiaData, []string{"hdlr"}); err != nil {
		return nil, err
	} else if ok {
		handler, err := DecodeHdlr(hdlrData)
		if err != nil {
			return nil, errors.Wrap(err, "hdlr")
		}
		t.Handler = handler
	}

	stblData, ok, err := box.Find(mdiaData, []string{"minf", "stbl"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("sampletable: trak missing stbl")
	}

	if stsdData, ok, err := box.Find(stblData, []string{"stsd"}); err != nil {
		return nil, err
	} else if ok {
		visual, audio, rawTag, err := decodeStsdEntries(stsdData)
		if err != nil {
			return nil, errors.Wrap(err, "stsd")
		}
		t.Visual = visual
		t.Audio = audio
		t.CodecTag = rawTag
	}

	table, err := decodeTable(stblData, policy)
	if err != nil {
		return nil, err
	}
	t.Table = table

	stss, absent, err := syncSamples(stblData, policy, table.Stsz.Len())
	if err != nil {
		return nil, err
	}
	t.StssAbsent = absent
	t.syncSamples = stss

	return t, nil
}

func decodeTable(stblData []byte, policy Policy) (Table, error) {
	var table Table

	if sttsData, ok, err := box.Find(stblData, []string{"stts"}); err != nil {
		return table, err
	} else if ok {
		var decErr error
		table.Stts, decErr = DecodeStts(sttsData, policy)
		if decErr != nil {
			return table, errors.Wrap(decErr, "stts")
		}
	}

	if stszData, ok, err := box.Find(stblData, []string{"stsz"}); err != nil {
		return table, err
	} else if ok {
		var decErr error
		table.Stsz, decErr = DecodeStsz(stszData, policy)
		if decErr != nil {
			return table, errors.Wrap(decErr, "stsz")
		}
	}

	if stscData, ok, err := box.Find(stblData, []string{"stsc"}); err != nil {
		return table, err
	} else if ok {
		var decErr error
		table.Stsc, decErr = DecodeStsc(stscData, policy)
		if decErr != nil {
			return table, errors.Wrap(decErr, "stsc")
		}
	}

	if stcoData, ok, err := box.Find(stblData, []string{"stco"}); err != nil {
		return table, err
	} else if ok {
		var decErr error
		table.ChunkOffsets, decErr = DecodeStco(stcoData, policy)
		if decErr != nil {
			return table, errors.Wrap(decErr, "stco")
		}
	} else if co64Data, ok, err := box.Find(stblData, []string{"co64"}); err != nil {
		return table, err
	} else if ok {
		var decErr error
		table.ChunkOffsets, decErr = DecodeCo64(co64Data, policy)
		if decErr != nil {
			return table, errors.Wrap(decErr, "co64")
		}
	}

	return table, nil
}

// syncSamples decodes the stss box, treating its absence as "every
// sample is a sync sample" (spec.md sections 4.6 and 8).
func syncSamples(stblData []byte, policy Policy, sampleCount int) (samples []uint32, absent bool, err error) {
	stssData, ok, err := box.Find(stblData, []string{"stss"})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		all := make([]uint32, sampleCount)
		for i := range all {
			all[i] = uint32(i + 1)
		}
		return all, true, nil
	}
	stss, err := DecodeStss(stssData, policy)
	if err != nil {
		return nil, false, errors.Wrap(err, "stss")
	}
	return stss, false, nil
}

// SyncSamples returns the track's 1-indexed sync sample numbers, as
// decoded by DecodeTrack.
func (t *Track) SyncSamples() []uint32 { return t.syncSamples }
