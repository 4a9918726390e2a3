// Package metadata implements the metadata orchestrator: locate moov,
// decode mvhd for global duration, build a per-track descriptor from
// tkhd/mdhd/stsd, and enumerate udta.meta.ilst tags, per spec.md
// section 4.6.
package metadata

import (
	"github.com/pkg/errors"

	"github.com/silvermine/mp4probe/box"
	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/moovlocate"
	"github.com/silvermine/mp4probe/sampletable"
	"github.com/silvermine/mp4probe/stream"
)

// Track is one track's descriptor, assembled from tkhd, mdhd, and the
// first stsd sample description entry's codec tag.
type Track struct {
	TrackID   uint32
	Handler   string
	Language  string
	Timescale uint32
	Duration  uint64
	Width     uint32 // 16.16 fixed point tkhd display width
	Height    uint32 // 16.16 fixed point tkhd display height
	CodecTag  string // first stsd entry's box type; empty if stsd had no entry
	MIMECodec string // RFC 6381 style, e.g. "40.2"; audio tracks only
}

// Tag is one raw iTunes-style metadata tag: a 4-byte ilst item key and
// its undecoded payload bytes. Text decoding of tag values is out of
// scope (spec.md section 1); callers needing displayable text decode
// these themselves.
type Tag struct {
	Key     string
	Payload []byte
}

// Metadata is the full result of one metadata extraction.
type Metadata struct {
	Timescale uint32
	Duration  uint64
	Tracks    []Track
	Tags      []Tag
}

// Extract runs the metadata orchestrator over src.
func Extract(ex *extract.Extraction, src stream.Source) (*Metadata, error) {
	ex.Advance(extract.Locating)
	if err := ex.CheckContext(); err != nil {
		return nil, err
	}
	moov, err := moovlocate.Locate(src)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "locate moov"))
	}

	ex.Advance(extract.Parsing)
	md := &Metadata{}

	if mvhdData, version, ok, err := box.FindVersioned(moov.Payload, []string{"mvhd"}); err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "find mvhd"))
	} else if ok {
		mvhd, err := sampletable.DecodeMvhd(mvhdData, version)
		if err != nil {
			return nil, ex.Fail(extract.Wrap(extract.Format, err, "decode mvhd"))
		}
		md.Timescale = mvhd.Timescale
		md.Duration = mvhd.Duration
	}

	tracks, err := decodeTracks(moov.Payload)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "decode tracks"))
	}
	md.Tracks = tracks

	tags, err := decodeTags(moov.Payload)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "decode ilst tags"))
	}
	md.Tags = tags

	ex.Finish()
	return md, nil
}

func decodeTracks(moovData []byte) ([]Track, error) {
	var out []Track

	r := box.NewReader(moovData)
	for r.Next() {
		if r.Type() != box.TypeTrak {
			continue
		}
		trakData := r.Data()

		t, err := sampletable.DecodeTrack(trakData, sampletable.Strict)
		if err != nil {
			return nil, errors.Wrap(err, "trak")
		}

		desc := Track{
			TrackID:   t.TrackID,
			Handler:   t.Handler,
			Language:  t.Language,
			Timescale: t.Timescale,
			Duration:  t.Duration,
		}
		if tkhdData, version, ok, err := box.FindVersioned(trakData, []string{"tkhd"}); err == nil && ok {
			if tkhd, err := sampletable.DecodeTkhd(tkhdData, version); err == nil {
				desc.Width = tkhd.Width
				desc.Height = tkhd.Height
			}
		}
		desc.CodecTag = t.CodecTag
		if t.Audio != nil {
			desc.MIMECodec = t.Audio.MIMECodec
		}
		out = append(out, desc)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeTags walks udta.meta.ilst and returns each tag item's raw key
// and payload bytes, per spec.md section 4.6. meta is a full box (ISO
// 14496-12 section 8.11.1); box.IsFullBox already accounts for its
// version+flags prefix when walking into it.
func decodeTags(moovData []byte) ([]Tag, error) {
	udtaData, ok, err := box.Find(moovData, []string{"udta"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	ilstData, ok, err := box.Find(udtaData, []string{"meta", "ilst"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var tags []Tag
	r := box.NewReader(ilstData)
	for r.Next() {
		key := r.Type().String()
		itemData, ok, err := find1(r.Data(), "data")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if len(itemData) < 8 {
			continue
		}
		tags = append(tags, Tag{Key: key, Payload: itemData[8:]})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// find1 is box.Find specialized to a single path segment, used here
// because ilst item keys are dynamic (not a fixed box.Type constant).
func find1(data []byte, tag string) ([]byte, bool, error) {
	return box.Find(data, []string{tag})
}
