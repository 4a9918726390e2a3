// Package subtitle implements the subtitle extraction orchestrator:
// locate moov, find every text-bearing track, decode its sample table
// leniently, plan-and-coalesce the fetch, and hand each sample to a
// PayloadDecoder collaborator for codec-specific text decoding, per
// spec.md section 4.6.
package subtitle

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/silvermine/mp4probe/box"
	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/moovlocate"
	"github.com/silvermine/mp4probe/rangeplan"
	"github.com/silvermine/mp4probe/sampletable"
	"github.com/silvermine/mp4probe/stream"
)

// DefaultEndTimeGap is added to a cue's start time when the codec
// cannot supply a duration (most tx3g files lack one), per spec.md
// section 4.6 and Open Question (a) in SPEC_FULL.md: this is a
// deliberate heuristic, not a stand-in for a missing feature.
const DefaultEndTimeGap = 2.0

// handlerTypes are the mdia.hdlr handler tags that mark a track as
// subtitle-bearing (spec.md section 4.6).
var handlerTypes = map[string]bool{"sbtl": true, "subt": true, "text": true}

// Cue is one decoded subtitle entry.
type Cue struct {
	TrackID      uint32
	StartSeconds float64
	EndSeconds   float64
	Text         string
}

// PayloadDecoder is the subtitle-payload collaborator from spec.md
// section 6: given one sample's raw bytes, its codec tag, and its
// start time, return zero or more decoded cues. Implementations handle
// tx3g, wvtt, stpp, or generic text; see the Handlers in this package.
type PayloadDecoder interface {
	Decode(payload []byte, codecTag string, startSeconds float64) ([]DecodedText, error)
}

// DecodedText is one decoded cue returned by a PayloadDecoder, before
// the orchestrator attaches track identity.
type DecodedText struct {
	StartSeconds float64
	EndSeconds   float64
	Text         string
}

// Options configures one orchestrator run.
type Options struct {
	GapThreshold int // rangeplan coalescing threshold; 0 uses rangeplan.DefaultGapThreshold
	Decoder      PayloadDecoder
}

// Extract runs the full subtitle orchestrator over src: locate moov,
// find every subtitle-handler track, decode samples leniently, plan
// fetches, and decode each sample's payload via opts.Decoder.
func Extract(ex *extract.Extraction, src stream.Source, opts Options) ([]Cue, error) {
	if opts.Decoder == nil {
		opts.Decoder = Handlers{}
	}

	ex.Advance(extract.Locating)
	if err := ex.CheckContext(); err != nil {
		return nil, err
	}
	moov, err := moovlocate.Locate(src)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "locate moov"))
	}

	ex.Advance(extract.Parsing)
	tracks, err := subtitleTracks(moov.Payload)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "decode subtitle tracks"))
	}
	if len(tracks) == 0 {
		return nil, ex.Fail(extract.Wrap(extract.NotFound, errors.New("no subtitle track"), "subtitle extraction"))
	}

	fileSize := int64(-1)
	if sz, ok, _ := src.Size(); ok {
		fileSize = sz
	}

	var cues []Cue
	var lastErr error

	for _, t := range tracks {
		if err := ex.CheckContext(); err != nil {
			return nil, err
		}

		ex.Advance(extract.Planning)
		samples, dropped, err := sampletable.ResolveTolerant(t.Table, nil, fileSize)
		if err != nil {
			log.Debug().Err(err).Uint32("track_id", t.TrackID).Msg("subtitle: skipping track with range errors")
			lastErr = extract.Wrap(extract.Range, err, "resolve samples")
			continue
		}
		if len(dropped) > 0 {
			log.Debug().Uint32("track_id", t.TrackID).Ints("dropped_samples", dropped).Msg("subtitle: dropping out-of-bounds samples, extraction continues")
			lastErr = extract.Wrap(extract.Range, sampletable.ErrRangeOutOfBounds, "resolve samples")
		}
		if len(samples) == 0 {
			continue
		}

		items := make([]rangeplan.Item, len(samples))
		for i, s := range samples {
			items[i] = rangeplan.Item{ID: s.Index, Offset: s.AbsoluteOffset, Size: s.Size}
		}
		plan := rangeplan.Build(items, opts.GapThreshold)

		ex.Advance(extract.Fetching)
		buffers := make([][]byte, len(plan.Ranges))
		for i, r := range plan.Ranges {
			buf := make([]byte, r.Size)
			if err := stream.ReadAt(src, buf, int64(r.Offset)); err != nil {
				return nil, ex.Fail(extract.Wrap(extract.Transport, err, "fetch subtitle range"))
			}
			buffers[i] = buf
		}

		ex.Advance(extract.Decoding)
		codecTag := t.CodecTag

		for _, s := range samples {
			place, ok := plan.Placement[s.Index]
			if !ok {
				continue
			}
			payload := buffers[place.RangeIndex][place.Offset : place.Offset+uint64(place.Size)]
			startSeconds := s.Seconds(t.Timescale)

			decoded, err := opts.Decoder.Decode(payload, codecTag, startSeconds)
			if err != nil {
				lastErr = extract.Wrap(extract.Codec, err, "decode subtitle payload")
				continue
			}
			for _, d := range decoded {
				if d.EndSeconds <= d.StartSeconds {
					d.EndSeconds = d.StartSeconds + DefaultEndTimeGap
				}
				cues = append(cues, Cue{
					TrackID:      t.TrackID,
					StartSeconds: d.StartSeconds,
					EndSeconds:   d.EndSeconds,
					Text:         d.Text,
				})
			}
		}
	}

	if len(cues) == 0 && lastErr != nil {
		return nil, ex.Fail(lastErr)
	}
	ex.Finish()
	return cues, nil
}

// subtitleTracks decodes every trak in moov whose handler is
// subtitle-bearing, using the lenient sample-table policy (spec.md
// section 4.6: "decode its sample tables leniently").
func subtitleTracks(moovData []byte) ([]*sampletable.Track, error) {
	var tracks []*sampletable.Track

	r := box.NewReader(moovData)
	for r.Next() {
		if r.Type() != box.TypeTrak {
			continue
		}
		trakData := r.Data()

		t, err := sampletable.DecodeTrack(trakData, sampletable.Lenient)
		if err != nil {
			log.Debug().Err(err).Msg("subtitle: skipping malformed track")
			continue
		}
		if handlerTypes[t.Handler] {
			tracks = append(tracks, t)
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return tracks, nil
}
