// Package thumbnail implements the thumbnail extraction orchestrator:
// locate moov, pick the first H.264 video track, select N evenly
// spaced sync samples, fetch them, and hand each to the H.264 decoder
// and image transform collaborators, per spec.md section 4.6.
package thumbnail

import (
	"time"

	"github.com/pkg/errors"

	"github.com/silvermine/mp4probe/box"
	"github.com/silvermine/mp4probe/extract"
	"github.com/silvermine/mp4probe/moovlocate"
	"github.com/silvermine/mp4probe/rangeplan"
	"github.com/silvermine/mp4probe/sampletable"
	"github.com/silvermine/mp4probe/stream"
)

// DefaultTimeout is the per-extraction wall-clock timeout (spec.md
// section 4.6): "a per-extraction wall-clock timeout (default 60 s)
// aborts the orchestrator with a timeout error; the error is never
// raised for samples already decoded."
const DefaultTimeout = 60 * time.Second

// RawImage is the H.264 decoder collaborator's output: decoded pixel
// data in some native format, passed through to the image collaborator
// without interpretation by this package.
type RawImage struct {
	Width       int
	Height      int
	PixelFormat string
	Pixels      []byte
}

// H264Decoder is the H.264 decode collaborator from spec.md section 6:
// given the avcC configuration and one length-prefixed sample, convert
// to Annex-B internally and return a decoded frame.
type H264Decoder interface {
	Decode(avcc *sampletable.AvcC, sample []byte) (RawImage, error)
}

// ImageTransform is the image collaborator from spec.md section 6:
// resize (Lanczos-3, aspect-preserving fit) and encode to JPEG.
type ImageTransform interface {
	Transform(img RawImage, maxW, maxH int, quality int) ([]byte, error)
}

// Thumbnail is one decoded, resized frame.
type Thumbnail struct {
	SampleIndex  int
	TimeSeconds  float64
	JPEG         []byte
	SourceWidth  int
	SourceHeight int
}

// Options configures one orchestrator run.
type Options struct {
	Count        int // number of evenly spaced samples to extract; default 1
	MaxWidth     int
	MaxHeight    int
	Quality      int // JPEG quality 1-100; default 85
	GapThreshold int
	Timeout      time.Duration // default DefaultTimeout
	Decoder      H264Decoder
	Transform    ImageTransform
}

// videoCodecs are the supported codec tags (spec.md section 4.6: "pick
// the first trak with handler vide whose codec tag is in {avc1, avc3}").
var videoCodecs = map[string]bool{"avc1": true, "avc3": true}

// Extract runs the thumbnail orchestrator over src.
func Extract(ex *extract.Extraction, src stream.Source, opts Options) ([]Thumbnail, error) {
	if opts.Count <= 0 {
		opts.Count = 1
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	if opts.Decoder == nil || opts.Transform == nil {
		return nil, ex.Fail(extract.Wrap(extract.Codec, errors.New("thumbnail: Decoder and Transform are required"), "configure orchestrator"))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	ex.Advance(extract.Locating)
	if err := ex.CheckContext(); err != nil {
		return nil, err
	}
	moov, err := moovlocate.Locate(src)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "locate moov"))
	}

	ex.Advance(extract.Parsing)
	track, err := firstVideoTrack(moov.Payload)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Format, err, "decode video track"))
	}
	if track == nil {
		return nil, ex.Fail(extract.Wrap(extract.NotFound, errors.New("no supported H.264 track"), "thumbnail extraction"))
	}
	if track.Visual == nil || track.Visual.AvcC == nil {
		return nil, ex.Fail(extract.Wrap(extract.NotFound, errors.New("video track missing avcC config"), "thumbnail extraction"))
	}

	ex.Advance(extract.Planning)
	targets := evenSpacedTargets(track, opts.Count)
	if len(targets) == 0 {
		ex.Finish()
		return nil, nil
	}

	fileSize := int64(-1)
	if sz, ok, _ := src.Size(); ok {
		fileSize = sz
	}
	samples, err := sampletable.Resolve(track.Table, targets, fileSize)
	if err != nil {
		return nil, ex.Fail(extract.Wrap(extract.Range, err, "resolve thumbnail samples"))
	}

	items := make([]rangeplan.Item, len(samples))
	for i, s := range samples {
		items[i] = rangeplan.Item{ID: s.Index, Offset: s.AbsoluteOffset, Size: s.Size}
	}
	plan := rangeplan.Build(items, opts.GapThreshold)

	ex.Advance(extract.Fetching)
	if time.Now().After(deadline) {
		return nil, ex.Fail(extract.Wrap(extract.Timeout, errors.New("deadline exceeded before fetch"), "thumbnail extraction"))
	}
	buffers := make([][]byte, len(plan.Ranges))
	for i, r := range plan.Ranges {
		buf := make([]byte, r.Size)
		if err := stream.ReadAt(src, buf, int64(r.Offset)); err != nil {
			return nil, ex.Fail(extract.Wrap(extract.Transport, err, "fetch thumbnail range"))
		}
		buffers[i] = buf
	}

	ex.Advance(extract.Decoding)
	var out []Thumbnail
	for _, s := range samples {
		if time.Now().After(deadline) {
			// Samples already decoded are kept; the timeout only stops
			// further work, per spec.md section 4.6.
			return out, ex.Fail(extract.Wrap(extract.Timeout, errors.New("deadline exceeded mid-extraction"), "thumbnail extraction"))
		}
		place, ok := plan.Placement[s.Index]
		if !ok {
			continue
		}
		payload := buffers[place.RangeIndex][place.Offset : place.Offset+uint64(place.Size)]

		raw, err := opts.Decoder.Decode(track.Visual.AvcC, payload)
		if err != nil {
			return nil, ex.Fail(extract.Wrap(extract.Codec, err, "decode H.264 sample"))
		}
		jpeg, err := opts.Transform.Transform(raw, opts.MaxWidth, opts.MaxHeight, opts.Quality)
		if err != nil {
			return nil, ex.Fail(extract.Wrap(extract.Codec, err, "transform to JPEG"))
		}
		out = append(out, Thumbnail{
			SampleIndex:  s.Index,
			TimeSeconds:  s.Seconds(track.Timescale),
			JPEG:         jpeg,
			SourceWidth:  raw.Width,
			SourceHeight: raw.Height,
		})
	}

	ex.Finish()
	return out, nil
}

// firstVideoTrack scans moov for the first trak with handler "vide"
// whose stsd codec tag is avc1/avc3. Every track is first decoded
// leniently just to check its handler and codec tag, so a malformed
// track ahead of the chosen one in file order is skipped rather than
// aborting the whole scan; only the selected video track is then
// re-decoded with the strict policy (spec.md section 4.6: "decode
// sample tables strictly").
func firstVideoTrack(moovData []byte) (*sampletable.Track, error) {
	r := box.NewReader(moovData)
	for r.Next() {
		if r.Type() != box.TypeTrak {
			continue
		}
		trakData := r.Data()

		probe, err := sampletable.DecodeTrack(trakData, sampletable.Lenient)
		if err != nil {
			continue
		}
		if probe.Handler != "vide" {
			continue
		}
		if probe.Visual == nil || !videoCodecs[probe.Visual.CodecTag.String()] {
			continue
		}

		return sampletable.DecodeTrack(trakData, sampletable.Strict)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// evenSpacedTargets picks n sample indices evenly spaced across the
// track's sync samples (or every sample if stss is absent), per
// spec.md section 4.6.
func evenSpacedTargets(t *sampletable.Track, n int) []int {
	pool := t.SyncSamples()
	if len(pool) == 0 {
		return nil
	}
	if n >= len(pool) {
		out := make([]int, len(pool))
		for i, v := range pool {
			out[i] = int(v)
		}
		return out
	}
	out := make([]int, 0, n)
	step := float64(len(pool)-1) / float64(n-1)
	if n == 1 {
		step = 0
	}
	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		idx := int(float64(i) * step)
		if idx >= len(pool) {
			idx = len(pool) - 1
		}
		v := int(pool[idx])
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
