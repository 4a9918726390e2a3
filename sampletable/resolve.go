package sampletable

import "github.com/pkg/errors"

// Sample is one derived sample record: the absolute byte range holding
// its payload, plus its presentation time (spec.md section 3, "Derived
// sample record").
type Sample struct {
	Index          int // 1-indexed
	ChunkIndex     int // 1-indexed
	OffsetInChunk  uint64
	Size           uint32
	AbsoluteOffset uint64
	TickTime       uint64
	TickDuration   uint32
}

// End returns the exclusive end of this sample's byte range.
func (s Sample) End() uint64 { return s.AbsoluteOffset + uint64(s.Size) }

// Seconds converts TickTime to seconds given the track's timescale.
func (s Sample) Seconds(timescale uint32) float64 {
	if timescale == 0 {
		return 0
	}
	return float64(s.TickTime) / float64(timescale)
}

// ErrRangeOutOfBounds is wrapped into the error returned when a derived
// sample's absolute range falls outside a known file size (spec.md
// section 3 invariants, section 8).
var ErrRangeOutOfBounds = errors.New("sampletable: sample range outside file bounds")

// Table bundles the decoded sample-table boxes for one track, enough to
// resolve any sample index to an absolute byte range.
type Table struct {
	Stsc         []StscEntry
	Stsz         Stsz
	ChunkOffsets []uint64
	Stts         []SttsEntry
}

// Resolve computes derived sample records for the indices in wanted
// (1-indexed, any order — the result is sorted ascending by Index
// regardless of input order, matching "desired indices are processed in
// sorted order" in spec.md section 4.4). A nil wanted resolves every
// sample. fileSize, when >= 0, is used to validate that every resolved
// range lies within the file; the first out-of-bounds sample aborts the
// whole resolve with a wrapped ErrRangeOutOfBounds, per spec.md section
// 7's "fatal error" handling (thumbnails). Callers that instead need a
// per-sample drop (subtitles) should use ResolveTolerant.
func Resolve(t Table, wanted []int, fileSize int64) ([]Sample, error) {
	samples, _, err := resolve(t, wanted, fileSize, false)
	return samples, err
}

// ResolveTolerant behaves like Resolve except an out-of-bounds sample is
// dropped rather than aborting the resolve; dropped holds the 1-indexed
// sample numbers skipped this way, in ascending order. This is the
// per-sample drop behavior spec.md section 7 asks for in the subtitle
// orchestrator: "that sample is dropped, extraction continues."
func ResolveTolerant(t Table, wanted []int, fileSize int64) (samples []Sample, dropped []int, err error) {
	return resolve(t, wanted, fileSize, true)
}

func resolve(t Table, wanted []int, fileSize int64, tolerant bool) ([]Sample, []int, error) {
	sampleCount := t.Stsz.Len()
	if sampleCount == 0 {
		return nil, nil, nil
	}

	var want map[int]bool
	remaining := -1
	if wanted != nil {
		want = make(map[int]bool, len(wanted))
		for _, w := range wanted {
			want[w] = true
		}
		remaining = len(want)
	}

	perChunk := expandStsc(t.Stsc, len(t.ChunkOffsets))

	out := make([]Sample, 0, sampleCount)
	var dropped []int
	sampleIdx := 0 // 0-indexed running count across all chunks

	sttsEntryIdx := 0
	sttsRemainingInEntry := uint32(0)
	if len(t.Stts) > 0 {
		sttsRemainingInEntry = t.Stts[0].Count
	}
	var tickTime uint64

	for chunkIdx := 1; chunkIdx <= len(t.ChunkOffsets) && sampleIdx < sampleCount; chunkIdx++ {
		chunkOffset := t.ChunkOffsets[chunkIdx-1]
		samplesInChunk := perChunk[chunkIdx-1]
		var offsetInChunk uint64

		for s := uint32(0); s < samplesInChunk && sampleIdx < sampleCount; s++ {
			size := t.Stsz.Size(sampleIdx)
			idx1 := sampleIdx + 1

			var tickDuration uint32
			if len(t.Stts) > 0 {
				for sttsRemainingInEntry == 0 && sttsEntryIdx < len(t.Stts)-1 {
					sttsEntryIdx++
					sttsRemainingInEntry = t.Stts[sttsEntryIdx].Count
				}
				if sttsRemainingInEntry > 0 {
					tickDuration = t.Stts[sttsEntryIdx].Duration
					sttsRemainingInEntry--
				}
			}

			include := want == nil || want[idx1]
			if include {
				rec := Sample{
					Index:          idx1,
					ChunkIndex:     chunkIdx,
					OffsetInChunk:  offsetInChunk,
					Size:           size,
					AbsoluteOffset: chunkOffset + offsetInChunk,
					TickTime:       tickTime,
					TickDuration:   tickDuration,
				}
				if fileSize >= 0 && (rec.AbsoluteOffset > uint64(fileSize) || rec.End() > uint64(fileSize)) {
					if !tolerant {
						return nil, nil, errors.Wrapf(ErrRangeOutOfBounds, "sample %d: offset %d size %d file size %d", idx1, rec.AbsoluteOffset, rec.Size, fileSize)
					}
					dropped = append(dropped, idx1)
				} else {
					out = append(out, rec)
				}
				if want != nil {
					remaining--
				}
			}

			offsetInChunk += uint64(size)
			tickTime += uint64(tickDuration)
			sampleIdx++

			if want != nil && remaining <= 0 {
				return sortByIndex(out), dropped, nil
			}
		}
	}

	return sortByIndex(out), dropped, nil
}

// expandStsc turns the sparse stsc run-length entries into an explicit
// per-chunk sample count, per spec.md section 4.4 step 1: "walking
// entries and using each until the next entry's first_chunk begins."
func expandStsc(entries []StscEntry, numChunks int) []uint32 {
	out := make([]uint32, numChunks)
	if len(entries) == 0 {
		return out
	}
	for i, e := range entries {
		start := int(e.FirstChunk)
		end := numChunks + 1
		if i+1 < len(entries) {
			end = int(entries[i+1].FirstChunk)
		}
		for c := start; c < end && c <= numChunks; c++ {
			out[c-1] = e.SamplesPerChunk
		}
	}
	return out
}

func sortByIndex(s []Sample) []Sample {
	// Samples are appended in ascending chunk/offset order, which is
	// already ascending by Index; this is a defensive no-op sort kept
	// cheap for the common case.
	for i := 1; i < len(s); i++ {
		if s[i].Index < s[i-1].Index {
			insertionSort(s)
			break
		}
	}
	return s
}

func insertionSort(s []Sample) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Index < s[j-1].Index; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
