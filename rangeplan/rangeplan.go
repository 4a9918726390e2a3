// Package rangeplan turns a set of desired sample byte ranges into a
// minimal, coalesced list of fetches, per spec.md section 4.5. Every
// orchestrator (subtitle, thumbnail) runs its resolved samples through
// this package before touching the byte source.
package rangeplan

import "sort"

// DefaultGapThreshold is the default merge-window slack, in bytes:
// adjacent or near-adjacent sample ranges separated by less than this
// many bytes are coalesced into one fetch (spec.md section 4.5).
const DefaultGapThreshold = 4096

// Item is one sample's absolute byte range, keyed by an opaque ID the
// caller assigns (typically the 1-indexed sample number).
type Item struct {
	ID     int
	Offset uint64
	Size   uint32
}

func (i Item) end() uint64 { return i.Offset + uint64(i.Size) }

// Range is one coalesced byte-range fetch.
type Range struct {
	Offset uint64
	Size   uint64
}

func (r Range) end() uint64 { return r.Offset + r.Size }

// Placement locates one sample's bytes within a Range once it has been
// fetched: RangeIndex indexes into the Plan's Ranges slice, and Offset
// is the byte offset of the sample's data within that range's buffer.
type Placement struct {
	RangeIndex int
	Offset     uint64
	Size       uint32
}

// Plan is the result of coalescing: the ranges to fetch, and where
// each input item's bytes land within them, keyed by item ID.
type Plan struct {
	Ranges    []Range
	Placement map[int]Placement
}

// Build sorts items by absolute offset and coalesces them into Ranges
// using a sliding merge window, per the algorithm in spec.md section
// 4.5: a gap smaller than gapThreshold between the current window's
// high mark and the next item's start extends the window rather than
// starting a new range. A gapThreshold of 0 or less uses
// DefaultGapThreshold.
func Build(items []Item, gapThreshold int) Plan {
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}
	plan := Plan{Placement: make(map[int]Placement, len(items))}
	if len(items) == 0 {
		return plan
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	lo := sorted[0].Offset
	hi := sorted[0].end()
	windowItems := []Item{sorted[0]}

	flush := func() {
		idx := len(plan.Ranges)
		plan.Ranges = append(plan.Ranges, Range{Offset: lo, Size: hi - lo})
		for _, it := range windowItems {
			plan.Placement[it.ID] = Placement{
				RangeIndex: idx,
				Offset:     it.Offset - lo,
				Size:       it.Size,
			}
		}
		windowItems = windowItems[:0]
	}

	for _, it := range sorted[1:] {
		gap := int64(it.Offset) - int64(hi)
		if gap < int64(gapThreshold) {
			if it.end() > hi {
				hi = it.end()
			}
			windowItems = append(windowItems, it)
			continue
		}
		flush()
		lo = it.Offset
		hi = it.end()
		windowItems = append(windowItems, it)
	}
	flush()

	return plan
}
