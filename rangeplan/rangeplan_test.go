package rangeplan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildCoalescesAdjacentSamples(t *testing.T) {
	items := []Item{
		{ID: 1, Offset: 1000, Size: 50},
		{ID: 2, Offset: 1100, Size: 50},
		{ID: 3, Offset: 9000, Size: 50},
	}

	plan := Build(items, DefaultGapThreshold)

	require.Len(t, plan.Ranges, 2)
	require.Equal(t, Range{Offset: 1000, Size: 150}, plan.Ranges[0])
	require.Equal(t, Range{Offset: 9000, Size: 50}, plan.Ranges[1])

	require.Equal(t, Placement{RangeIndex: 0, Offset: 0, Size: 50}, plan.Placement[1])
	require.Equal(t, Placement{RangeIndex: 0, Offset: 100, Size: 50}, plan.Placement[2])
	require.Equal(t, Placement{RangeIndex: 1, Offset: 0, Size: 50}, plan.Placement[3])
}

func TestBuildSortsUnorderedInput(t *testing.T) {
	items := []Item{
		{ID: 3, Offset: 9000, Size: 50},
		{ID: 1, Offset: 1000, Size: 50},
		{ID: 2, Offset: 1100, Size: 50},
	}

	plan := Build(items, 0)

	require.Len(t, plan.Ranges, 2)
	require.Equal(t, uint64(1000), plan.Ranges[0].Offset)
	require.Equal(t, uint64(9000), plan.Ranges[1].Offset)
}

func TestBuildEmpty(t *testing.T) {
	plan := Build(nil, 0)
	require.Empty(t, plan.Ranges)
	require.Empty(t, plan.Placement)
}

func TestBuildSingleItem(t *testing.T) {
	plan := Build([]Item{{ID: 7, Offset: 500, Size: 20}}, 0)
	require.Equal(t, []Range{{Offset: 500, Size: 20}}, plan.Ranges)
}
