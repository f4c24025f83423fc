package replacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/pagecache/src/pkg/common"
)

func frame(id int) common.FrameID { return common.FrameID(id) }

// History-region victims are always preferred over cache-region victims,
// and are chosen by earliest first access (spec.md §8 scenario 1).
func TestEvict_HistoryPrecedesCache(t *testing.T) {
	r := New(10, 2)

	// Frame 6 reaches the cache region before any history frame is touched,
	// so it holds the oldest timestamps of all.
	r.RecordAccess(frame(6), AccessUnknown)
	r.RecordAccess(frame(6), AccessUnknown)
	r.SetEvictable(frame(6), true)

	for i := 1; i <= 5; i++ {
		r.RecordAccess(frame(i), AccessUnknown)
		r.SetEvictable(frame(i), true)
	}

	for i := 1; i <= 5; i++ {
		v := r.Evict()
		got, ok := v.Get()
		require.True(t, ok)
		assert.Equal(t, frame(i), got)
	}

	last := r.Evict()
	got, ok := last.Get()
	require.True(t, ok)
	assert.Equal(t, frame(6), got, "cache frame goes only after the history region is empty")

	none := r.Evict()
	assert.False(t, none.IsSome())
}

func TestEvict_PromotedNodeIsSkippedUntilHistoryDrains(t *testing.T) {
	r := New(10, 2)

	for i := 1; i <= 5; i++ {
		r.RecordAccess(frame(i), AccessUnknown)
		r.SetEvictable(frame(i), true)
	}

	// Second access promotes frame 3 into the cache region.
	r.RecordAccess(frame(3), AccessUnknown)

	for _, want := range []int{1, 2, 4, 5} {
		v := r.Evict()
		got, ok := v.Get()
		require.True(t, ok)
		assert.Equal(t, frame(want), got, "oldest untouched history frame wins, not the promoted one")
	}

	v := r.Evict()
	got, ok := v.Get()
	require.True(t, ok)
	assert.Equal(t, frame(3), got, "promoted frame is evicted once the history region has drained")
}

// Classic LRU-K tie-break in the cache region (spec.md §8 scenario 2).
func TestEvict_ClassicLRUKTieBreak(t *testing.T) {
	r := New(10, 2)

	sequence := []int{1, 1, 2, 2, 3, 1, 2}
	for _, f := range sequence {
		r.RecordAccess(frame(f), AccessUnknown)
	}

	for _, f := range []int{1, 2, 3} {
		r.SetEvictable(frame(f), true)
	}

	first := r.Evict()
	got, ok := first.Get()
	require.True(t, ok)
	assert.Equal(t, frame(3), got, "frame with <k accesses is always evicted first")

	second := r.Evict()
	got, ok = second.Get()
	require.True(t, ok)
	assert.Equal(t, frame(1), got, "frame 1's 2nd-most-recent access precedes frame 2's")
}

// A non-evictable frame is never returned by Evict (spec.md §8 scenario 3).
func TestEvict_PinBlocksEviction(t *testing.T) {
	r := New(10, 2)

	r.RecordAccess(frame(7), AccessUnknown)
	r.SetEvictable(frame(7), false)

	none := r.Evict()
	assert.False(t, none.IsSome())
}

// Removing a non-evictable frame is a contract violation (spec.md §8 scenario 4).
func TestRemove_NonEvictableFrameIsFatal(t *testing.T) {
	r := New(10, 2)
	r.RecordAccess(frame(4), AccessUnknown)

	assert.Panics(t, func() {
		r.Remove(frame(4))
	})
}

func TestRemove_EvictableFrameDropsNode(t *testing.T) {
	r := New(10, 2)
	r.RecordAccess(frame(4), AccessUnknown)
	r.SetEvictable(frame(4), true)

	require.Equal(t, 1, r.Size())
	r.Remove(frame(4))
	require.Equal(t, 0, r.Size())

	none := r.Evict()
	assert.False(t, none.IsSome())
}

func TestSetEvictable_IsNoOpWhenUnchanged(t *testing.T) {
	r := New(10, 2)
	r.RecordAccess(frame(1), AccessUnknown)

	r.SetEvictable(frame(1), false) // already false, must not underflow the counter
	assert.Equal(t, 0, r.Size())

	r.SetEvictable(frame(1), true)
	assert.Equal(t, 1, r.Size())

	r.SetEvictable(frame(1), true) // already true
	assert.Equal(t, 1, r.Size())
}

func TestRecordAccess_CapacityOverflowIsFatal(t *testing.T) {
	r := New(1, 2)
	r.RecordAccess(frame(1), AccessUnknown)

	assert.Panics(t, func() {
		r.RecordAccess(frame(2), AccessUnknown)
	})
}

func TestSetEvictable_UnknownFrameIsFatal(t *testing.T) {
	r := New(10, 2)

	assert.Panics(t, func() {
		r.SetEvictable(frame(99), true)
	})
}

func TestSize_TracksOnlyEvictableNodes(t *testing.T) {
	r := New(10, 2)

	r.RecordAccess(frame(1), AccessUnknown)
	r.RecordAccess(frame(2), AccessUnknown)
	assert.Equal(t, 0, r.Size())

	r.SetEvictable(frame(1), true)
	assert.Equal(t, 1, r.Size())

	r.SetEvictable(frame(2), true)
	assert.Equal(t, 2, r.Size())

	_ = r.Evict()
	assert.Equal(t, 1, r.Size())
}
