// Package replacer implements the LRU-K eviction policy (spec.md §4.A):
// frames are tracked in a "history" region (fewer than K recorded accesses)
// and a "cache" region (K or more), with history victims always preferred
// over cache victims.
package replacer

import (
	"container/list"
	"sync"

	"github.com/riftdb/pagecache/src/pkg/assert"
	"github.com/riftdb/pagecache/src/pkg/common"
	"github.com/riftdb/pagecache/src/pkg/optional"
)

// AccessType distinguishes why a frame was touched. The replacer's
// eviction decision never depends on it; it exists so callers (and, above
// them, metrics) can tag the access, matching the access_type parameter in
// the original LRU-K interface.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
	AccessIndex
)

// node is one tracked frame. history holds up to k timestamps, oldest
// first. Because entries older than the k most recent are always dropped,
// history[0] is simultaneously:
//   - the frame's first-ever access timestamp, while len(history) < k
//     (used to rank history-region victims), and
//   - the frame's k-th-most-recent access timestamp, once len(history) ==
//     k (used to rank cache-region victims via classic backward-k-distance).
//
// This lets Evict rank both regions with the same comparison.
type node struct {
	frameID   common.FrameID
	history   []int64
	evictable bool
	inCache   bool
	elem      *list.Element
}

// LRUKReplacer is the concrete LRU-K policy. It satisfies bufferpool.Replacer.
type LRUKReplacer struct {
	mu sync.Mutex

	numFrames uint64
	k         uint64

	nodes        map[common.FrameID]*node
	historyList  *list.List // nodes with len(history) < k
	cacheList    *list.List // nodes with len(history) == k
	evictableCnt int

	clock int64
}

// New returns an LRU-K replacer that tracks at most numFrames frames, using
// k recorded accesses to define the cache region.
func New(numFrames, k uint64) *LRUKReplacer {
	assert.Assert(k >= 1, "lru-k: k must be at least 1")

	return &LRUKReplacer{
		numFrames:   numFrames,
		k:           k,
		nodes:       make(map[common.FrameID]*node, numFrames),
		historyList: list.New(),
		cacheList:   list.New(),
	}
}

// RecordAccess appends the current timestamp to frameID's access history,
// creating its node on first access. New nodes start non-evictable,
// matching the spec's node lifecycle.
func (r *LRUKReplacer) RecordAccess(frameID common.FrameID, _ AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.clock
	r.clock++

	n, tracked := r.nodes[frameID]
	if !tracked {
		assert.Assert(
			uint64(len(r.nodes)) < r.numFrames,
			"lru-k: tracked node count would exceed capacity %d", r.numFrames,
		)

		n = &node{frameID: frameID, history: []int64{ts}}
		r.nodes[frameID] = n

		if uint64(len(n.history)) == r.k {
			n.inCache = true
			n.elem = r.cacheList.PushFront(n)
		} else {
			n.elem = r.historyList.PushFront(n)
		}

		return
	}

	n.history = append(n.history, ts)
	if uint64(len(n.history)) > r.k {
		n.history = n.history[1:]
	}

	switch {
	case !n.inCache && uint64(len(n.history)) == r.k:
		r.historyList.Remove(n.elem)
		n.inCache = true
		n.elem = r.cacheList.PushFront(n)
	case n.inCache:
		r.cacheList.MoveToFront(n.elem)
	default:
		r.historyList.MoveToFront(n.elem)
	}
}

// SetEvictable toggles frameID's evictable flag. It is a no-op if the flag
// is unchanged, and a fatal error if frameID is not tracked.
func (r *LRUKReplacer) SetEvictable(frameID common.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, tracked := r.nodes[frameID]
	assert.Assert(tracked, "lru-k: set_evictable on unknown frame %d", frameID)

	if n.evictable == evictable {
		return
	}

	if evictable {
		r.evictableCnt++
	} else {
		r.evictableCnt--
	}

	n.evictable = evictable
}

// Evict selects a victim: the evictable history-region node with the
// earliest first-recorded timestamp if one exists, else the evictable
// cache-region node with the earliest k-th-most-recent access. The chosen
// node is removed entirely.
func (r *LRUKReplacer) Evict() optional.Optional[common.FrameID] {
	r.mu.Lock()
	defer r.mu.Unlock()

	victim := earliestEvictable(r.historyList)
	if victim == nil {
		victim = earliestEvictable(r.cacheList)
	}

	if victim == nil {
		return optional.None[common.FrameID]()
	}

	r.removeNodeLocked(victim)

	return optional.Some(victim.frameID)
}

// Remove drops frameID's node unconditionally. It is a fatal error to
// remove a node that is not evictable or not tracked.
func (r *LRUKReplacer) Remove(frameID common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, tracked := r.nodes[frameID]
	assert.Assert(tracked, "lru-k: remove on unknown frame %d", frameID)
	assert.Assert(n.evictable, "lru-k: remove on non-evictable frame %d", frameID)

	r.removeNodeLocked(n)
}

// Size returns the number of currently evictable tracked nodes.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.evictableCnt
}

func (r *LRUKReplacer) removeNodeLocked(n *node) {
	if n.inCache {
		r.cacheList.Remove(n.elem)
	} else {
		r.historyList.Remove(n.elem)
	}

	delete(r.nodes, n.frameID)

	if n.evictable {
		r.evictableCnt--
	}
}

// earliestEvictable scans l for the evictable node with the smallest
// history[0], breaking ties by frame id for determinism.
func earliestEvictable(l *list.List) *node {
	var best *node

	for e := l.Front(); e != nil; e = e.Next() {
		n, _ := e.Value.(*node)
		if !n.evictable {
			continue
		}

		if best == nil ||
			n.history[0] < best.history[0] ||
			(n.history[0] == best.history[0] && n.frameID < best.frameID) {
			best = n
		}
	}

	return best
}
