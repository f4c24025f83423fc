// Package bufferpool implements the fixed-size page cache: a frame array,
// a page table, a free list, and an LRU-K replacer, all guarded by one
// coarse mutex (spec.md §3–§5).
package bufferpool

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/riftdb/pagecache/src/pkg/assert"
	"github.com/riftdb/pagecache/src/pkg/common"
	"github.com/riftdb/pagecache/src/pkg/metrics"
	"github.com/riftdb/pagecache/src/replacer"
	"github.com/riftdb/pagecache/src/storage/page"
)

// ErrNoFrame is the signaled outcome of spec.md §7: every frame is pinned
// and the replacer has nothing evictable. Check with errors.Is.
var ErrNoFrame = errors.New("bufferpool: no frame available, all frames pinned")

// Manager is the buffer pool manager. All public methods hold mu for
// their full duration, including any disk I/O they perform — a
// deliberate simplification (spec.md §9): correctness over throughput.
type Manager struct {
	mu sync.Mutex

	frames    []*frame
	freeList  []common.FrameID
	pageTable map[common.PageID]common.FrameID

	replacer Replacer
	disk     DiskManager

	nextPageID common.PageID

	log     *zap.SugaredLogger
	metrics *metrics.BufferPoolMetrics
	tracer  trace.Tracer
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger overrides the manager's logger; the default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics overrides the manager's metrics recorder.
func WithMetrics(bm *metrics.BufferPoolMetrics) Option {
	return func(m *Manager) { m.metrics = bm }
}

// WithReplacer overrides the manager's replacer; tests use this to inject
// a stub. Production callers should leave it unset.
func WithReplacer(r Replacer) Option {
	return func(m *Manager) { m.replacer = r }
}

// New constructs a pool of poolSize frames backed by disk, with an
// LRU-K(k) replacer (spec.md §2). poolSize and k must both be positive.
func New(poolSize uint64, k uint64, disk DiskManager, opts ...Option) (*Manager, error) {
	assert.Assert(poolSize > 0, "bufferpool: pool size must be greater than zero")
	assert.Assert(disk != nil, "bufferpool: disk manager must not be nil")

	frames := make([]*frame, poolSize)
	freeList := make([]common.FrameID, poolSize)

	for i := range frames {
		frames[i] = newFrame()
		freeList[i] = common.FrameID(i)
	}

	m := &Manager{
		frames:    frames,
		freeList:  freeList,
		pageTable: make(map[common.PageID]common.FrameID, poolSize),
		replacer:  replacer.New(poolSize, k),
		disk:      disk,
		log:       zap.NewNop().Sugar(),
		tracer:    otel.Tracer("github.com/riftdb/pagecache/src/bufferpool"),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.metrics == nil {
		bm, err := metrics.New(otel.Meter("github.com/riftdb/pagecache"))
		if err != nil {
			return nil, errors.Wrap(err, "bufferpool: init metrics")
		}

		m.metrics = bm
	}

	return m, nil
}

// acquireFrame returns a frame ready for reuse: either the head of the
// free list, or an evicted frame with its dirty contents written back and
// its old mapping removed. It returns (common.InvalidFrameID, nil) when
// there is nothing to acquire (spec.md §4.C's "signaled: none") and a
// non-nil error only for a genuine disk write-back failure, which aborts
// the caller's operation: the victim keeps its page, its mapping and its
// dirty bit, and is tracked by the replacer again as evictable.
func (m *Manager) acquireFrame(ctx context.Context) (common.FrameID, error) {
	if len(m.freeList) > 0 {
		id := m.freeList[0]
		m.freeList = m.freeList[1:]

		return id, nil
	}

	victimOpt := m.replacer.Evict()

	victim, ok := victimOpt.Get()
	if !ok {
		m.log.Warnw("no frame available, all frames pinned")
		return common.InvalidFrameID, nil
	}

	m.metrics.Eviction(ctx)

	f := m.frames[victim]
	m.log.Debugw("evicting page", "page_id", f.pageID, "frame_id", victim)

	if f.page.IsDirty() {
		if err := m.disk.WritePage(ctx, f.pageID, f.page.GetData()); err != nil {
			// Evict already dropped the victim's replacer node.
			m.replacer.RecordAccess(victim, replacer.AccessUnknown)
			m.replacer.SetEvictable(victim, true)

			return common.InvalidFrameID, errors.Wrapf(err, "bufferpool: write back evicted page %d", f.pageID)
		}

		f.page.SetDirtiness(false)
		m.metrics.Writeback(ctx)
		m.log.Debugw("wrote back dirty page", "page_id", f.pageID, "frame_id", victim)
	}

	delete(m.pageTable, f.pageID)
	f.pageID = common.InvalidPageID

	return victim, nil
}

// pin records the access, marks frameID non-evictable, and increments its
// pin count — mirrors the bookkeeping every NewPage/FetchPage hit performs
// once it has committed to a frame. RecordAccess must run first: a freshly
// acquired frame has no replacer node yet, and SetEvictable is fatal on an
// untracked frame.
func (m *Manager) pin(frameID common.FrameID, accessType replacer.AccessType) {
	m.replacer.RecordAccess(frameID, accessType)
	m.replacer.SetEvictable(frameID, false)
	m.frames[frameID].pinCount++
}

func (m *Manager) allocatePageID() common.PageID {
	id := m.nextPageID
	m.nextPageID++

	return id
}

// NewPage allocates a page id, binds it to an available frame, and
// returns the pinned, zero-filled page. ErrNoFrame is returned when every
// frame is pinned (spec.md §4.A).
func (m *Manager) NewPage(ctx context.Context) (common.PageID, *page.Page, error) {
	ctx, span := m.tracer.Start(ctx, "bufferpool.NewPage")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, err := m.acquireFrame(ctx)
	if err != nil {
		return common.InvalidPageID, nil, err
	}

	if frameID == common.InvalidFrameID {
		m.metrics.Miss(ctx)
		return common.InvalidPageID, nil, ErrNoFrame
	}

	pageID := m.allocatePageID()

	f := m.frames[frameID]
	f.pageID = pageID
	f.pinCount = 0
	f.page.SetDirtiness(false)
	f.page.SetData(make([]byte, page.Size))

	m.pageTable[pageID] = frameID
	m.pin(frameID, replacer.AccessUnknown)

	m.metrics.NewPage(ctx)
	m.log.Debugw("allocated page", "page_id", pageID, "frame_id", frameID)
	span.SetAttributes(attribute.Int64("page_id", int64(pageID)))

	return pageID, f.page, nil
}

// FetchPage returns the pinned page for id, reading it from disk on a
// miss. ErrNoFrame is returned on a miss when no frame is available.
func (m *Manager) FetchPage(ctx context.Context, id common.PageID) (*page.Page, error) {
	ctx, span := m.tracer.Start(ctx, "bufferpool.FetchPage", trace.WithAttributes(attribute.Int64("page_id", int64(id))))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if frameID, ok := m.pageTable[id]; ok {
		m.pin(frameID, replacer.AccessLookup)
		m.metrics.Hit(ctx)

		return m.frames[frameID].page, nil
	}

	m.metrics.Miss(ctx)

	frameID, err := m.acquireFrame(ctx)
	if err != nil {
		return nil, err
	}

	if frameID == common.InvalidFrameID {
		return nil, ErrNoFrame
	}

	f := m.frames[frameID]
	f.pageID = id
	f.pinCount = 0

	buf := make([]byte, page.Size)
	if err := m.disk.ReadPage(ctx, id, buf); err != nil {
		// Frame was already detached from its previous page by acquireFrame;
		// return it to the free list rather than leaking the slot.
		f.pageID = common.InvalidPageID
		m.freeList = append([]common.FrameID{frameID}, m.freeList...)

		return nil, errors.Wrapf(err, "bufferpool: read page %d from disk", id)
	}

	f.page.SetData(buf)
	f.page.SetDirtiness(false)

	m.pageTable[id] = frameID
	m.pin(frameID, replacer.AccessLookup)

	m.log.Debugw("fetched page from disk", "page_id", id, "frame_id", frameID)

	return f.page, nil
}

// Unpin decrements id's pin count, folding dirty into the frame's dirty
// bit with OR semantics — a later Unpin(id, false) never clears a dirty
// bit set by an earlier caller. Returns false if id is not resident or
// already unpinned (spec.md §4.A).
func (m *Manager) Unpin(ctx context.Context, id common.PageID, dirty bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		return false
	}

	f := m.frames[frameID]
	if f.pinCount == 0 {
		return false
	}

	if dirty {
		f.page.SetDirtiness(true)
	}

	f.pinCount--
	if f.pinCount == 0 {
		m.replacer.SetEvictable(frameID, true)
	}

	return true
}

// FlushPage writes id's contents to disk if resident and dirty, leaving
// it resident (spec.md Open Questions: unlike bustub, this does not clear
// the page id on the frame). The bool is false for an invalid or not
// resident id (with a nil error) and when the write itself fails (with a
// non-nil error).
func (m *Manager) FlushPage(ctx context.Context, id common.PageID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !id.IsValid() {
		return false, nil
	}

	frameID, ok := m.pageTable[id]
	if !ok {
		return false, nil
	}

	f := m.frames[frameID]
	if !f.page.IsDirty() {
		return true, nil
	}

	if err := m.disk.WritePage(ctx, id, f.page.GetData()); err != nil {
		return false, errors.Wrapf(err, "bufferpool: flush page %d", id)
	}

	f.page.SetDirtiness(false)
	m.metrics.Writeback(ctx)

	return true, nil
}

// FlushAllPages flushes every dirty resident page, collecting any write
// failures into a single aggregate error rather than aborting on the
// first one.
func (m *Manager) FlushAllPages(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result *multierror.Error

	for id, frameID := range m.pageTable {
		f := m.frames[frameID]
		if !f.page.IsDirty() {
			continue
		}

		if err := m.disk.WritePage(ctx, id, f.page.GetData()); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "bufferpool: flush page %d", id))
			continue
		}

		f.page.SetDirtiness(false)
		m.metrics.Writeback(ctx)
	}

	return result.ErrorOrNil()
}

// DeletePage removes id from the pool, returning its frame to the free
// list. Returns true vacuously if id isn't resident, and false without
// deleting anything if it is still pinned (spec.md §4.A).
func (m *Manager) DeletePage(ctx context.Context, id common.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[id]
	if !ok {
		return true
	}

	f := m.frames[frameID]
	if f.pinCount > 0 {
		return false
	}

	delete(m.pageTable, id)
	m.replacer.Remove(frameID)

	f.pageID = common.InvalidPageID
	f.page.SetDirtiness(false)

	m.freeList = append(m.freeList, frameID)

	return true
}

// FetchPageBasic is FetchPage wrapped in a BasicPageGuard, so the caller
// releases the pin via defer instead of calling Unpin directly.
func (m *Manager) FetchPageBasic(ctx context.Context, id common.PageID) (*BasicPageGuard, error) {
	pg, err := m.FetchPage(ctx, id)
	if err != nil {
		return nil, err
	}

	return newBasicPageGuard(ctx, m, id, pg), nil
}

// FetchPageRead fetches id and acquires the page's reader latch, in that
// order — the manager's own latch is released before the page latch is
// taken, exactly as FetchPageBasic already does (spec.md §5).
func (m *Manager) FetchPageRead(ctx context.Context, id common.PageID) (*ReadPageGuard, error) {
	g, err := m.FetchPageBasic(ctx, id)
	if err != nil {
		return nil, err
	}

	g.page.RLock()

	return &ReadPageGuard{guard: g}, nil
}

// FetchPageWrite fetches id and acquires the page's writer latch.
func (m *Manager) FetchPageWrite(ctx context.Context, id common.PageID) (*WritePageGuard, error) {
	g, err := m.FetchPageBasic(ctx, id)
	if err != nil {
		return nil, err
	}

	g.page.Lock()

	return &WritePageGuard{guard: g}, nil
}

// NewPageGuarded is NewPage wrapped in a BasicPageGuard.
func (m *Manager) NewPageGuarded(ctx context.Context) (*BasicPageGuard, error) {
	id, pg, err := m.NewPage(ctx)
	if err != nil {
		return nil, err
	}

	return newBasicPageGuard(ctx, m, id, pg), nil
}

// Size returns the number of distinct pages currently resident.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pageTable)
}
