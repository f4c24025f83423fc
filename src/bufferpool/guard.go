package bufferpool

import (
	"context"

	"github.com/riftdb/pagecache/src/pkg/common"
	"github.com/riftdb/pagecache/src/storage/page"
)

// BasicPageGuard is a scoped pin (spec.md §4.B). Go has no destructors, so
// the RAII contract is adapted to an explicit release: callers must
// `defer guard.Release()` where the C++ source relied on scope exit.
// Repeated Release/Drop calls are no-ops, and Move transfers ownership
// explicitly since a plain struct assignment would otherwise just copy the
// "active" flag along with everything else.
type BasicPageGuard struct {
	ctx context.Context //nolint:containedctx // carried so Release doesn't need a second ctx argument

	mgr    *Manager
	pageID common.PageID
	page   *page.Page

	dirty  bool
	active bool
}

func newBasicPageGuard(ctx context.Context, mgr *Manager, id common.PageID, pg *page.Page) *BasicPageGuard {
	return &BasicPageGuard{
		ctx:    ctx,
		mgr:    mgr,
		pageID: id,
		page:   pg,
		active: true,
	}
}

// Page returns the guarded page. Valid only while the guard is active.
func (g *BasicPageGuard) Page() *page.Page { return g.page }

// PageID returns the guarded page's id.
func (g *BasicPageGuard) PageID() common.PageID { return g.pageID }

// SetDirty marks the guarded page dirty; the flag is applied to the frame
// when the guard releases its pin, matching spec.md §4.B's "mark dirty
// prior to release."
func (g *BasicPageGuard) SetDirty(dirty bool) {
	if g == nil || !g.active {
		return
	}

	g.dirty = dirty
}

// Drop releases the pin immediately. Safe to call more than once; every
// call after the first is a no-op.
func (g *BasicPageGuard) Drop() {
	if g == nil || !g.active {
		return
	}

	g.active = false
	g.mgr.Unpin(g.ctx, g.pageID, g.dirty)
}

// Release is Drop, named for defer-at-call-site readability.
func (g *BasicPageGuard) Release() { g.Drop() }

// Move transfers ownership of the pin to a new guard, leaving g inactive.
// Use this instead of a plain assignment when a guard needs to outlive the
// scope that obtained it.
func (g *BasicPageGuard) Move() *BasicPageGuard {
	if g == nil || !g.active {
		return &BasicPageGuard{}
	}

	moved := &BasicPageGuard{
		ctx:    g.ctx,
		mgr:    g.mgr,
		pageID: g.pageID,
		page:   g.page,
		dirty:  g.dirty,
		active: true,
	}
	g.active = false

	return moved
}

// Replace releases g's current pin, if any, then takes over src's pin,
// leaving src inactive — the spec's move-assignment contract.
func (g *BasicPageGuard) Replace(src *BasicPageGuard) {
	g.Drop()
	*g = *src.Move()
}

// ReadPageGuard additionally holds the page's reader latch, released
// before the underlying pin (spec.md §4.B).
type ReadPageGuard struct {
	guard *BasicPageGuard
}

func (g *ReadPageGuard) Page() *page.Page { return g.guard.page }
func (g *ReadPageGuard) PageID() common.PageID { return g.guard.pageID }

func (g *ReadPageGuard) Drop() {
	if g == nil || g.guard == nil || !g.guard.active {
		return
	}

	g.guard.page.RUnlock()
	g.guard.Drop()
}

func (g *ReadPageGuard) Release() { g.Drop() }

func (g *ReadPageGuard) Move() *ReadPageGuard {
	if g == nil || g.guard == nil {
		return &ReadPageGuard{guard: &BasicPageGuard{}}
	}

	return &ReadPageGuard{guard: g.guard.Move()}
}

// WritePageGuard additionally holds the page's writer latch. Per spec.md
// §4.B, write guards are dirty by policy at release unless the caller
// opts out with SetClean.
type WritePageGuard struct {
	guard *BasicPageGuard
	clean bool
}

func (g *WritePageGuard) Page() *page.Page { return g.guard.page }
func (g *WritePageGuard) PageID() common.PageID { return g.guard.pageID }

// SetClean opts this guard out of the default dirty-on-release policy.
func (g *WritePageGuard) SetClean() { g.clean = true }

func (g *WritePageGuard) Drop() {
	if g == nil || g.guard == nil || !g.guard.active {
		return
	}

	if !g.clean {
		g.guard.SetDirty(true)
	}

	g.guard.page.Unlock()
	g.guard.Drop()
}

func (g *WritePageGuard) Release() { g.Drop() }

func (g *WritePageGuard) Move() *WritePageGuard {
	if g == nil || g.guard == nil {
		return &WritePageGuard{guard: &BasicPageGuard{}}
	}

	return &WritePageGuard{guard: g.guard.Move(), clean: g.clean}
}
