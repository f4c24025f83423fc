package bufferpool

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/pagecache/src/storage/disk"
)

func newGuardTestManager(t *testing.T, poolSize uint64) *Manager {
	t.Helper()

	d, err := disk.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	m, err := New(poolSize, 2, d)
	require.NoError(t, err)

	return m
}

func TestBasicPageGuardReleaseUnpins(t *testing.T) {
	m := newGuardTestManager(t, 1)
	ctx := context.Background()

	g, err := m.NewPageGuarded(ctx)
	require.NoError(t, err)

	g.Release()
	require.False(t, m.Unpin(ctx, g.PageID(), false), "pin should already be released")

	// frame is free again: a second page can be allocated without ErrNoFrame.
	_, _, err = m.NewPage(ctx)
	require.NoError(t, err)
}

func TestBasicPageGuardReleaseIsIdempotent(t *testing.T) {
	m := newGuardTestManager(t, 1)
	ctx := context.Background()

	g, err := m.NewPageGuarded(ctx)
	require.NoError(t, err)

	g.Release()
	g.Release() // must not double-unpin

	_, _, err = m.NewPage(ctx)
	require.NoError(t, err)
}

func TestBasicPageGuardSetDirtyAppliesOnRelease(t *testing.T) {
	m, d := newTestManager(t, 1)
	ctx := context.Background()

	g, err := m.NewPageGuarded(ctx)
	require.NoError(t, err)

	g.Page().SetData(bytesOf('x'))
	g.SetDirty(true)
	g.Release()

	_, _, err = m.NewPage(ctx) // forces eviction of the frame just released
	require.NoError(t, err)

	require.Equal(t, 1, d.writeCount(g.PageID()))
}

func TestBasicPageGuardMoveTransfersOwnership(t *testing.T) {
	m := newGuardTestManager(t, 1)
	ctx := context.Background()

	g, err := m.NewPageGuarded(ctx)
	require.NoError(t, err)

	moved := g.Move()

	g.Release() // no-op: g no longer owns the pin
	require.Equal(t, moved.PageID(), g.PageID())

	moved.Release()

	_, _, err = m.NewPage(ctx)
	require.NoError(t, err)
}

func TestWritePageGuardIsDirtyByDefault(t *testing.T) {
	m, d := newTestManager(t, 1)
	ctx := context.Background()

	id, _, err := m.NewPage(ctx)
	require.NoError(t, err)
	require.True(t, m.Unpin(ctx, id, false))

	g, err := m.FetchPageWrite(ctx, id)
	require.NoError(t, err)
	g.Page().SetData(bytesOf('w'))
	g.Release()

	_, _, err = m.NewPage(ctx) // evict id's frame
	require.NoError(t, err)

	require.Equal(t, 1, d.writeCount(id))
}

func TestWritePageGuardSetCleanSuppressesDirty(t *testing.T) {
	m, d := newTestManager(t, 1)
	ctx := context.Background()

	id, _, err := m.NewPage(ctx)
	require.NoError(t, err)
	require.True(t, m.Unpin(ctx, id, false))

	g, err := m.FetchPageWrite(ctx, id)
	require.NoError(t, err)
	g.SetClean()
	g.Release()

	_, _, err = m.NewPage(ctx)
	require.NoError(t, err)

	require.Equal(t, 0, d.writeCount(id))
}

func TestReadPageGuardReleasesReaderLatch(t *testing.T) {
	m := newGuardTestManager(t, 2)
	ctx := context.Background()

	id, _, err := m.NewPage(ctx)
	require.NoError(t, err)
	require.True(t, m.Unpin(ctx, id, false))

	g1, err := m.FetchPageRead(ctx, id)
	require.NoError(t, err)

	done := make(chan struct{})

	go func() {
		g2, err := m.FetchPageRead(ctx, id)
		require.NoError(t, err)
		g2.Release()
		close(done)
	}()

	<-done // a second concurrent reader latch must not deadlock
	g1.Release()

	// Both reader latches are released: a writer can now take the latch.
	w, err := m.FetchPageWrite(ctx, id)
	require.NoError(t, err)
	w.Release()
}
