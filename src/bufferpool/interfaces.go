package bufferpool

import (
	"context"

	"github.com/riftdb/pagecache/src/pkg/common"
	"github.com/riftdb/pagecache/src/pkg/optional"
	"github.com/riftdb/pagecache/src/replacer"
)

// Replacer is the victim-selection policy the manager delegates to. The
// interface lives here, not in package replacer, because the manager is
// the consumer (idiomatic Go: accept interfaces, return structs).
// *replacer.LRUKReplacer is the only production implementation; tests may
// substitute a stub.
type Replacer interface {
	RecordAccess(frameID common.FrameID, accessType replacer.AccessType)
	SetEvictable(frameID common.FrameID, evictable bool)
	Evict() optional.Optional[common.FrameID]
	Remove(frameID common.FrameID)
	Size() int
}

// DiskManager is the buffer pool's only I/O collaborator (spec.md §6).
// *disk.Manager is the production implementation.
type DiskManager interface {
	ReadPage(ctx context.Context, id common.PageID, buf []byte) error
	WritePage(ctx context.Context, id common.PageID, buf []byte) error
}
