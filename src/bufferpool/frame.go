package bufferpool

import (
	"github.com/riftdb/pagecache/src/pkg/common"
	"github.com/riftdb/pagecache/src/storage/page"
)

// frame is one fixed slot in the pool's frame array (spec.md §3). Frames
// are allocated once, in New, and never reallocated — identity is
// the slice index, passed around as common.FrameID.
type frame struct {
	page     *page.Page
	pageID   common.PageID
	pinCount int
}

func newFrame() *frame {
	return &frame{
		page:   page.New(),
		pageID: common.InvalidPageID,
	}
}
