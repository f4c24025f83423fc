// Package disk is the buffer pool's only collaborator below the frame
// array: a single backing file, addressed by fixed-size page offsets. Its
// read_page/write_page contract is exactly the one spec.md §6 describes;
// everything above this package (the page table, the replacer, dirty-bit
// policy) is out of its concern.
package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riftdb/pagecache/src/pkg/common"
)

// PageSize is the fixed size of every on-disk page slot.
const PageSize = 4096

const dataFileName = "pages.db"

// Manager reads and writes fixed-size pages to a single backing file
// addressed by page_id * PageSize. It has no notion of dirty bits, pin
// counts, or caching — those belong to the buffer pool manager.
type Manager struct {
	fs   afero.Fs
	path string

	// Guards concurrent ReadAt/WriteAt calls against the single backing
	// file; afero/os files are safe for concurrent use at the syscall
	// level, but we still serialize to keep read-modify-write sequences
	// (e.g. a read that races a truncate-on-create) predictable across
	// afero backends (MemMapFs in particular).
	mu sync.RWMutex

	tracer trace.Tracer
}

// New opens (creating if necessary) the backing file for dir on fs.
func New(fs afero.Fs, dir string) (*Manager, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "disk: create data directory")
	}

	path := filepath.Join(dir, dataFileName)

	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "disk: create backing file")
	}

	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "disk: close backing file after create")
	}

	return &Manager{
		fs:     fs,
		path:   path,
		tracer: otel.Tracer("pagecache/disk"),
	}, nil
}

// ReadPage fills buf (which must be exactly PageSize bytes) with the
// contents of id. A page that was never written back reads as zeros,
// mirroring a freshly allocated, never-flushed file region.
func (m *Manager) ReadPage(ctx context.Context, id common.PageID, buf []byte) error {
	_, span := m.tracer.Start(ctx, "disk.ReadPage",
		trace.WithAttributes(attribute.Int64("page_id", int64(id))))
	defer span.End()

	if len(buf) != PageSize {
		return errors.Errorf("disk: read buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	f, err := m.fs.OpenFile(m.path, os.O_RDONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "disk: open for read")
	}
	defer f.Close() //nolint:errcheck

	offset := int64(id) * PageSize

	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		span.RecordError(err)
		return errors.Wrapf(err, "disk: read page %d", id)
	}

	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}

	return nil
}

// WritePage persists buf (exactly PageSize bytes) as the contents of id.
func (m *Manager) WritePage(ctx context.Context, id common.PageID, buf []byte) error {
	_, span := m.tracer.Start(ctx, "disk.WritePage",
		trace.WithAttributes(attribute.Int64("page_id", int64(id))))
	defer span.End()

	if len(buf) != PageSize {
		return errors.Errorf("disk: write buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.fs.OpenFile(m.path, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return errors.Wrap(err, "disk: open for write")
	}
	defer f.Close() //nolint:errcheck

	offset := int64(id) * PageSize

	if _, err := f.WriteAt(buf, offset); err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "disk: write page %d", id)
	}

	return nil
}
