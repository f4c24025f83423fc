// Package app wires the buffer pool's collaborators together: config,
// logging, the disk manager, and the Manager itself. It is the one place
// that knows all of their concrete types.
package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/riftdb/pagecache/src/bufferpool"
	"github.com/riftdb/pagecache/src/cfg"
	"github.com/riftdb/pagecache/src/pkg/logging"
	"github.com/riftdb/pagecache/src/storage/disk"
)

// App bundles the live buffer pool manager with the logger used to build
// it, so callers have one thing to close down at shutdown.
type App struct {
	Pool *bufferpool.Manager
	Log  *zap.SugaredLogger
}

// New loads configuration from configPath (falling back to the
// environment when no file is present), then constructs the disk
// manager and buffer pool manager on top of it.
func New(configPath string) (*App, error) {
	pc, err := cfg.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "app: load config")
	}

	return newFromConfig(pc, afero.NewOsFs())
}

// NewFromEnv is the pure-environment equivalent of New, for deployments
// that configure entirely via PAGECACHE_* variables.
func NewFromEnv() (*App, error) {
	ec, err := cfg.LoadEnv()
	if err != nil {
		return nil, errors.Wrap(err, "app: load env config")
	}

	return newFromConfig(ec.ToPoolConfig(), afero.NewOsFs())
}

func newFromConfig(pc cfg.PoolConfig, fs afero.Fs) (*App, error) {
	log, err := logging.New(pc.Environment)
	if err != nil {
		return nil, errors.Wrap(err, "app: init logger")
	}

	dm, err := disk.New(fs, pc.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "app: init disk manager")
	}

	pool, err := bufferpool.New(pc.PoolSize, pc.K, dm, bufferpool.WithLogger(log))
	if err != nil {
		return nil, errors.Wrap(err, "app: init buffer pool")
	}

	log.Infow("buffer pool ready", "pool_size", pc.PoolSize, "k", pc.K, "data_dir", pc.DataDir)

	return &App{Pool: pool, Log: log}, nil
}

// Close flushes every dirty page back to disk. It does not close the
// underlying filesystem handles; afero.Fs has no such lifecycle.
func (a *App) Close() error {
	return a.Pool.FlushAllPages(context.Background())
}
