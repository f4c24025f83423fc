// Package logging sets up the zap logger the rest of the repository uses,
// following the same dev/prod split the teacher's src/app/server.go uses.
package logging

import (
	"go.uber.org/zap"

	"github.com/riftdb/pagecache/src/cfg"
)

// New returns a development (console, debug-level) logger for cfg.EnvDev
// and a production (JSON) logger otherwise.
func New(env cfg.Environment) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)

	if env == cfg.EnvProd {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return l.Sugar(), nil
}
