// Package fsys checks result paths against the local filesystem.
package fsys

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// Checker verifies file existence with os.Stat. Stat on a healthy
// local disk is microseconds; the context deadline only matters for
// network mounts that hang.
type Checker struct {
	logger *zap.Logger
}

// New creates a filesystem checker.
func New(logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{logger: logger}
}

// Exists reports whether path still points at a file. The stat runs in
// a goroutine so a hung mount cannot outlive the context; an
// undecidable check (timeout, permission error) counts as existing,
// since deleting index entries needs positive evidence of absence.
func (c *Checker) Exists(ctx context.Context, path string) bool {
	if path == "" {
		return true
	}
	if ctx.Err() != nil {
		return true
	}

	verdict := make(chan bool, 1)
	go func() {
		_, err := os.Stat(path)
		verdict <- !os.IsNotExist(err)
	}()

	select {
	case exists := <-verdict:
		return exists
	case <-ctx.Done():
		c.logger.Debug("existence check timed out, keeping entry",
			zap.String("path", path))
		return true
	}
}
