package mediacache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileName   = "meetingmedia.lock"
	lockRetryDelay = 100 * time.Millisecond
)

// LockShared takes the cross-process cache lock in shared mode. Sync passes
// hold it so that a concurrent Clear waits for them.
func (c *Cache) LockShared(ctx context.Context) (func(), error) {
	return c.lock(ctx, false)
}

// LockExclusive takes the cache lock exclusively, waiting for every sync
// pass to finish.
func (c *Cache) LockExclusive(ctx context.Context) (func(), error) {
	return c.lock(ctx, true)
}

func (c *Cache) lock(ctx context.Context, exclusive bool) (func(), error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	fl := flock.New(filepath.Join(c.root, lockFileName))
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire cache lock: not acquired")
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}
