package mediacache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"meetingmedia/internal/archive"
)

// Stats summarises the publication cache.
type Stats struct {
	Files     int
	Bytes     int64
	Archives  int
	FreeBytes uint64
}

// Stats walks the cache and reports its size and the free space on its volume.
func (c *Cache) Stats() (Stats, error) {
	var stats Stats
	for _, dir := range []string{c.PublicationsDir(), c.CongregationDir()} {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || d.Name() == archive.ManifestName {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			stats.Files++
			stats.Bytes += info.Size()
			if filepath.Ext(d.Name()) == ArchiveExt {
				stats.Archives++
			}
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("walk %s: %w", dir, err)
		}
	}

	var fsStat unix.Statfs_t
	target := c.root
	if _, err := os.Stat(target); err != nil {
		target = filepath.Dir(target)
	}
	if err := unix.Statfs(target, &fsStat); err == nil {
		stats.FreeBytes = fsStat.Bavail * uint64(fsStat.Bsize)
	}
	return stats, nil
}

// Clear removes every cached file under the exclusive lock. before, when
// non-nil, runs once the lock is held and ahead of any removal.
func (c *Cache) Clear(ctx context.Context, before func()) error {
	unlock, err := c.LockExclusive(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if before != nil {
		before()
	}
	for _, dir := range []string{c.PublicationsDir(), c.CongregationDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	c.logger.Info("cache cleared")
	return nil
}
