// Package filecache stores rendered artifacts (HTML fragments, PDFs) on disk,
// keyed by record kind, id and version. Access to one record's files is
// serialised with a file lock so concurrent processes never read a partially
// written file.
package filecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/gofrs/flock"
)

const (
	lockSuffix = ".lock"
	tempSuffix = ".tmp"
	retryDelay = 10 * time.Millisecond

	// staleTemp is how old a temp file must be before it counts as abandoned.
	staleTemp = 10 * time.Minute
)

var keyRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Cache is a directory of cached artifacts.
type Cache struct {
	dir string
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Key identifies one cached artifact.
type Key struct {
	Kind    string // e.g. "article-html", "article-pdf"
	ID      string
	Version int
	Ext     string // without dot
}

func (k Key) validate() error {
	if !keyRegex.MatchString(k.Kind) || !keyRegex.MatchString(k.ID) || !keyRegex.MatchString(k.Ext) {
		return fmt.Errorf("cache key %+v: %w", k, apperr.ErrIllegalArgument)
	}
	return nil
}

// Path returns <dir>/<kind>/<id>_v<version>.<ext>.
func (c *Cache) Path(k Key) string {
	return filepath.Join(c.dir, k.Kind, fmt.Sprintf("%s_v%d.%s", k.ID, k.Version, k.Ext))
}

func (c *Cache) lock(kind, id string) (*flock.Flock, error) {
	dir := filepath.Join(c.dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return flock.New(filepath.Join(dir, id+lockSuffix)), nil
}

// Get returns the cached bytes and whether they were found.
func (c *Cache) Get(ctx context.Context, k Key) ([]byte, bool, error) {
	if err := k.validate(); err != nil {
		return nil, false, err
	}

	fl, err := c.lock(k.Kind, k.ID)
	if err != nil {
		return nil, false, err
	}
	if _, err := fl.TryRLockContext(ctx, retryDelay); err != nil {
		return nil, false, fmt.Errorf("cache read lock: %w", err)
	}
	defer fl.Unlock()

	data, err := os.ReadFile(c.Path(k))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores data under k. Older versions of the same record are removed.
func (c *Cache) Put(ctx context.Context, k Key, data []byte) error {
	if err := k.validate(); err != nil {
		return err
	}

	fl, err := c.lock(k.Kind, k.ID)
	if err != nil {
		return err
	}
	if _, err := fl.TryLockContext(ctx, retryDelay); err != nil {
		return fmt.Errorf("cache write lock: %w", err)
	}
	defer fl.Unlock()

	if err := c.removeVersions(k.Kind, k.ID); err != nil {
		return err
	}

	path := c.Path(k)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+k.ID+"-*"+tempSuffix)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Invalidate removes every cached version of a record.
func (c *Cache) Invalidate(ctx context.Context, kind, id string) error {
	if !keyRegex.MatchString(kind) || !keyRegex.MatchString(id) {
		return fmt.Errorf("cache key %s/%s: %w", kind, id, apperr.ErrIllegalArgument)
	}

	fl, err := c.lock(kind, id)
	if err != nil {
		return err
	}
	if _, err := fl.TryLockContext(ctx, retryDelay); err != nil {
		return fmt.Errorf("cache write lock: %w", err)
	}
	defer fl.Unlock()

	return c.removeVersions(kind, id)
}

func (c *Cache) removeVersions(kind, id string) error {
	matches, err := filepath.Glob(filepath.Join(c.dir, kind, id+"_v*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Purge removes artifacts last written before now-olderThan and reports how
// many files were removed. Lock files are kept, as are temp files younger than
// staleTemp since a Put may still rename them.
func (c *Cache) Purge(olderThan time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-olderThan)
	tempCutoff := cutoff
	if abandoned := now.Add(-staleTemp); abandoned.Before(tempCutoff) {
		tempCutoff = abandoned
	}
	removed := 0

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, lockSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		limit := cutoff
		if strings.HasSuffix(path, tempSuffix) {
			limit = tempCutoff
		}
		if info.ModTime().Before(limit) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Clear removes every cached artifact.
func (c *Cache) Clear() (int, error) {
	return c.Purge(-time.Hour)
}
