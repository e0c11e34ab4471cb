package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileCache keeps one file per key plus a .ttl sidecar. An entry expires
// when its file mtime is older than the stored TTL.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a cache rooted at dir.
func NewFileCache(dir string, now func() time.Time) *FileCache {
	if now == nil {
		now = time.Now
	}
	return &FileCache{dir: dir, now: now}
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, sanitize(key)+".json")
}

// Get returns the value if the file exists and is not older than its TTL.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	p := c.path(key)
	ttl, err := c.readTTL(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat cache %s: %w", key, err)
	}
	if ttl > 0 && c.now().Sub(info.ModTime()) >= ttl {
		return nil, false, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false, fmt.Errorf("read cache %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes the value atomically.
func (c *FileCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	p := c.path(key)
	if err := writeAtomic(p, value); err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	if err := writeAtomic(p+".ttl", []byte(ttl.String())); err != nil {
		return fmt.Errorf("write cache %s ttl: %w", key, err)
	}
	return nil
}

func (c *FileCache) readTTL(p string) (time.Duration, error) {
	raw, err := os.ReadFile(p + ".ttl")
	if err != nil {
		return 0, err
	}
	ttl, err := time.ParseDuration(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse cache ttl: %w", err)
	}
	return ttl, nil
}

// writeAtomic writes to a temp file, syncs it, then renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
