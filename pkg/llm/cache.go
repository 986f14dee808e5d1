// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package llm

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Cache stores model replies by key.
type Cache interface {
	// Get returns the content stored under key, if present and not expired.
	Get(key string) (content string, found bool)

	// Set stores content under key.
	Set(key, content string) error
}

// Key returns the cache key of a call: the md5 hex digest of "model:system:prompt".
func Key(model, system, prompt string) string {
	sum := md5.Sum([]byte(model + ":" + system + ":" + prompt))
	return hex.EncodeToString(sum[:])
}

const (
	// DefaultCacheDir is where FileCache keeps its entries by default.
	DefaultCacheDir = ".cache"

	// DefaultCacheTTL is how long an entry is served.
	DefaultCacheTTL = 24 * time.Hour
)

// FileCache is a Cache keeping one JSON file per entry in Dir.
type FileCache struct {
	Dir string

	// TTL after which entries are ignored. If 0, entries never expire.
	TTL time.Duration

	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
}

var _ Cache = (*FileCache)(nil)

// NewFileCache returns a FileCache in dir, creating the directory if needed.
func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %q", dir)
	}
	return &FileCache{Dir: dir, TTL: ttl}, nil
}

type cacheEntry struct {
	Content string `json:"content"`

	// Timestamp in seconds since the epoch.
	Timestamp float64 `json:"timestamp"`
}

func (c *FileCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get implements Cache. Unreadable entries are treated as missing.
func (c *FileCache) Get(key string) (string, bool) {
	contents, err := os.ReadFile(c.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			klog.Warningf("failed to read cache entry %s: %v", key, err)
		}
		return "", false
	}
	var entry cacheEntry
	if err := json.Unmarshal(contents, &entry); err != nil {
		klog.Warningf("invalid cache entry %s: %v", key, err)
		return "", false
	}
	if c.TTL > 0 {
		stored := time.Unix(0, int64(entry.Timestamp*float64(time.Second)))
		if c.now().Sub(stored) >= c.TTL {
			klog.V(2).Infof("cache entry %s expired", key)
			return "", false
		}
	}
	if entry.Content == "" {
		return "", false
	}
	klog.V(2).Infof("cache hit %s", key)
	return entry.Content, true
}

// Set implements Cache.
func (c *FileCache) Set(key, content string) error {
	entry := cacheEntry{
		Content:   content,
		Timestamp: float64(c.now().UnixNano()) / float64(time.Second),
	}
	contents, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode cache entry %s", key)
	}
	if err := os.WriteFile(c.path(key), contents, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write cache entry %s", key)
	}
	klog.V(2).Infof("cached %s", key)
	return nil
}

// Prune removes the entries whose files were last modified more than maxAge ago.
// It returns the number of entries removed.
func (c *FileCache) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "failed to list cache directory %q", c.Dir)
	}
	now := c.now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		path := filepath.Join(c.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return removed, errors.Wrapf(err, "failed to remove old cache entry %q", path)
		}
		klog.V(2).Infof("removed old cache entry %s", entry.Name())
		removed++
	}
	return removed, nil
}
