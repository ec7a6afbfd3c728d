package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DiskCache keeps oracle answers on local disk so repeated runs over the
// same claims skip the network. Files are sharded by key hash
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache returns a cache rooted at dir. The directory is created on first write
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl}
}

// storedAnswer is the on-disk form. Key is kept so a hash collision reads as a miss
type storedAnswer struct {
	Key     string    `json:"key"`
	Payload []byte    `json:"payload"`
	Stored  time.Time `json:"stored"`
	Expires time.Time `json:"expires"`
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	file := c.fileFor(key)
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, false
	}

	var ans storedAnswer
	if json.Unmarshal(raw, &ans) != nil || ans.Key != key {
		return nil, false
	}
	if !time.Now().Before(ans.Expires) {
		_ = os.Remove(file)
		return nil, false
	}
	return ans.Payload, true
}

// Set writes the entry through a temp file in the shard directory, then
// renames it into place. Readers see the old entry or the new one
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := time.Now()
	raw, err := json.Marshal(storedAnswer{Key: key, Payload: value, Stored: now, Expires: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	file := c.fileFor(key)
	shard := filepath.Dir(file)
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	tmp, err := os.CreateTemp(shard, ".pending-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.fileFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear drops the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// fileFor maps a key to <dir>/<first two hex chars>/<hash>.json
func (c *DiskCache) fileFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name+".json")
}
