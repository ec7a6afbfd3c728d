package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ppiankov/adjudex/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// OracleKey generates the cache key of one oracle call. Temperature is
// always zero, so provider, model and prompt fully determine the answer
func OracleKey(provider, model, system, prompt string) string {
	h := sha256.New()
	for _, part := range []string{provider, model, system, prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "adjudex:oracle:v1:" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by cfg: memory in front of redis or disk
// when either is configured. A disabled cache returns nil
func New(cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	ttl := time.Duration(cfg.TTL) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	memory := NewMemoryCache(ttl, 10*time.Minute)

	switch {
	case cfg.RedisURL != "":
		redisCache, err := NewRedisCache(cfg.RedisURL, ttl)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return NewLayeredCache(memory, redisCache), nil
	case cfg.Dir != "":
		return NewLayeredCache(memory, NewDiskCache(filepath.Clean(cfg.Dir), ttl)), nil
	default:
		return memory, nil
	}
}
