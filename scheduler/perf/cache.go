package perf

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/twitter/groupcache/lru"
)

const DefaultCurveCacheSize = 64

// CurveCache remembers benchmark curves by job fingerprint so repeated
// batches of the same model skip benchmarking.
type CurveCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func NewCurveCache(size int) *CurveCache {
	if size <= 0 {
		size = DefaultCurveCacheSize
	}
	return &CurveCache{cache: lru.New(size)}
}

// Fingerprint identifies a serialized job payload.
func Fingerprint(payload []byte) string {
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

func (c *CurveCache) Get(key string) (Curve, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(key); ok {
		return v.(Curve), true
	}
	return Curve{}, false
}

func (c *CurveCache) Add(key string, curve Curve) {
	if curve.Empty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, curve)
}
