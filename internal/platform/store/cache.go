package store

import (
	"encoding/binary"

	"github.com/coocood/freecache"
)

type Cache interface {
	Get(key string) (Record, bool)
	Set(key string, record Record)
	Del(key string)
}

type FreeCache struct {
	cache *freecache.Cache
}

// NewFreeCache returns a read cache of sizeMB megabytes, or a no-op cache
// when sizeMB is not positive.
func NewFreeCache(sizeMB int) Cache {
	if sizeMB <= 0 {
		return noopCache{}
	}
	return &FreeCache{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (c *FreeCache) Get(key string) (Record, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil || len(val) < 8 {
		return Record{}, false
	}
	return Record{
		Version: int64(binary.BigEndian.Uint64(val[:8])),
		Payload: val[8:],
	}, true
}

func (c *FreeCache) Set(key string, record Record) {
	buf := make([]byte, 8+len(record.Payload))
	binary.BigEndian.PutUint64(buf[:8], uint64(record.Version))
	copy(buf[8:], record.Payload)
	if err := c.cache.Set([]byte(key), buf, 0); err != nil {
		// An entry over freecache's per-entry limit is refused and the
		// previous entry would stay readable.
		c.cache.Del([]byte(key))
	}
}

func (c *FreeCache) Del(key string) {
	c.cache.Del([]byte(key))
}

type noopCache struct{}

func (noopCache) Get(string) (Record, bool) { return Record{}, false }
func (noopCache) Set(string, Record)        {}
func (noopCache) Del(string)                {}
