package seqfile

import (
	"strconv"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
)

// blockCache is a write-through cache of table blocks shared by every table of
// a DB. A nil *blockCache is valid and caches nothing.
type blockCache struct {
	c *ristretto.Cache[string, []byte]
}

func newBlockCache(maxBytes int64, blockSize int) (*blockCache, error) {
	if maxBytes <= 0 {
		return nil, nil
	}
	blocks := maxBytes / int64(blockSize)
	if blocks < 1 {
		blocks = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        blocks * 10,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create block cache")
	}
	return &blockCache{c: c}, nil
}

func cacheKey(table string, off int64) string {
	return table + "@" + strconv.FormatInt(off, 10)
}

func (bc *blockCache) get(table string, off int64) ([]byte, bool) {
	if bc == nil {
		return nil, false
	}
	b, ok := bc.c.Get(cacheKey(table, off))
	if !ok {
		return nil, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true
}

// put stores a copy of b. Writes are applied before put returns so a later get
// never observes an older version of the block.
func (bc *blockCache) put(table string, off int64, b []byte) {
	if bc == nil {
		return
	}
	v := make([]byte, len(b))
	copy(v, b)
	key := cacheKey(table, off)
	if !bc.c.Set(key, v, int64(len(v))) {
		bc.c.Del(key)
	}
	bc.c.Wait()
}

func (bc *blockCache) del(table string, off int64) {
	if bc == nil {
		return
	}
	bc.c.Del(cacheKey(table, off))
	bc.c.Wait()
}

// clear drops every cached block. Called when a table file is recreated.
func (bc *blockCache) clear() {
	if bc == nil {
		return
	}
	bc.c.Clear()
}

func (bc *blockCache) close() {
	if bc == nil {
		return
	}
	bc.c.Close()
}
