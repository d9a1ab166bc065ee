package ipfs

import (
	"context"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
)

// CachingBlockstore keeps recently used blocks in memory in front of a
// slower store. Blocks are immutable so the cache never needs invalidating.
type CachingBlockstore struct {
	Blockstore
	cache *lru.Cache[cid.Cid, blocks.Block]
}

func NewCachingBlockstore(bs Blockstore, size int) (*CachingBlockstore, error) {
	cache, err := lru.New[cid.Cid, blocks.Block](size)
	if err != nil {
		return nil, errors.Wrap(err, "create block cache")
	}
	return &CachingBlockstore{Blockstore: bs, cache: cache}, nil
}

func (s *CachingBlockstore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	if b, ok := s.cache.Get(c); ok {
		return b, nil
	}
	b, err := s.Blockstore.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	s.cache.Add(c, b)
	return b, nil
}

func (s *CachingBlockstore) Put(ctx context.Context, b blocks.Block) error {
	if s.cache.Contains(b.Cid()) {
		return nil
	}
	if err := s.Blockstore.Put(ctx, b); err != nil {
		return err
	}
	s.cache.Add(b.Cid(), b)
	return nil
}

// Len returns the number of cached blocks.
func (s *CachingBlockstore) Len() int { return s.cache.Len() }
