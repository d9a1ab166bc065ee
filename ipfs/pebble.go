package ipfs

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// PebbleBlockstore persists blocks in a pebble database keyed by multihash,
// so the same content stored under different CID versions shares one entry.
type PebbleBlockstore struct {
	db *pebble.DB
}

// OpenPebbleBlockstore opens or creates the database in dir.
func OpenPebbleBlockstore(dir string) (*PebbleBlockstore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open block database %s", dir)
	}
	log.Debugf("Opened block database at %s", dir)
	return &PebbleBlockstore{db: db}, nil
}

func (s *PebbleBlockstore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, closer, err := s.db.Get(c.Hash())
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, format.ErrNotFound{Cid: c}
	} else if err != nil {
		return nil, err
	}
	data := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(data, c)
}

func (s *PebbleBlockstore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, closer, err := s.db.Get(c.Hash())
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (s *PebbleBlockstore) Put(ctx context.Context, b blocks.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Set(b.Cid().Hash(), b.RawData(), pebble.Sync)
}

func (s *PebbleBlockstore) Close() error {
	return s.db.Close()
}
