package repo

import (
	"io"

	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/OpenBazaar/openbazaar-index/schema"
	"github.com/cockroachdb/errors"
	datastore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/prometheus/client_golang/prometheus"
)

// Stores are the storage backends of an opened data directory.
type Stores struct {
	Blockstore ipfs.Blockstore
	Names      datastore.Datastore
	closers    []io.Closer
}

// Close releases the underlying databases.
func (s *Stores) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = errors.CombineErrors(err, s.closers[i].Close())
	}
	s.closers = nil
	return err
}

// OpenStores opens the block store and the names datastore described by cfg.
// Block store metrics are registered with reg when it is not nil.
func OpenStores(repoRoot string, cfg *schema.Config, reg prometheus.Registerer) (*Stores, error) {
	nodeSchema, err := schema.NewCustomSchemaManager(schema.SchemaContext{DataPath: repoRoot})
	if err != nil {
		return nil, err
	}
	s := &Stores{}
	var bs ipfs.Blockstore
	switch cfg.Blockstore.Type {
	case schema.BlockstoreTypeMemory:
		bs = ipfs.NewMemoryBlockstore()
		s.Names = dssync.MutexWrap(datastore.NewMapDatastore())
	case schema.BlockstoreTypePebble:
		pbs, err := ipfs.OpenPebbleBlockstore(nodeSchema.BlocksPath())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pbs)
		bs = pbs
		names, err := ipfs.OpenPebbleDatastore(nodeSchema.NamesPath())
		if err != nil {
			return nil, errors.CombineErrors(err, s.Close())
		}
		s.closers = append(s.closers, names)
		s.Names = names
	default:
		return nil, errors.Wrapf(schema.ErrorUnknownBlockstore, "%q", cfg.Blockstore.Type)
	}

	if reg != nil {
		metered, err := ipfs.NewMeteredBlockstore(bs, reg)
		if err != nil {
			return nil, errors.CombineErrors(err, s.Close())
		}
		bs = metered
	}
	if cfg.Blockstore.VerifyOnRead {
		bs = ipfs.NewVerifyingBlockstore(bs)
	}
	if cfg.Blockstore.CacheSize > 0 {
		cached, err := ipfs.NewCachingBlockstore(bs, cfg.Blockstore.CacheSize)
		if err != nil {
			return nil, errors.CombineErrors(err, s.Close())
		}
		bs = cached
	}
	s.Blockstore = bs
	return s, nil
}
