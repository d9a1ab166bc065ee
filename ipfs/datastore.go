package ipfs

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
)

// PebbleDatastore is a go-datastore backed by a pebble database.
type PebbleDatastore struct {
	db *pebble.DB
}

var _ datastore.Datastore = (*PebbleDatastore)(nil)

func OpenPebbleDatastore(dir string) (*PebbleDatastore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open datastore %s", dir)
	}
	return &PebbleDatastore{db: db}, nil
}

func (d *PebbleDatastore) Get(ctx context.Context, key datastore.Key) ([]byte, error) {
	v, closer, err := d.db.Get(key.Bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, datastore.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	return out, closer.Close()
}

func (d *PebbleDatastore) Has(ctx context.Context, key datastore.Key) (bool, error) {
	_, err := d.Get(ctx, key)
	if errors.Is(err, datastore.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (d *PebbleDatastore) GetSize(ctx context.Context, key datastore.Key) (int, error) {
	v, err := d.Get(ctx, key)
	if err != nil {
		return -1, err
	}
	return len(v), nil
}

func (d *PebbleDatastore) Put(ctx context.Context, key datastore.Key, value []byte) error {
	return d.db.Set(key.Bytes(), value, pebble.Sync)
}

func (d *PebbleDatastore) Delete(ctx context.Context, key datastore.Key) error {
	return d.db.Delete(key.Bytes(), pebble.Sync)
}

// Query reads every key under the query prefix and applies the rest of the
// query in memory.
func (d *PebbleDatastore) Query(ctx context.Context, q query.Query) (query.Results, error) {
	prefix := []byte(datastore.NewKey(q.Prefix).String())
	it, err := d.db.NewIter(&pebble.IterOptions{LowerBound: prefix})
	if err != nil {
		return nil, err
	}
	var entries []query.Entry
	for it.First(); it.Valid() && bytes.HasPrefix(it.Key(), prefix); it.Next() {
		e := query.Entry{Key: string(it.Key()), Size: len(it.Value())}
		if !q.KeysOnly {
			e.Value = append([]byte(nil), it.Value()...)
		}
		entries = append(entries, e)
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return query.NaiveQueryApply(q, query.ResultsWithEntries(q, entries)), nil
}

func (d *PebbleDatastore) Sync(ctx context.Context, prefix datastore.Key) error {
	return d.db.Flush()
}

func (d *PebbleDatastore) Close() error {
	return d.db.Close()
}
