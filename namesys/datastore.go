package namesys

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
)

const namesPrefix = "/names"

var _ Publisher = (*DatastoreResolver)(nil)

// DatastoreResolver publishes and resolves names held in a local datastore.
type DatastoreResolver struct {
	ds datastore.Datastore
}

func NewDatastoreResolver(ds datastore.Datastore) *DatastoreResolver {
	return &DatastoreResolver{ds: ds}
}

func (r *DatastoreResolver) Domains() []string {
	return []string{"local"}
}

func nameKey(name string) datastore.Key {
	return datastore.NewKey(namesPrefix).ChildString(strings.TrimSuffix(name, ".local"))
}

// Publish points name at c.
func (r *DatastoreResolver) Publish(ctx context.Context, name string, c cid.Cid) error {
	if name == "" || strings.Contains(name, "/") {
		return errors.Newf("invalid name %q", name)
	}
	if err := r.ds.Put(ctx, nameKey(name), c.Bytes()); err != nil {
		return errors.Wrapf(err, "publish %s", name)
	}
	log.Infof("Published %s as %s", c, name)
	return nil
}

func (r *DatastoreResolver) Resolve(ctx context.Context, name string) (cid.Cid, error) {
	raw, err := r.ds.Get(ctx, nameKey(name))
	if errors.Is(err, datastore.ErrNotFound) {
		return cid.Undef, errors.Wrapf(ErrResolveFailed, "name %q is not published", name)
	} else if err != nil {
		return cid.Undef, errors.Wrapf(err, "resolve %s", name)
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return cid.Undef, errors.Wrapf(err, "resolve %s", name)
	}
	return c, nil
}

// Unpublish removes name. Removing an unknown name is not an error.
func (r *DatastoreResolver) Unpublish(ctx context.Context, name string) error {
	return r.ds.Delete(ctx, nameKey(name))
}

// Names lists every published name in order.
func (r *DatastoreResolver) Names(ctx context.Context) ([]string, error) {
	results, err := r.ds.Query(ctx, query.Query{
		Prefix:   namesPrefix,
		KeysOnly: true,
		Orders:   []query.Order{query.OrderByKey{}},
	})
	if err != nil {
		return nil, err
	}
	entries, err := results.Rest()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, datastore.NewKey(e.Key).BaseNamespace())
	}
	return names, nil
}
