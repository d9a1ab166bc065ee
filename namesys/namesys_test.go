package namesys

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	datastore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
)

func handle(s string) cid.Cid { return blocks.NewBlock([]byte(s)).Cid() }

func newNameSystem(t *testing.T, txt map[string][]string) (*NameSystem, *DatastoreResolver) {
	local := NewDatastoreResolver(dssync.MutexWrap(datastore.NewMapDatastore()))
	dns := &DNSResolver{lookupTXT: func(name string) ([]string, error) {
		records, ok := txt[name]
		if !ok {
			return nil, errors.New("no such host")
		}
		return records, nil
	}}
	ns, err := NewNameSystem([]Resolver{local, dns})
	require.NoError(t, err)
	return ns, local
}

func TestPublishResolve(t *testing.T) {
	ctx := context.Background()
	ns, local := newNameSystem(t, nil)

	h := handle("posts")
	require.NoError(t, local.Publish(ctx, "posts", h))
	got, err := ns.Resolve(ctx, "posts")
	require.NoError(t, err)
	require.True(t, h.Equals(got))

	got, err = ns.Resolve(ctx, "posts.local")
	require.NoError(t, err)
	require.True(t, h.Equals(got))

	moved := handle("posts v2")
	require.NoError(t, local.Publish(ctx, "posts", moved))
	got, err = ns.Resolve(ctx, "posts")
	require.NoError(t, err)
	require.True(t, moved.Equals(got))
}

func TestResolveUnknownName(t *testing.T) {
	ctx := context.Background()
	ns, local := newNameSystem(t, nil)
	_, err := ns.Resolve(ctx, "missing")
	require.ErrorIs(t, err, ErrResolveFailed)

	require.NoError(t, local.Publish(ctx, "gone", handle("gone")))
	require.NoError(t, local.Unpublish(ctx, "gone"))
	_, err = ns.Resolve(ctx, "gone")
	require.ErrorIs(t, err, ErrResolveFailed)
}

func TestResolveCid(t *testing.T) {
	ns, _ := newNameSystem(t, nil)
	h := handle("direct")
	got, err := ns.Resolve(context.Background(), h.String())
	require.NoError(t, err)
	require.True(t, h.Equals(got))
}

func TestNames(t *testing.T) {
	ctx := context.Background()
	_, local := newNameSystem(t, nil)
	for _, name := range []string{"ratings", "listings", "posts"} {
		require.NoError(t, local.Publish(ctx, name, handle(name)))
	}
	names, err := local.Names(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"listings", "posts", "ratings"}, names)

	require.Error(t, local.Publish(ctx, "a/b", handle("x")))
}

func TestDNSResolver(t *testing.T) {
	ctx := context.Background()
	h := handle("store")
	ns, _ := newNameSystem(t, map[string][]string{
		"shop.example.com": {"v=spf1 -all", "index=" + h.String()},
		"empty.example.com": {"unrelated"},
	})

	got, err := ns.Resolve(ctx, "shop.example.com")
	require.NoError(t, err)
	require.True(t, h.Equals(got))

	_, err = ns.Resolve(ctx, "empty.example.com")
	require.ErrorIs(t, err, ErrResolveFailed)

	_, err = ns.Resolve(ctx, "nowhere.example.com")
	require.Error(t, err)
}

func TestNoResolver(t *testing.T) {
	ns, err := NewNameSystem(nil)
	require.NoError(t, err)
	_, err = ns.Resolve(context.Background(), "anything")
	require.ErrorIs(t, err, ErrNoResolver)
}
