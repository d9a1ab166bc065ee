package hamt

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func newHAMT(t *testing.T, opts ...Option) (*HAMT, ipfs.Blockstore) {
	bs := ipfs.NewMemoryBlockstore()
	h, err := New(bs, codec.DefaultConfig(), opts...)
	require.NoError(t, err)
	return h, bs
}

func key(t *testing.T, i int) []byte {
	k, err := codec.DefaultConfig().Digest([]byte(fmt.Sprintf("key-%d", i)))
	require.NoError(t, err)
	return k
}

func value(s string) cid.Cid {
	return blocks.NewBlock([]byte(s)).Cid()
}

func TestInsertGetRemove(t *testing.T) {
	ctx := context.Background()
	h, _ := newHAMT(t)
	root, err := h.Empty(ctx)
	require.NoError(t, err)

	k1, k2 := key(t, 1), key(t, 2)
	v1, v2 := value("v1"), value("v2")
	root, err = h.Insert(ctx, root, k1, v1)
	require.NoError(t, err)
	root, err = h.Insert(ctx, root, k2, v2)
	require.NoError(t, err)

	got, err := h.Get(ctx, root, k1)
	require.NoError(t, err)
	require.True(t, got.Equals(v1))

	root, err = h.Remove(ctx, root, k1)
	require.NoError(t, err)
	_, err = h.Get(ctx, root, k1)
	require.ErrorIs(t, err, ErrNotFound)

	got, err = h.Get(ctx, root, k2)
	require.NoError(t, err)
	require.True(t, got.Equals(v2))
}

func TestInvalidKeyFailsBeforeIO(t *testing.T) {
	ctx := context.Background()
	h, _ := newHAMT(t)
	missing := value("never stored")

	_, err := h.Get(ctx, missing, []byte("short"))
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = h.Insert(ctx, missing, make([]byte, 33), value("x"))
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = h.Remove(ctx, missing, nil)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestOverwriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h, _ := newHAMT(t)
	root, err := h.Empty(ctx)
	require.NoError(t, err)

	root, err = h.Insert(ctx, root, key(t, 1), value("a"))
	require.NoError(t, err)
	again, err := h.Insert(ctx, root, key(t, 1), value("a"))
	require.NoError(t, err)
	require.Equal(t, root, again)

	replaced, err := h.Insert(ctx, root, key(t, 1), value("b"))
	require.NoError(t, err)
	require.NotEqual(t, root, replaced)
	got, err := h.Get(ctx, replaced, key(t, 1))
	require.NoError(t, err)
	require.True(t, got.Equals(value("b")))
}

func TestRootIsIndependentOfInsertOrder(t *testing.T) {
	ctx := context.Background()
	h, _ := newHAMT(t, UseBucketSize(1))
	empty, err := h.Empty(ctx)
	require.NoError(t, err)

	const n = 400
	build := func(order []int) cid.Cid {
		root := empty
		for _, i := range order {
			root, err = h.Insert(ctx, root, key(t, i), value(fmt.Sprint(i)))
			require.NoError(t, err)
		}
		return root
	}
	r := rand.New(rand.NewSource(7))
	first := build(r.Perm(n))
	second := build(r.Perm(n))
	require.Equal(t, first, second)

	for i := 0; i < n; i++ {
		got, err := h.Get(ctx, first, key(t, i))
		require.NoError(t, err)
		require.True(t, got.Equals(value(fmt.Sprint(i))))
	}
}

func TestRemoveRestoresCanonicalShape(t *testing.T) {
	ctx := context.Background()
	h, _ := newHAMT(t, UseBucketSize(2))
	empty, err := h.Empty(ctx)
	require.NoError(t, err)

	base := empty
	for i := 0; i < 50; i++ {
		base, err = h.Insert(ctx, base, key(t, i), value(fmt.Sprint(i)))
		require.NoError(t, err)
	}
	grown := base
	for i := 50; i < 300; i++ {
		grown, err = h.Insert(ctx, grown, key(t, i), value(fmt.Sprint(i)))
		require.NoError(t, err)
	}
	shrunk := grown
	for _, i := range rand.New(rand.NewSource(3)).Perm(250) {
		shrunk, err = h.Remove(ctx, shrunk, key(t, i+50))
		require.NoError(t, err)
	}
	require.Equal(t, base, shrunk)

	for i := 0; i < 50; i++ {
		shrunk, err = h.Remove(ctx, shrunk, key(t, i))
		require.NoError(t, err)
	}
	require.Equal(t, empty, shrunk)
}

func TestRemoveAbsentKeepsRoot(t *testing.T) {
	ctx := context.Background()
	h, _ := newHAMT(t)
	root, err := h.Empty(ctx)
	require.NoError(t, err)
	root, err = h.Insert(ctx, root, key(t, 1), value("a"))
	require.NoError(t, err)

	after, err := h.Remove(ctx, root, key(t, 2))
	require.NoError(t, err)
	require.Equal(t, root, after)
}

func TestForEachVisitsKeysInOrder(t *testing.T) {
	ctx := context.Background()
	h, bs := newHAMT(t, UseBucketSize(1))
	root, err := h.Empty(ctx)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		root, err = h.Insert(ctx, root, key(t, i), value(fmt.Sprint(i)))
		require.NoError(t, err)
	}

	var keys [][]byte
	require.NoError(t, h.ForEach(ctx, root, func(k []byte, _ cid.Cid) error {
		keys = append(keys, k)
		return nil
	}))
	require.Len(t, keys, 200)
	for i := 1; i < len(keys); i++ {
		require.Equal(t, -1, bytes.Compare(keys[i-1], keys[i]))
	}

	graph, err := ipfs.FetchGraph(ctx, bs, root, Links)
	require.NoError(t, err)
	require.Greater(t, len(graph), 1)
}

func TestMaxDepth(t *testing.T) {
	ctx := context.Background()
	h, bs := newHAMT(t, UseKeyLength(2))
	prefix := codec.DefaultConfig().Prefix()

	// A chain of links deeper than the key is long.
	leaf, err := ipfs.PutNode(ctx, bs, prefix, &Node{})
	require.NoError(t, err)
	link := func(slot int, c cid.Cid) *Node {
		n := &Node{Elements: []Element{{Link: c}}}
		n.set(slot)
		return n
	}
	mid, err := ipfs.PutNode(ctx, bs, prefix, link(1, leaf))
	require.NoError(t, err)
	root, err := ipfs.PutNode(ctx, bs, prefix, link(0, mid))
	require.NoError(t, err)

	_, err = h.Get(ctx, root, []byte{0, 1})
	require.ErrorIs(t, err, ErrMaxDepth)
}

func TestCorruptNode(t *testing.T) {
	ctx := context.Background()
	h, bs := newHAMT(t)
	c, err := ipfs.PutRaw(ctx, bs, codec.DefaultConfig().Prefix(), []byte{0x82, 0x01, 0x02})
	require.NoError(t, err)

	_, err = h.Get(ctx, c, key(t, 1))
	require.ErrorIs(t, err, ipfs.ErrDecode)
}

func TestKeyFromCid(t *testing.T) {
	ctx := context.Background()
	h, _ := newHAMT(t)
	root, err := h.Empty(ctx)
	require.NoError(t, err)

	v := value("content")
	k, err := KeyFromCid(v)
	require.NoError(t, err)
	require.Len(t, k, h.KeyLength())

	root, err = h.Insert(ctx, root, k, v)
	require.NoError(t, err)
	got, err := h.Get(ctx, root, k)
	require.NoError(t, err)
	require.True(t, got.Equals(v))
}
