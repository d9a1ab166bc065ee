package prolly

import (
	"cmp"
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

func testConfig(factor uint64) codec.Config {
	cfg := codec.DefaultConfig()
	cfg.ChunkingFactor = factor
	return cfg
}

func newTree[K cmp.Ordered, V any](t *testing.T, cfg codec.Config) (*Tree[K, V], cid.Cid, ipfs.Blockstore) {
	bs := ipfs.NewMemoryBlockstore()
	tree, err := New[K, V](bs, cfg)
	require.NoError(t, err)
	root, err := tree.Empty(context.Background())
	require.NoError(t, err)
	return tree, root, bs
}

func pairs(keys []int, values []string) []KV[int, string] {
	out := make([]KV[int, string], len(keys))
	for i := range keys {
		out[i] = KV[int, string]{Key: keys[i], Value: values[i]}
	}
	return out
}

func TestStreamReturnsInsertedPairs(t *testing.T) {
	ctx := context.Background()
	tree, root, _ := newTree[int, string](t, testConfig(4))

	root, err := tree.BatchInsert(ctx, root, pairs(
		[]int{9, 1, 5, 11, 3, 7},
		[]string{"e", "a", "c", "f", "b", "d"},
	))
	require.NoError(t, err)

	got, err := tree.Stream(ctx, root).Collect()
	require.NoError(t, err)
	require.Equal(t, pairs(
		[]int{1, 3, 5, 7, 9, 11},
		[]string{"a", "b", "c", "d", "e", "f"},
	), got)
}

func TestSplitBatchesMatchSingleBatch(t *testing.T) {
	ctx := context.Background()
	tree, empty, _ := newTree[int, string](t, testConfig(4))

	split, err := tree.BatchInsert(ctx, empty, pairs([]int{1, 3, 5}, []string{"a", "b", "c"}))
	require.NoError(t, err)
	split, err = tree.BatchInsert(ctx, split, pairs([]int{7, 9, 11}, []string{"d", "e", "f"}))
	require.NoError(t, err)

	single, err := tree.BatchInsert(ctx, empty, pairs(
		[]int{1, 3, 5, 7, 9, 11},
		[]string{"a", "b", "c", "d", "e", "f"},
	))
	require.NoError(t, err)
	require.Equal(t, single, split)
}

func TestRemoveAbsentKeyKeepsRoot(t *testing.T) {
	ctx := context.Background()
	tree, root, _ := newTree[int, string](t, testConfig(4))
	root, err := tree.BatchInsert(ctx, root, pairs([]int{1, 2, 3}, []string{"a", "b", "c"}))
	require.NoError(t, err)

	after, err := tree.Remove(ctx, root, 42)
	require.NoError(t, err)
	require.Equal(t, root, after)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	tree, root, _ := newTree[int, string](t, testConfig(4))
	var kvs []KV[int, string]
	for i := 0; i < 500; i += 2 {
		kvs = append(kvs, KV[int, string]{Key: i, Value: string(rune('a' + i%26))})
	}
	root, err := tree.BatchInsert(ctx, root, kvs)
	require.NoError(t, err)

	for _, kv := range kvs {
		v, err := tree.Get(ctx, root, kv.Key)
		require.NoError(t, err)
		require.Equal(t, kv.Value, v)
	}
	for _, missing := range []int{-1, 1, 251, 1000} {
		_, err := tree.Get(ctx, root, missing)
		require.ErrorIs(t, err, ipfs.ErrNotFound)
	}
}

func TestLargeTree(t *testing.T) {
	ctx := context.Background()
	tree, root, _ := newTree[uint32, uint32](t, testConfig(16))

	const n = 100000
	r := rand.New(rand.NewSource(1))
	seen := make(map[uint32]bool, n)
	kvs := make([]KV[uint32, uint32], 0, n)
	for len(kvs) < n {
		k := r.Uint32()
		if seen[k] {
			continue
		}
		seen[k] = true
		kvs = append(kvs, KV[uint32, uint32]{Key: k, Value: k / 2})
	}
	root, err := tree.BatchInsert(ctx, root, kvs)
	require.NoError(t, err)

	it := tree.Stream(ctx, root)
	count := 0
	var prev uint32
	for it.Next() {
		if count > 0 {
			require.Less(t, prev, it.Key())
		}
		require.Equal(t, it.Key()/2, it.Value())
		prev = it.Key()
		count++
	}
	require.NoError(t, it.Err())
	require.Equal(t, n, count)

	height, err := tree.Height(ctx, root)
	require.NoError(t, err)
	require.GreaterOrEqual(t, height, 2)
	require.LessOrEqual(t, height, 8)

	total, err := tree.Count(ctx, root)
	require.NoError(t, err)
	require.Equal(t, n, total)

	v, err := tree.Get(ctx, root, kvs[n/2].Key)
	require.NoError(t, err)
	require.Equal(t, kvs[n/2].Value, v)
}

func TestCorruptRoot(t *testing.T) {
	ctx := context.Background()
	tree, _, bs := newTree[int, string](t, testConfig(4))
	bad, err := ipfs.PutRaw(ctx, bs, tree.Config().Prefix(), []byte("not a node"))
	require.NoError(t, err)

	_, err = tree.Get(ctx, bad, 1)
	require.ErrorIs(t, err, ipfs.ErrDecode)

	it := tree.Stream(ctx, bad)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ipfs.ErrDecode)

	_, err = tree.Insert(ctx, bad, 1, "a")
	require.ErrorIs(t, err, ipfs.ErrDecode)
}

func TestCorruptInnerLeaf(t *testing.T) {
	ctx := context.Background()
	tree, empty, bs := newTree[int, string](t, testConfig(4))
	keys := make([]int, 500)
	values := make([]string, 500)
	for i := range keys {
		keys[i] = i
		values[i] = fmt.Sprintf("value-%d", i)
	}
	root, err := tree.BatchInsert(ctx, empty, pairs(keys, values))
	require.NoError(t, err)

	// Find the leaf holding the middle key.
	leaf := root
	n, err := tree.load(ctx, leaf)
	require.NoError(t, err)
	for !n.leaf {
		leaf = n.entries[n.childIndex(250, tree.compare)].link
		n, err = tree.load(ctx, leaf)
		require.NoError(t, err)
	}
	first := n.entries[0].key
	require.Greater(t, first, 0)
	require.NotEqual(t, root, leaf)

	graph, err := tree.Nodes(ctx, root)
	require.NoError(t, err)
	broken := ipfs.NewMemoryBlockstore()
	for _, c := range graph {
		b, err := bs.Get(ctx, c)
		require.NoError(t, err)
		if c.Equals(leaf) {
			b, err = blocks.NewBlockWithCid([]byte("not a node"), c)
			require.NoError(t, err)
		}
		require.NoError(t, broken.Put(ctx, b))
	}
	damaged, err := New[int, string](broken, tree.Config())
	require.NoError(t, err)

	_, err = damaged.Get(ctx, root, 250)
	require.ErrorIs(t, err, ipfs.ErrDecode)
	v, err := damaged.Get(ctx, root, 0)
	require.NoError(t, err)
	require.Equal(t, "value-0", v)

	it := damaged.Stream(ctx, root)
	var seen []int
	for it.Next() {
		seen = append(seen, it.Key())
	}
	require.ErrorIs(t, it.Err(), ipfs.ErrDecode)
	require.Equal(t, keys[:first], seen)
}

func TestMissingRoot(t *testing.T) {
	ctx := context.Background()
	tree, _, _ := newTree[int, string](t, testConfig(4))
	missing, err := tree.Config().Prefix().Sum([]byte("never stored"))
	require.NoError(t, err)

	_, err = tree.Get(ctx, missing, 1)
	require.ErrorIs(t, err, ipfs.ErrNotFound)
}

func TestKeysOutOfOrderAreCorrupt(t *testing.T) {
	ctx := context.Background()
	tree, _, bs := newTree[int, string](t, testConfig(4))
	w := &wireNode{
		Leaf:   true,
		Keys:   [][]byte{{0x02}, {0x01}},
		Values: [][]byte{{0x61, 0x62}, {0x61, 0x61}},
	}
	c, err := ipfs.PutNode(ctx, bs, tree.Config().Prefix(), w)
	require.NoError(t, err)

	_, err = tree.Get(ctx, c, 1)
	require.ErrorIs(t, err, ipfs.ErrDecode)
}
