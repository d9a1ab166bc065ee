package prolly

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	ctx := context.Background()
	tree, root, _ := newTree[int, string](t, testConfig(4))
	var kvs []KV[int, string]
	for i := 0; i < 1000; i += 10 {
		kvs = append(kvs, KV[int, string]{Key: i, Value: "v"})
	}
	root, err := tree.BatchInsert(ctx, root, kvs)
	require.NoError(t, err)

	keys := func(it *Iterator[int, string]) []int {
		var out []int
		for it.Next() {
			out = append(out, it.Key())
		}
		require.NoError(t, it.Err())
		return out
	}

	require.Equal(t, []int{250, 260, 270}, keys(tree.Range(ctx, root, 245, 280)))
	require.Equal(t, []int{250, 260, 270}, keys(tree.Range(ctx, root, 250, 271)))
	require.Empty(t, keys(tree.Range(ctx, root, 251, 259)))
	require.Empty(t, keys(tree.Range(ctx, root, 2000, 3000)))
	require.Equal(t, []int{0, 10}, keys(tree.Range(ctx, root, -5, 11)))
	require.Equal(t, []int{970, 980, 990}, keys(tree.From(ctx, root, 961)))
	require.Len(t, keys(tree.Stream(ctx, root)), 100)
}

func TestStreamEmptyTree(t *testing.T) {
	ctx := context.Background()
	tree, root, _ := newTree[int, string](t, testConfig(4))
	it := tree.Stream(ctx, root)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
	require.False(t, it.Next())
}

func TestStreamIsRestartable(t *testing.T) {
	ctx := context.Background()
	tree, root, _ := newTree[int, string](t, testConfig(4))
	root, err := tree.BatchInsert(ctx, root, pairs([]int{1, 2, 3}, []string{"a", "b", "c"}))
	require.NoError(t, err)

	first, err := tree.Stream(ctx, root).Collect()
	require.NoError(t, err)
	second, err := tree.Stream(ctx, root).Collect()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tree, root, _ := newTree[int, string](t, testConfig(4))
	root, err := tree.BatchInsert(ctx, root, pairs([]int{1, 2, 3}, []string{"a", "b", "c"}))
	require.NoError(t, err)

	it := tree.Stream(ctx, root)
	require.True(t, it.Next())
	cancel()
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), context.Canceled)
}
