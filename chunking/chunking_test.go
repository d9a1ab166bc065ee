package chunking

import (
	"fmt"
	"testing"

	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/stretchr/testify/require"
)

func strategy(t *testing.T, mutate func(*codec.Config)) Strategy {
	cfg := codec.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewStrategy(cfg)
	require.NoError(t, err)
	return s
}

func TestThreshold(t *testing.T) {
	require.Equal(t, 1, Threshold(2))
	require.Equal(t, 2, Threshold(4))
	require.Equal(t, 4, Threshold(16))
	require.Equal(t, 10, Threshold(1024))
}

func TestBoundaryIsDeterministic(t *testing.T) {
	s := strategy(t, nil)
	for i := 0; i < 100; i++ {
		data := []byte(fmt.Sprint(i))
		a, err := s.Boundary(data)
		require.NoError(t, err)
		b, err := s.Boundary(data)
		require.NoError(t, err)
		require.Equal(t, a, b)
	}
}

func TestBoundaryRate(t *testing.T) {
	s := strategy(t, nil)
	hits := 0
	const n = 20000
	for i := 0; i < n; i++ {
		ok, err := s.Boundary([]byte(fmt.Sprintf("entry-%d", i)))
		require.NoError(t, err)
		if ok {
			hits++
		}
	}
	// One in sixteen on average.
	require.InDelta(t, n/16, hits, n/16/4)
}

func TestChunkerClosesOnBoundaries(t *testing.T) {
	s := strategy(t, func(c *codec.Config) { c.ChunkingFactor = 4 })
	c := NewChunker[int](s)
	var nodes [][]int
	for i := 0; i < 1000; i++ {
		closed, err := c.Push(i, []byte(fmt.Sprint(i)))
		require.NoError(t, err)
		nodes = append(nodes, closed...)
		ok, err := s.Boundary([]byte(fmt.Sprint(i)))
		require.NoError(t, err)
		require.Equal(t, ok, c.Empty())
	}
	if rest := c.Flush(); rest != nil {
		nodes = append(nodes, rest)
	}
	require.True(t, c.Empty())
	require.Nil(t, c.Flush())

	next := 0
	for _, n := range nodes {
		require.NotEmpty(t, n)
		for _, v := range n {
			require.Equal(t, next, v)
			next++
		}
	}
	require.Equal(t, 1000, next)
	require.Greater(t, len(nodes), 100)
}

func TestChunkerEnforcesMaxSize(t *testing.T) {
	s := strategy(t, func(c *codec.Config) {
		c.ChunkingFactor = 1 << 30
		c.MaxNodeSize = 10
	})
	c := NewChunker[int](s)
	var nodes [][]int
	for i := 0; i < 12; i++ {
		closed, err := c.Push(i, []byte("abcd"))
		require.NoError(t, err)
		nodes = append(nodes, closed...)
	}
	// Two four byte entries fit in ten bytes, a third does not.
	require.Len(t, nodes, 5)
	for _, n := range nodes {
		require.Len(t, n, 2)
	}
	require.Equal(t, []int{10, 11}, c.Flush())

	closed, err := c.Push(99, make([]byte, 25))
	require.NoError(t, err)
	require.Equal(t, [][]int{{99}}, closed)
}

func TestChunkerHonorsMinSize(t *testing.T) {
	s := strategy(t, func(c *codec.Config) {
		c.ChunkingFactor = 2
		c.MinNodeSize = 1000
	})
	c := NewChunker[int](s)
	for i := 0; i < 100; i++ {
		closed, err := c.Push(i, []byte(fmt.Sprint(i)))
		require.NoError(t, err)
		require.Empty(t, closed)
	}
	require.Len(t, c.Flush(), 100)
}
