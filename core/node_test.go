package core_test

import (
	"testing"

	"github.com/OpenBazaar/openbazaar-index/core"
	"github.com/OpenBazaar/openbazaar-index/repo"
	"github.com/OpenBazaar/openbazaar-index/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// newTestConfig returns an in memory config with small nodes, so that a few
// hundred entries already build a multi level tree.
func newTestConfig() *schema.Config {
	cfg := schema.DefaultConfig()
	cfg.Blockstore.Type = schema.BlockstoreTypeMemory
	cfg.Blockstore.CacheSize = 64
	cfg.Index.ChunkingFactor = 4
	return cfg
}

// newTestNode creates an *core.IndexNode over in memory stores. It is closed
// when the test ends.
func newTestNode(t testing.TB) *core.IndexNode {
	repoPath := t.TempDir()
	nodeSchema, err := schema.NewCustomSchemaManager(schema.SchemaContext{DataPath: repoPath})
	require.NoError(t, err)
	require.NoError(t, nodeSchema.BuildSchemaDirectories())

	cfg := newTestConfig()
	stores, err := repo.OpenStores(repoPath, cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	n, err := core.NewNodeWithStores(repoPath, cfg, stores)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, n.Close())
	})
	return n
}
