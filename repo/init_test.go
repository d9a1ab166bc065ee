package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/OpenBazaar/openbazaar-index/schema"
	cid "github.com/ipfs/go-cid"
	datastore "github.com/ipfs/go-datastore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestDoInit(t *testing.T) {
	testDirectory := filepath.Join(t.TempDir(), "repo-root")

	require.NoError(t, DoInit(testDirectory, false))
	require.ErrorIs(t, DoInit(testDirectory, false), ErrRepoExists)
	require.NoError(t, DoInit(testDirectory, true))

	cfg, err := LoadConfig(testDirectory)
	require.NoError(t, err)
	require.Equal(t, schema.DefaultConfig(), cfg)
}

func TestLoadConfigRequiresInit(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.ErrorIs(t, err, ErrRepoNotInitialized)
}

func TestLoadConfigRejectsOtherVersions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, DoInit(dir, false))
	require.NoError(t, os.WriteFile(filepath.Join(dir, schema.VersionFile), []byte("0"), 0600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
}

func TestSetConfigKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, DoInit(dir, false))
	require.NoError(t, SetConfigKey(dir, func(cfg *schema.Config) error {
		cfg.Index.ChunkingFactor = 32
		return nil
	}))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(32), cfg.Index.ChunkingFactor)
}

func TestOpenStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, DoInit(dir, false))
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	cfg.Blockstore.VerifyOnRead = true

	stores, err := OpenStores(dir, cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	c, err := ipfs.PutRaw(ctx, stores.Blockstore, prefix(t, cfg), []byte{0x01})
	require.NoError(t, err)
	require.NoError(t, stores.Names.Put(ctx, datastore.NewKey("/names/x"), c.Bytes()))
	require.NoError(t, stores.Close())

	stores, err = OpenStores(dir, cfg, nil)
	require.NoError(t, err)
	defer stores.Close()
	raw, err := ipfs.GetRaw(ctx, stores.Blockstore, c)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, raw)
	has, err := stores.Names.Has(ctx, datastore.NewKey("/names/x"))
	require.NoError(t, err)
	require.True(t, has)
}

func TestOpenMemoryStores(t *testing.T) {
	cfg := schema.DefaultConfig()
	cfg.Blockstore.Type = schema.BlockstoreTypeMemory
	stores, err := OpenStores(t.TempDir(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, stores.Blockstore)
	require.NoError(t, stores.Close())
}

func prefix(t *testing.T, cfg *schema.Config) cid.Prefix {
	tree, err := cfg.Index.TreeConfig()
	require.NoError(t, err)
	return tree.Prefix()
}
