package cmd

import (
	"encoding/json"
	"os"

	"github.com/OpenBazaar/openbazaar-index/repo"
	"github.com/OpenBazaar/openbazaar-index/schema"
	"github.com/cockroachdb/errors"
)

// SetConfig changes the configuration of a data directory. Index settings
// only apply to indexes created afterwards; existing handles keep the config
// they were created with.
type SetConfig struct {
	RepoOptions
	ChunkingFactor uint64 `long:"chunking-factor" description:"average number of entries per node"`
	MinNodeSize    uint64 `long:"min-node-size" description:"smallest node in bytes before a boundary is honored"`
	MaxNodeSize    uint64 `long:"max-node-size" description:"largest node in bytes"`
	DigestFunction string `long:"digest" description:"multihash function name, e.g. sha2-256"`
	Blockstore     string `long:"blockstore" description:"block store backend [pebble, memory]"`
	CacheSize      *int   `long:"cache-size" description:"number of blocks kept in memory, 0 disables the cache"`
	VerifyOnRead   *bool  `long:"verify" description:"rehash every block read from disk"`
	Concurrency    int    `long:"concurrency" description:"blocks loaded at once by a batch"`
	Print          bool   `long:"print" description:"print the resulting config"`
}

func (x *SetConfig) Execute(args []string) error {
	repoPath, err := x.repoPath()
	if err != nil {
		return err
	}
	x.setupLogging(repoPath)
	err = repo.SetConfigKey(repoPath, func(cfg *schema.Config) error {
		if x.ChunkingFactor != 0 {
			cfg.Index.ChunkingFactor = x.ChunkingFactor
		}
		if x.MinNodeSize != 0 {
			cfg.Index.MinNodeSize = x.MinNodeSize
		}
		if x.MaxNodeSize != 0 {
			cfg.Index.MaxNodeSize = x.MaxNodeSize
		}
		if x.DigestFunction != "" {
			cfg.Index.DigestFunction = x.DigestFunction
		}
		if x.Blockstore != "" {
			cfg.Blockstore.Type = x.Blockstore
		}
		if x.CacheSize != nil {
			cfg.Blockstore.CacheSize = *x.CacheSize
		}
		if x.VerifyOnRead != nil {
			cfg.Blockstore.VerifyOnRead = *x.VerifyOnRead
		}
		if x.Concurrency != 0 {
			cfg.Executor.Concurrency = x.Concurrency
		}
		raw, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		if _, err := schema.GetConfig(raw); err != nil {
			return errors.Wrap(err, "rejected config")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !x.Print {
		return nil
	}
	cfg, err := repo.LoadConfig(repoPath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(cfg)
}
