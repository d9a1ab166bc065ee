package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/multiformats/go-multihash"
)

// IndexConfig is the tree configuration new indexes are created with.
type IndexConfig struct {
	MinNodeSize    uint64
	MaxNodeSize    uint64
	CidVersion     uint64
	Codec          uint64
	DigestFunction string
	ChunkingFactor uint64
}

type BlockstoreConfig struct {
	Type         string
	CacheSize    int
	VerifyOnRead bool
}

type ExecutorConfig struct {
	Concurrency int
}

// Config is the JSON document stored in the data directory.
type Config struct {
	Index      IndexConfig
	Blockstore BlockstoreConfig
	Executor   ExecutorConfig
}

type malformedConfigError struct {
	path []string
}

func malformedConfigKey(pathArgs ...string) malformedConfigError {
	return malformedConfigError{path: pathArgs}
}

func (err malformedConfigError) Error() string {
	if len(err.path) != 0 {
		return fmt.Sprintf("malformed config: %s", strings.Join(err.path, "."))
	}
	return "malformed config"
}

// DefaultConfig returns the configuration written by init.
func DefaultConfig() *Config {
	d := codec.DefaultConfig()
	return &Config{
		Index: IndexConfig{
			MinNodeSize:    d.MinNodeSize,
			MaxNodeSize:    d.MaxNodeSize,
			CidVersion:     d.CidVersion,
			Codec:          d.Codec,
			DigestFunction: multihash.Codes[d.DigestFunction],
			ChunkingFactor: d.ChunkingFactor,
		},
		Blockstore: BlockstoreConfig{
			Type:      BlockstoreTypePebble,
			CacheSize: DefaultCacheSize,
		},
		Executor: ExecutorConfig{
			Concurrency: DefaultConcurrency,
		},
	}
}

// TreeConfig converts the index section into a validated tree config.
func (c IndexConfig) TreeConfig() (codec.Config, error) {
	digest, ok := multihash.Names[c.DigestFunction]
	if !ok {
		return codec.Config{}, malformedConfigKey("Index", "DigestFunction")
	}
	cfg := codec.Config{
		MinNodeSize:    c.MinNodeSize,
		MaxNodeSize:    c.MaxNodeSize,
		CidVersion:     c.CidVersion,
		Codec:          c.Codec,
		DigestFunction: digest,
		ChunkingFactor: c.ChunkingFactor,
	}
	if err := cfg.Validate(); err != nil {
		return codec.Config{}, err
	}
	return cfg, nil
}

// GetConfig parses cfgBytes, filling sections that are absent with their
// defaults.
func GetConfig(cfgBytes []byte) (*Config, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(cfgBytes, &sections); err != nil {
		return nil, malformedConfigError{}
	}
	cfg := DefaultConfig()
	for key, target := range map[string]interface{}{
		"Index":      &cfg.Index,
		"Blockstore": &cfg.Blockstore,
		"Executor":   &cfg.Executor,
	} {
		raw, ok := sections[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, malformedConfigKey(key)
		}
	}

	switch cfg.Blockstore.Type {
	case BlockstoreTypePebble, BlockstoreTypeMemory:
	default:
		return nil, malformedConfigKey("Blockstore", "Type")
	}
	if cfg.Blockstore.CacheSize < 0 {
		return nil, malformedConfigKey("Blockstore", "CacheSize")
	}
	if cfg.Executor.Concurrency < 1 {
		return nil, malformedConfigKey("Executor", "Concurrency")
	}
	if _, err := cfg.Index.TreeConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}
