// Package codec holds the tree configuration shared by both index kinds and
// the codecs that turn keys and values into canonical DAG-CBOR.
package codec

import (
	"math"

	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	DefaultMinNodeSize    = 0
	DefaultMaxNodeSize    = 256 * 1024
	DefaultCidVersion     = 1
	DefaultCodec          = cid.DagCBOR
	DefaultDigestFunction = multihash.SHA2_256
	DefaultChunkingFactor = 16

	// MaxNodeSizeLimit bounds MaxNodeSize so nodes stay transferable as a
	// single block.
	MaxNodeSizeLimit = 4 * 1024 * 1024
)

// Config is the immutable configuration a tree is created with. It is stored
// alongside the root so readers reproduce the same node layout.
type Config struct {
	MinNodeSize    uint64
	MaxNodeSize    uint64
	CidVersion     uint64
	Codec          uint64
	DigestFunction uint64
	ChunkingFactor uint64
}

func DefaultConfig() Config {
	return Config{
		MinNodeSize:    DefaultMinNodeSize,
		MaxNodeSize:    DefaultMaxNodeSize,
		CidVersion:     DefaultCidVersion,
		Codec:          DefaultCodec,
		DigestFunction: DefaultDigestFunction,
		ChunkingFactor: DefaultChunkingFactor,
	}
}

// Validate rejects configurations that cannot be used to build nodes.
func (c Config) Validate() error {
	switch {
	case c.ChunkingFactor < 2:
		return errors.Wrapf(ErrInvalidConfig, "chunking factor %d is below 2", c.ChunkingFactor)
	case c.ChunkingFactor > math.MaxUint32:
		return errors.Wrapf(ErrInvalidConfig, "chunking factor %d does not fit 32 bits", c.ChunkingFactor)
	case c.MaxNodeSize == 0:
		return errors.Wrap(ErrInvalidConfig, "max node size is zero")
	case c.MaxNodeSize > MaxNodeSizeLimit:
		return errors.Wrapf(ErrInvalidConfig, "max node size %d exceeds %d", c.MaxNodeSize, MaxNodeSizeLimit)
	case c.MinNodeSize > c.MaxNodeSize:
		return errors.Wrapf(ErrInvalidConfig, "min node size %d exceeds max node size %d", c.MinNodeSize, c.MaxNodeSize)
	case c.Codec != cid.DagCBOR:
		return errors.Wrapf(ErrInvalidConfig, "nodes cannot be encoded with codec 0x%x", c.Codec)
	case c.CidVersion != 1:
		// CIDv0 implies dag-pb, which is not a node codec.
		return errors.Wrapf(ErrInvalidConfig, "unsupported cid version %d", c.CidVersion)
	}
	if _, ok := multihash.Codes[c.DigestFunction]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "unknown digest function 0x%x", c.DigestFunction)
	}
	if _, err := multihash.Sum(nil, c.DigestFunction, -1); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "digest function 0x%x: %v", c.DigestFunction, err)
	}
	return nil
}

// Prefix returns the CID prefix nodes of this tree are addressed with.
func (c Config) Prefix() cid.Prefix {
	return cid.Prefix{
		Version:  c.CidVersion,
		Codec:    c.Codec,
		MhType:   c.DigestFunction,
		MhLength: -1,
	}
}

// Digest hashes data with the configured digest function and returns the
// bare digest, without the multihash header.
func (c Config) Digest(data []byte) ([]byte, error) {
	sum, err := multihash.Sum(data, c.DigestFunction, -1)
	if err != nil {
		return nil, errors.Wrap(err, "digest")
	}
	dec, err := multihash.Decode(sum)
	if err != nil {
		return nil, errors.Wrap(err, "digest")
	}
	return dec.Digest, nil
}

// DigestLength returns the size in bytes of the configured digest.
func (c Config) DigestLength() int {
	if l, ok := multihash.DefaultLengths[c.DigestFunction]; ok && l > 0 {
		return l
	}
	sum, err := multihash.Sum(nil, c.DigestFunction, -1)
	if err != nil {
		return 0
	}
	dec, err := multihash.Decode(sum)
	if err != nil {
		return 0
	}
	return dec.Length
}
