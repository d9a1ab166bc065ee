// Package chunking decides where ordered index nodes end. Decisions depend
// only on entry content, so equal key sets always split at the same places.
package chunking

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/cockroachdb/errors"
)

// Strategy is the content defined boundary rule derived from a tree config.
type Strategy struct {
	cfg       codec.Config
	threshold int
}

func NewStrategy(cfg codec.Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return Strategy{}, err
	}
	return Strategy{cfg: cfg, threshold: Threshold(cfg.ChunkingFactor)}, nil
}

// Threshold is the number of trailing zero bits a window needs to close a
// node, so that on average one entry in factor closes one.
func Threshold(factor uint64) int {
	return bits.LeadingZeros32(uint32(math.MaxUint32 / factor))
}

// Boundary reports whether a node boundary follows the entry whose
// serialized form is data.
func (s Strategy) Boundary(data []byte) (bool, error) {
	digest, err := s.cfg.Digest(data)
	if err != nil {
		return false, err
	}
	if len(digest) < 4 {
		return false, errors.Newf("digest of %d bytes is too short to chunk on", len(digest))
	}
	window := binary.BigEndian.Uint32(digest[len(digest)-4:])
	return bits.TrailingZeros32(window) >= s.threshold, nil
}

func (s Strategy) MinNodeSize() uint64 { return s.cfg.MinNodeSize }

func (s Strategy) MaxNodeSize() uint64 { return s.cfg.MaxNodeSize }
