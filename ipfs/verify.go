package ipfs

import (
	"context"

	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
)

// VerifyingBlockstore rehashes every block it reads and rejects blocks whose
// content does not match their CID.
type VerifyingBlockstore struct {
	Blockstore
}

func NewVerifyingBlockstore(bs Blockstore) *VerifyingBlockstore {
	return &VerifyingBlockstore{Blockstore: bs}
}

func (s *VerifyingBlockstore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	b, err := s.Blockstore.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	actual, err := c.Prefix().Sum(b.RawData())
	if err != nil {
		return nil, Corrupt(err, c)
	}
	if !actual.Equals(c) {
		return nil, Corrupt(errors.Newf("content hashes to %s", actual), c)
	}
	return b, nil
}
