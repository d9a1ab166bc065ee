package ipfs

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	datastore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	logging "github.com/op/go-logging"
	cbg "github.com/whyrusleeping/cbor-gen"
)

var log = logging.MustGetLogger("ipfs")

// Blockstore is the content addressed storage every index is built on. Any
// go-ipfs-blockstore satisfies it.
type Blockstore interface {
	Get(ctx context.Context, c cid.Cid) (blocks.Block, error)
	Put(ctx context.Context, b blocks.Block) error
}

// NewMemoryBlockstore returns a thread safe block store held in memory.
func NewMemoryBlockstore() blockstore.Blockstore {
	return NewDatastoreBlockstore(dssync.MutexWrap(datastore.NewMapDatastore()))
}

// NewDatastoreBlockstore stores blocks in an arbitrary batching datastore.
func NewDatastoreBlockstore(ds datastore.Batching) blockstore.Blockstore {
	return blockstore.NewBlockstore(ds)
}

type hasser interface {
	Has(ctx context.Context, c cid.Cid) (bool, error)
}

// BlockstoreHas reports whether the block for c is held by bs.
func BlockstoreHas(ctx context.Context, bs Blockstore, c cid.Cid) (bool, error) {
	if h, ok := bs.(hasser); ok {
		has, err := h.Has(ctx, c)
		if err != nil {
			return false, classify(err, c)
		}
		return has, nil
	}
	_, err := bs.Get(ctx, c)
	if err == nil {
		return true, nil
	}
	if err = classify(err, c); errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// GetRaw returns the bytes stored under c.
func GetRaw(ctx context.Context, bs Blockstore, c cid.Cid) ([]byte, error) {
	b, err := bs.Get(ctx, c)
	if err != nil {
		return nil, classify(err, c)
	}
	return b.RawData(), nil
}

// PutRaw hashes data with the given prefix and stores it.
func PutRaw(ctx context.Context, bs Blockstore, prefix cid.Prefix, data []byte) (cid.Cid, error) {
	c, err := prefix.Sum(data)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "hash block")
	}
	b, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "create block")
	}
	if err := Put(ctx, bs, b); err != nil {
		return cid.Undef, err
	}
	return c, nil
}

// Put stores a block, classifying failures as transport errors.
func Put(ctx context.Context, bs Blockstore, b blocks.Block) error {
	if err := bs.Put(ctx, b); err != nil {
		return errors.Mark(errors.Wrapf(err, "put block %s", b.Cid()), ErrTransport)
	}
	return nil
}

// NewBlock serializes n and addresses it with prefix without storing it.
func NewBlock(prefix cid.Prefix, n cbg.CBORMarshaler) (blocks.Block, error) {
	buf := new(bytes.Buffer)
	if err := n.MarshalCBOR(buf); err != nil {
		return nil, errors.Wrap(err, "encode node")
	}
	c, err := prefix.Sum(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "hash node")
	}
	return blocks.NewBlockWithCid(buf.Bytes(), c)
}

// PutNode serializes and stores n, returning its CID.
func PutNode(ctx context.Context, bs Blockstore, prefix cid.Prefix, n cbg.CBORMarshaler) (cid.Cid, error) {
	b, err := NewBlock(prefix, n)
	if err != nil {
		return cid.Undef, err
	}
	if err := Put(ctx, bs, b); err != nil {
		return cid.Undef, err
	}
	return b.Cid(), nil
}

// GetNode loads the block c and decodes it into out. Trailing bytes after
// the node are rejected.
func GetNode(ctx context.Context, bs Blockstore, c cid.Cid, out cbg.CBORUnmarshaler) error {
	raw, err := GetRaw(ctx, bs, c)
	if err != nil {
		return err
	}
	return DecodeNode(raw, c, out)
}

// DecodeNode decodes raw, the content of block c, into out.
func DecodeNode(raw []byte, c cid.Cid, out cbg.CBORUnmarshaler) error {
	r := bytes.NewReader(raw)
	if err := out.UnmarshalCBOR(r); err != nil {
		return Corrupt(err, c)
	}
	if r.Len() != 0 {
		return Corrupt(errors.Newf("%d trailing bytes", r.Len()), c)
	}
	return nil
}
