package prolly

import (
	"cmp"
	"context"
	"io"

	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Handle is the published form of a tree: the address of its config and the
// address of its current root.
type Handle struct {
	Config cid.Cid
	Root   cid.Cid
}

var lengthBufHandle = []byte{130}

// MarshalCBOR writes the handle as [config, root].
func (h *Handle) MarshalCBOR(w io.Writer) error {
	if h == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if _, err := w.Write(lengthBufHandle); err != nil {
		return err
	}
	if err := cbg.WriteCid(w, h.Config); err != nil {
		return errors.Wrap(err, "handle config")
	}
	if err := cbg.WriteCid(w, h.Root); err != nil {
		return errors.Wrap(err, "handle root")
	}
	return nil
}

func (h *Handle) UnmarshalCBOR(r io.Reader) error {
	*h = Handle{}
	cr := cbg.NewCborReader(r)
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajArray || extra != 2 {
		return errors.New("handle should be a two element array")
	}
	if h.Config, err = cbg.ReadCid(cr); err != nil {
		return errors.Wrap(err, "handle config")
	}
	if h.Root, err = cbg.ReadCid(cr); err != nil {
		return errors.Wrap(err, "handle root")
	}
	return nil
}

// PutConfig stores cfg, addressed with its own prefix.
func PutConfig(ctx context.Context, bs ipfs.Blockstore, cfg codec.Config) (cid.Cid, error) {
	if err := cfg.Validate(); err != nil {
		return cid.Undef, err
	}
	return ipfs.PutNode(ctx, bs, cfg.Prefix(), &cfg)
}

// LoadConfig reads and validates the config stored at c.
func LoadConfig(ctx context.Context, bs ipfs.Blockstore, c cid.Cid) (codec.Config, error) {
	var cfg codec.Config
	if err := ipfs.GetNode(ctx, bs, c, &cfg); err != nil {
		return codec.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return codec.Config{}, ipfs.Corrupt(err, c)
	}
	return cfg, nil
}

// SaveHandle stores h with the given prefix.
func SaveHandle(ctx context.Context, bs ipfs.Blockstore, prefix cid.Prefix, h Handle) (cid.Cid, error) {
	return ipfs.PutNode(ctx, bs, prefix, &h)
}

func LoadHandle(ctx context.Context, bs ipfs.Blockstore, c cid.Cid) (Handle, error) {
	var h Handle
	if err := ipfs.GetNode(ctx, bs, c, &h); err != nil {
		return Handle{}, err
	}
	return h, nil
}

// Create stores cfg and an empty root and returns the tree with its handle.
func Create[K cmp.Ordered, V any](ctx context.Context, bs ipfs.Blockstore, cfg codec.Config, opts ...Option) (*Tree[K, V], Handle, error) {
	t, err := New[K, V](bs, cfg, opts...)
	if err != nil {
		return nil, Handle{}, err
	}
	cfgCid, err := PutConfig(ctx, bs, cfg)
	if err != nil {
		return nil, Handle{}, err
	}
	root, err := t.Empty(ctx)
	if err != nil {
		return nil, Handle{}, err
	}
	return t, Handle{Config: cfgCid, Root: root}, nil
}

// Open loads the config of h and returns a tree ready to operate on h.Root.
func Open[K cmp.Ordered, V any](ctx context.Context, bs ipfs.Blockstore, h Handle, opts ...Option) (*Tree[K, V], error) {
	cfg, err := LoadConfig(ctx, bs, h.Config)
	if err != nil {
		return nil, err
	}
	return New[K, V](bs, cfg, opts...)
}
