package core

import (
	"context"
	"sync"

	"github.com/OpenBazaar/openbazaar-index/hamt"
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/OpenBazaar/openbazaar-index/prolly"
	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
)

// PointIndex is a named HAMT mapping digests to CIDs. Its handle has the
// same shape as an ordered index handle. Every point index uses
// hamt.DefaultBucketSize, so its shape only depends on its entries.
type PointIndex struct {
	node *IndexNode
	name string
	trie *hamt.HAMT

	mu        sync.RWMutex
	handle    prolly.Handle
	handleCid cid.Cid
}

// CreatePointIndex creates an empty point index published as name.
func (n *IndexNode) CreatePointIndex(ctx context.Context, name string) (*PointIndex, error) {
	cfg, err := n.TreeConfig()
	if err != nil {
		return nil, err
	}
	trie, err := hamt.New(n.Blockstore, cfg)
	if err != nil {
		return nil, err
	}
	cfgCid, err := prolly.PutConfig(ctx, n.Blockstore, cfg)
	if err != nil {
		return nil, err
	}
	root, err := trie.Empty(ctx)
	if err != nil {
		return nil, err
	}
	h := prolly.Handle{Config: cfgCid, Root: root}
	hc, err := n.create(ctx, name, h)
	if err != nil {
		return nil, err
	}
	log.Infof("Created point index %s at %s", name, hc)
	return &PointIndex{node: n, name: name, trie: trie, handle: h, handleCid: hc}, nil
}

// OpenPointIndex opens the point index name resolves to.
func (n *IndexNode) OpenPointIndex(ctx context.Context, name string) (*PointIndex, error) {
	hc, err := n.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	h, err := prolly.LoadHandle(ctx, n.Blockstore, hc)
	if err != nil {
		return nil, err
	}
	kind, err := n.Kind(ctx, h)
	if err != nil {
		return nil, err
	}
	if kind != PointKind {
		return nil, errors.Wrapf(ErrWrongKind, "%s is a %s index", name, kind)
	}
	cfg, err := prolly.LoadConfig(ctx, n.Blockstore, h.Config)
	if err != nil {
		return nil, err
	}
	trie, err := hamt.New(n.Blockstore, cfg)
	if err != nil {
		return nil, err
	}
	return &PointIndex{node: n, name: name, trie: trie, handle: h, handleCid: hc}, nil
}

func (x *PointIndex) Name() string { return x.name }

// KeyLength is the length every key of the index must have.
func (x *PointIndex) KeyLength() int { return x.trie.KeyLength() }

func (x *PointIndex) Handle() (prolly.Handle, cid.Cid) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.handle, x.handleCid
}

func (x *PointIndex) root() cid.Cid {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.handle.Root
}

func (x *PointIndex) Get(ctx context.Context, key []byte) (cid.Cid, error) {
	return x.trie.Get(ctx, x.root(), key)
}

func (x *PointIndex) Insert(ctx context.Context, key []byte, value cid.Cid) (cid.Cid, error) {
	return x.update(ctx, func(root cid.Cid) (cid.Cid, error) {
		return x.trie.Insert(ctx, root, key, value)
	})
}

// Add stores c under its own digest.
func (x *PointIndex) Add(ctx context.Context, c cid.Cid) (cid.Cid, error) {
	key, err := hamt.KeyFromCid(c)
	if err != nil {
		return cid.Undef, err
	}
	return x.Insert(ctx, key, c)
}

func (x *PointIndex) Remove(ctx context.Context, key []byte) (cid.Cid, error) {
	return x.update(ctx, func(root cid.Cid) (cid.Cid, error) {
		return x.trie.Remove(ctx, root, key)
	})
}

// ForEach visits every entry in trie order.
func (x *PointIndex) ForEach(ctx context.Context, fn func(key []byte, value cid.Cid) error) error {
	return x.trie.ForEach(ctx, x.root(), fn)
}

func (x *PointIndex) update(ctx context.Context, fn func(root cid.Cid) (cid.Cid, error)) (cid.Cid, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	root, err := fn(x.handle.Root)
	if err != nil {
		return cid.Undef, err
	}
	if root.Equals(x.handle.Root) {
		return root, nil
	}
	next := prolly.Handle{Config: x.handle.Config, Root: root}
	hc, err := x.node.commit(ctx, x.name, x.handleCid, next)
	if err != nil {
		return cid.Undef, err
	}
	x.handle, x.handleCid = next, hc
	return root, nil
}

func (x *PointIndex) Stat(ctx context.Context) (Stat, error) {
	h, hc := x.Handle()
	cfg, err := prolly.LoadConfig(ctx, x.node.Blockstore, h.Config)
	if err != nil {
		return Stat{}, err
	}
	st := Stat{Name: x.name, Kind: PointKind, Handle: hc, Root: h.Root, Config: cfg}
	err = x.trie.ForEach(ctx, h.Root, func([]byte, cid.Cid) error {
		st.Count++
		return nil
	})
	if err != nil {
		return Stat{}, err
	}
	nodes, err := ipfs.FetchGraph(ctx, x.node.Blockstore, h.Root, hamt.Links)
	if err != nil {
		return Stat{}, err
	}
	st.Nodes = len(nodes)
	return st, nil
}
