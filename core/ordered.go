package core

import (
	"cmp"
	"context"
	"sync"

	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/OpenBazaar/openbazaar-index/prolly"
	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
)

// OrderedIndex is a named prolly tree. Every write commits a new handle and
// republishes the name.
type OrderedIndex[K cmp.Ordered, V any] struct {
	node *IndexNode
	name string
	tree *prolly.Tree[K, V]

	mu        sync.RWMutex
	handle    prolly.Handle
	handleCid cid.Cid
}

// CreateOrderedIndex creates an empty ordered index published as name, using
// the node's tree configuration.
func CreateOrderedIndex[K cmp.Ordered, V any](ctx context.Context, n *IndexNode, name string) (*OrderedIndex[K, V], error) {
	cfg, err := n.TreeConfig()
	if err != nil {
		return nil, err
	}
	tree, h, err := prolly.Create[K, V](ctx, n.Blockstore, cfg, n.treeOptions()...)
	if err != nil {
		return nil, err
	}
	hc, err := n.create(ctx, name, h)
	if err != nil {
		return nil, err
	}
	log.Infof("Created ordered index %s at %s", name, hc)
	return &OrderedIndex[K, V]{node: n, name: name, tree: tree, handle: h, handleCid: hc}, nil
}

// OpenOrderedIndex opens the ordered index name resolves to.
func OpenOrderedIndex[K cmp.Ordered, V any](ctx context.Context, n *IndexNode, name string) (*OrderedIndex[K, V], error) {
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
	if kind != OrderedKind {
		return nil, errors.Wrapf(ErrWrongKind, "%s is a %s index", name, kind)
	}
	tree, err := prolly.Open[K, V](ctx, n.Blockstore, h, n.treeOptions()...)
	if err != nil {
		return nil, err
	}
	return &OrderedIndex[K, V]{node: n, name: name, tree: tree, handle: h, handleCid: hc}, nil
}

func (x *OrderedIndex[K, V]) Name() string { return x.name }

// Handle returns the current handle and its address.
func (x *OrderedIndex[K, V]) Handle() (prolly.Handle, cid.Cid) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.handle, x.handleCid
}

func (x *OrderedIndex[K, V]) root() cid.Cid {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.handle.Root
}

// Apply runs a batch against the current root and commits the result.
func (x *OrderedIndex[K, V]) Apply(ctx context.Context, muts []prolly.Mutation[K, V]) (cid.Cid, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	root, err := x.tree.Apply(ctx, x.handle.Root, muts)
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

func (x *OrderedIndex[K, V]) Insert(ctx context.Context, key K, value V) (cid.Cid, error) {
	return x.Apply(ctx, []prolly.Mutation[K, V]{{Key: key, Value: value}})
}

func (x *OrderedIndex[K, V]) BatchInsert(ctx context.Context, kvs []prolly.KV[K, V]) (cid.Cid, error) {
	muts := make([]prolly.Mutation[K, V], len(kvs))
	for i, kv := range kvs {
		muts[i] = prolly.Mutation[K, V]{Key: kv.Key, Value: kv.Value}
	}
	return x.Apply(ctx, muts)
}

func (x *OrderedIndex[K, V]) Remove(ctx context.Context, keys ...K) (cid.Cid, error) {
	muts := make([]prolly.Mutation[K, V], len(keys))
	for i, k := range keys {
		muts[i] = prolly.Mutation[K, V]{Key: k, Remove: true}
	}
	return x.Apply(ctx, muts)
}

func (x *OrderedIndex[K, V]) Get(ctx context.Context, key K) (V, error) {
	return x.tree.Get(ctx, x.root(), key)
}

func (x *OrderedIndex[K, V]) Stream(ctx context.Context) *prolly.Iterator[K, V] {
	return x.tree.Stream(ctx, x.root())
}

// Range iterates the keys in [start, end).
func (x *OrderedIndex[K, V]) Range(ctx context.Context, start, end K) *prolly.Iterator[K, V] {
	return x.tree.Range(ctx, x.root(), start, end)
}

func (x *OrderedIndex[K, V]) From(ctx context.Context, start K) *prolly.Iterator[K, V] {
	return x.tree.From(ctx, x.root(), start)
}

// Stat walks the whole tree.
func (x *OrderedIndex[K, V]) Stat(ctx context.Context) (Stat, error) {
	h, hc := x.Handle()
	st := Stat{Name: x.name, Kind: OrderedKind, Handle: hc, Root: h.Root, Config: x.tree.Config()}
	var err error
	if st.Height, err = x.tree.Height(ctx, h.Root); err != nil {
		return Stat{}, err
	}
	if st.Count, err = x.tree.Count(ctx, h.Root); err != nil {
		return Stat{}, err
	}
	nodes, err := ipfs.FetchGraph(ctx, x.node.Blockstore, h.Root, prolly.Links)
	if err != nil {
		return Stat{}, err
	}
	st.Nodes = len(nodes)
	return st, nil
}
