// Package prolly implements an ordered, content addressed key-value index.
// Node boundaries are chosen from entry content by the chunking strategy,
// so a key set always yields the same tree however it was written.
package prolly

import (
	"bytes"
	"cmp"
	"context"

	"github.com/OpenBazaar/openbazaar-index/chunking"
	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	logging "github.com/op/go-logging"
	cbg "github.com/whyrusleeping/cbor-gen"
)

var log = logging.MustGetLogger("prolly")

const DefaultConcurrency = 32

// Tree reads and writes ordered indexes stored in a block store. It holds no
// root: reads take a root and writes return the new one.
type Tree[K, V any] struct {
	bs          ipfs.Blockstore
	cfg         codec.Config
	prefix      cid.Prefix
	strategy    chunking.Strategy
	keys        codec.Codec[K]
	values      codec.Codec[V]
	compare     func(a, b K) int
	concurrency int64
}

type settings struct {
	concurrency int64
}

// Option configures a Tree.
type Option func(*settings)

// UseConcurrency bounds the number of blocks loaded at once by a batch.
func UseConcurrency(n int) Option {
	return func(s *settings) {
		s.concurrency = int64(n)
	}
}

// New returns a tree over keys of an ordered type, with keys and values
// encoded as DAG-CBOR.
func New[K cmp.Ordered, V any](bs ipfs.Blockstore, cfg codec.Config, opts ...Option) (*Tree[K, V], error) {
	return NewWithCodecs[K, V](bs, cfg, codec.CBOR[K](), codec.CBOR[V](), codec.Compare[K], opts...)
}

// NewWithCodecs returns a tree with custom key and value codecs. compare must
// be a total order consistent with key equality.
func NewWithCodecs[K, V any](bs ipfs.Blockstore, cfg codec.Config, keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, opts ...Option) (*Tree[K, V], error) {
	strategy, err := chunking.NewStrategy(cfg)
	if err != nil {
		return nil, err
	}
	s := settings{concurrency: DefaultConcurrency}
	for _, o := range opts {
		o(&s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return &Tree[K, V]{
		bs:          bs,
		cfg:         cfg,
		prefix:      cfg.Prefix(),
		strategy:    strategy,
		keys:        keys,
		values:      values,
		compare:     compare,
		concurrency: s.concurrency,
	}, nil
}

func (t *Tree[K, V]) Config() codec.Config { return t.cfg }

// Empty stores an empty leaf and returns its CID, the root of an empty tree.
func (t *Tree[K, V]) Empty(ctx context.Context) (cid.Cid, error) {
	b, _, err := t.block(&node[K]{leaf: true})
	if err != nil {
		return cid.Undef, err
	}
	if err := ipfs.Put(ctx, t.bs, b); err != nil {
		return cid.Undef, err
	}
	return b.Cid(), nil
}

// Get returns the value stored under key, or an error marked
// ipfs.ErrNotFound.
func (t *Tree[K, V]) Get(ctx context.Context, root cid.Cid, key K) (V, error) {
	var zero V
	n, err := t.load(ctx, root)
	if err != nil {
		return zero, err
	}
	for !n.leaf {
		if n, err = t.load(ctx, n.entries[n.childIndex(key, t.compare)].link); err != nil {
			return zero, err
		}
	}
	i, ok := n.search(key, t.compare)
	if !ok {
		return zero, errors.Wrapf(ipfs.ErrNotFound, "key %v", key)
	}
	v, err := t.values.Decode(n.entries[i].vraw)
	if err != nil {
		return zero, errors.Mark(errors.Wrapf(err, "value of key %v", key), ipfs.ErrDecode)
	}
	return v, nil
}

// Height returns the number of branch levels above the leaves.
func (t *Tree[K, V]) Height(ctx context.Context, root cid.Cid) (int, error) {
	n, err := t.load(ctx, root)
	if err != nil {
		return 0, err
	}
	height := 0
	for !n.leaf {
		height++
		if n, err = t.load(ctx, n.entries[0].link); err != nil {
			return 0, err
		}
	}
	return height, nil
}

// Count returns the number of entries in the tree.
func (t *Tree[K, V]) Count(ctx context.Context, root cid.Cid) (int, error) {
	n, err := t.load(ctx, root)
	if err != nil {
		return 0, err
	}
	return t.count(ctx, n)
}

func (t *Tree[K, V]) count(ctx context.Context, n *node[K]) (int, error) {
	if n.leaf {
		return len(n.entries), nil
	}
	total := 0
	for _, e := range n.entries {
		child, err := t.load(ctx, e.link)
		if err != nil {
			return 0, err
		}
		c, err := t.count(ctx, child)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// load fetches and decodes the node c. Keys are decoded eagerly; values are
// decoded when read.
func (t *Tree[K, V]) load(ctx context.Context, c cid.Cid) (*node[K], error) {
	raw, err := ipfs.GetRaw(ctx, t.bs, c)
	if err != nil {
		return nil, err
	}
	return t.decode(raw, c)
}

func (t *Tree[K, V]) decode(raw []byte, c cid.Cid) (*node[K], error) {
	var w wireNode
	if err := ipfs.DecodeNode(raw, c, &w); err != nil {
		return nil, err
	}
	if !w.Leaf && len(w.Keys) == 0 {
		return nil, ipfs.Corrupt(errors.New("branch without children"), c)
	}
	n := &node[K]{leaf: w.Leaf, entries: make([]entry[K], len(w.Keys))}
	for i := range w.Keys {
		e := &n.entries[i]
		key, err := t.keys.Decode(w.Keys[i])
		if err != nil {
			return nil, ipfs.Corrupt(errors.Wrapf(err, "key %d", i), c)
		}
		if i > 0 && t.compare(n.entries[i-1].key, key) >= 0 {
			return nil, ipfs.Corrupt(errors.Newf("key %d out of order", i), c)
		}
		e.key, e.kraw, e.vraw = key, w.Keys[i], w.Values[i]
		if !w.Leaf {
			if e.link, err = decodeLink(w.Values[i]); err != nil {
				return nil, ipfs.Corrupt(errors.Wrapf(err, "link %d", i), c)
			}
		}
	}
	return n, nil
}

// block serializes n and returns it with the branch entry pointing at it.
func (t *Tree[K, V]) block(n *node[K]) (blocks.Block, entry[K], error) {
	w := wireNode{
		Leaf:   n.leaf,
		Keys:   make([][]byte, len(n.entries)),
		Values: make([][]byte, len(n.entries)),
	}
	for i := range n.entries {
		w.Keys[i] = n.entries[i].kraw
		w.Values[i] = n.entries[i].vraw
	}
	b, err := ipfs.NewBlock(t.prefix, &w)
	if err != nil {
		return nil, entry[K]{}, err
	}
	var parent entry[K]
	if len(n.entries) > 0 {
		link, err := encodeLink(b.Cid())
		if err != nil {
			return nil, entry[K]{}, err
		}
		first := n.entries[0]
		parent = entry[K]{key: first.key, kraw: first.kraw, vraw: link, link: b.Cid()}
	}
	return b, parent, nil
}

func (t *Tree[K, V]) leafEntry(key K, value V) (entry[K], error) {
	kraw, err := t.keys.Encode(key)
	if err != nil {
		return entry[K]{}, errors.Wrapf(err, "encode key %v", key)
	}
	vraw, err := t.values.Encode(value)
	if err != nil {
		return entry[K]{}, errors.Wrapf(err, "encode value of key %v", key)
	}
	return entry[K]{key: key, kraw: kraw, vraw: vraw}, nil
}

func decodeLink(raw []byte) (cid.Cid, error) {
	return cbg.ReadCid(bytes.NewReader(raw))
}

// Links returns the child links of a prolly node block, for graph walks.
func Links(b blocks.Block) ([]cid.Cid, error) {
	var w wireNode
	if err := ipfs.DecodeNode(b.RawData(), b.Cid(), &w); err != nil {
		return nil, err
	}
	if w.Leaf {
		return nil, nil
	}
	out := make([]cid.Cid, len(w.Values))
	for i, raw := range w.Values {
		c, err := decodeLink(raw)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Nodes returns the CIDs of every node reachable from root.
func (t *Tree[K, V]) Nodes(ctx context.Context, root cid.Cid) ([]cid.Cid, error) {
	return ipfs.FetchGraph(ctx, t.bs, root, Links)
}
