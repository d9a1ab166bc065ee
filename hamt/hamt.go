// Package hamt implements a persistent hash array mapped trie over a content
// addressed block store. Keys are fixed length digests; one key byte selects
// the slot at each level. The trie is kept in canonical form, so a key set
// always produces the same root whatever order it was written in.
package hamt

import (
	"context"

	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("hamt")

const DefaultBucketSize = 3

// HAMT operates on tries stored in a block store. It holds no root of its
// own: every operation takes a root and mutations return the new one.
type HAMT struct {
	bs         ipfs.Blockstore
	prefix     cid.Prefix
	keyLength  int
	bucketSize int
}

// Option configures a HAMT.
type Option func(*HAMT)

// UseBucketSize sets the number of entries a slot holds before it is pushed
// down into a child node.
func UseBucketSize(size int) Option {
	return func(h *HAMT) {
		h.bucketSize = size
	}
}

// UseKeyLength overrides the key length, which defaults to the digest length
// of the configured digest function.
func UseKeyLength(length int) Option {
	return func(h *HAMT) {
		h.keyLength = length
	}
}

func New(bs ipfs.Blockstore, cfg codec.Config, opts ...Option) (*HAMT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &HAMT{
		bs:         bs,
		prefix:     cfg.Prefix(),
		keyLength:  cfg.DigestLength(),
		bucketSize: DefaultBucketSize,
	}
	for _, o := range opts {
		o(h)
	}
	if h.bucketSize < 1 {
		return nil, errors.Wrapf(codec.ErrInvalidConfig, "bucket size %d", h.bucketSize)
	}
	if h.keyLength < 1 {
		return nil, errors.Wrapf(codec.ErrInvalidConfig, "key length %d", h.keyLength)
	}
	return h, nil
}

// KeyLength returns the length every key must have.
func (h *HAMT) KeyLength() int { return h.keyLength }

// Empty stores an empty root node and returns its CID.
func (h *HAMT) Empty(ctx context.Context) (cid.Cid, error) {
	return h.put(ctx, &Node{})
}

// Get returns the value stored under key.
func (h *HAMT) Get(ctx context.Context, root cid.Cid, key []byte) (cid.Cid, error) {
	if err := h.checkKey(key); err != nil {
		return cid.Undef, err
	}
	n, err := h.load(ctx, root)
	if err != nil {
		return cid.Undef, err
	}
	for depth := 0; ; depth++ {
		if depth >= len(key) {
			return cid.Undef, ErrMaxDepth
		}
		slot := int(key[depth])
		if !n.has(slot) {
			return cid.Undef, errors.Wrapf(ErrNotFound, "key %x", key)
		}
		el := &n.Elements[n.index(slot)]
		if !el.isLink() {
			i, ok := searchBucket(el.Bucket, key)
			if !ok {
				return cid.Undef, errors.Wrapf(ErrNotFound, "key %x", key)
			}
			return el.Bucket[i].Value, nil
		}
		if n, err = h.load(ctx, el.Link); err != nil {
			return cid.Undef, err
		}
	}
}

// Insert sets key to value and returns the new root. Writing a value that is
// already present returns root unchanged.
func (h *HAMT) Insert(ctx context.Context, root cid.Cid, key []byte, value cid.Cid) (cid.Cid, error) {
	if err := h.checkKey(key); err != nil {
		return cid.Undef, err
	}
	if !value.Defined() {
		return cid.Undef, errors.New("cannot insert an undefined value")
	}
	key = append([]byte(nil), key...)
	n, err := h.load(ctx, root)
	if err != nil {
		return cid.Undef, err
	}
	out, err := h.insert(ctx, n, key, value, 0)
	if err != nil {
		return cid.Undef, err
	}
	return h.put(ctx, out)
}

// Remove deletes key and returns the new root. Removing an absent key
// returns root unchanged.
func (h *HAMT) Remove(ctx context.Context, root cid.Cid, key []byte) (cid.Cid, error) {
	if err := h.checkKey(key); err != nil {
		return cid.Undef, err
	}
	n, err := h.load(ctx, root)
	if err != nil {
		return cid.Undef, err
	}
	out, found, err := h.remove(ctx, n, key, 0)
	if err != nil {
		return cid.Undef, err
	}
	if !found {
		return root, nil
	}
	return h.put(ctx, out)
}

// ForEach calls fn for every entry in key order until fn returns an error.
func (h *HAMT) ForEach(ctx context.Context, root cid.Cid, fn func(key []byte, value cid.Cid) error) error {
	n, err := h.load(ctx, root)
	if err != nil {
		return err
	}
	return h.forEach(ctx, n, fn)
}

func (h *HAMT) forEach(ctx context.Context, n *Node, fn func(key []byte, value cid.Cid) error) error {
	for i := range n.Elements {
		el := &n.Elements[i]
		if !el.isLink() {
			for _, kv := range el.Bucket {
				if err := fn(kv.Key, kv.Value); err != nil {
					return err
				}
			}
			continue
		}
		child, err := h.load(ctx, el.Link)
		if err != nil {
			return err
		}
		if err := h.forEach(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *HAMT) insert(ctx context.Context, n *Node, key []byte, value cid.Cid, depth int) (*Node, error) {
	if depth >= len(key) {
		return nil, ErrMaxDepth
	}
	slot := int(key[depth])
	out := n.clone()
	pos := out.index(slot)
	if !out.has(slot) {
		out.set(slot)
		out.Elements = append(out.Elements, Element{})
		copy(out.Elements[pos+1:], out.Elements[pos:])
		out.Elements[pos] = Element{Bucket: []BucketEntry{{Key: key, Value: value}}}
		return out, nil
	}

	el := out.Elements[pos]
	if el.isLink() {
		child, err := h.load(ctx, el.Link)
		if err != nil {
			return nil, err
		}
		child, err = h.insert(ctx, child, key, value, depth+1)
		if err != nil {
			return nil, err
		}
		c, err := h.put(ctx, child)
		if err != nil {
			return nil, err
		}
		out.Elements[pos] = Element{Link: c}
		return out, nil
	}

	i, found := searchBucket(el.Bucket, key)
	if found {
		bucket := append([]BucketEntry(nil), el.Bucket...)
		bucket[i].Value = value
		out.Elements[pos] = Element{Bucket: bucket}
		return out, nil
	}
	if len(el.Bucket) < h.bucketSize {
		bucket := make([]BucketEntry, 0, len(el.Bucket)+1)
		bucket = append(bucket, el.Bucket[:i]...)
		bucket = append(bucket, BucketEntry{Key: key, Value: value})
		bucket = append(bucket, el.Bucket[i:]...)
		out.Elements[pos] = Element{Bucket: bucket}
		return out, nil
	}

	// The bucket is full: push all of its entries one level down.
	child := &Node{}
	var err error
	pushed := make([]BucketEntry, 0, len(el.Bucket)+1)
	pushed = append(pushed, el.Bucket...)
	for _, kv := range append(pushed, BucketEntry{Key: key, Value: value}) {
		if child, err = h.insert(ctx, child, kv.Key, kv.Value, depth+1); err != nil {
			return nil, err
		}
	}
	c, err := h.put(ctx, child)
	if err != nil {
		return nil, err
	}
	log.Debugf("Split slot %d at depth %d into %s", slot, depth, c)
	out.Elements[pos] = Element{Link: c}
	return out, nil
}

func (h *HAMT) remove(ctx context.Context, n *Node, key []byte, depth int) (*Node, bool, error) {
	if depth >= len(key) {
		return nil, false, ErrMaxDepth
	}
	slot := int(key[depth])
	if !n.has(slot) {
		return n, false, nil
	}
	pos := n.index(slot)
	el := n.Elements[pos]

	if el.isLink() {
		child, err := h.load(ctx, el.Link)
		if err != nil {
			return nil, false, err
		}
		child, found, err := h.remove(ctx, child, key, depth+1)
		if err != nil || !found {
			return n, found, err
		}
		out := n.clone()
		switch {
		case len(child.Elements) == 0:
			out.deleteElement(slot, pos)
		case child.collapsible(h.bucketSize):
			out.Elements[pos] = Element{Bucket: child.entries()}
		default:
			c, err := h.put(ctx, child)
			if err != nil {
				return nil, false, err
			}
			out.Elements[pos] = Element{Link: c}
		}
		return out, true, nil
	}

	i, found := searchBucket(el.Bucket, key)
	if !found {
		return n, false, nil
	}
	out := n.clone()
	if len(el.Bucket) == 1 {
		out.deleteElement(slot, pos)
		return out, true, nil
	}
	bucket := make([]BucketEntry, 0, len(el.Bucket)-1)
	bucket = append(bucket, el.Bucket[:i]...)
	bucket = append(bucket, el.Bucket[i+1:]...)
	out.Elements[pos] = Element{Bucket: bucket}
	return out, true, nil
}

func (n *Node) deleteElement(slot, pos int) {
	n.clear(slot)
	n.Elements = append(n.Elements[:pos], n.Elements[pos+1:]...)
}

func (h *HAMT) checkKey(key []byte) error {
	if len(key) != h.keyLength {
		return errors.Wrapf(ErrInvalidKey, "got %d bytes, want %d", len(key), h.keyLength)
	}
	return nil
}

func (h *HAMT) load(ctx context.Context, c cid.Cid) (*Node, error) {
	n := new(Node)
	if err := ipfs.GetNode(ctx, h.bs, c, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (h *HAMT) put(ctx context.Context, n *Node) (cid.Cid, error) {
	return ipfs.PutNode(ctx, h.bs, h.prefix, n)
}

// Links returns the child node links of a HAMT block, for graph walks.
func Links(b blocks.Block) ([]cid.Cid, error) {
	n := new(Node)
	if err := ipfs.DecodeNode(b.RawData(), b.Cid(), n); err != nil {
		return nil, err
	}
	return n.Links(), nil
}

// KeyFromCid returns the digest of c, which is a valid key for a HAMT using
// the same digest function.
func KeyFromCid(c cid.Cid) ([]byte, error) {
	dec, err := multihash.Decode(c.Hash())
	if err != nil {
		return nil, errors.Wrapf(err, "decode multihash of %s", c)
	}
	return dec.Digest, nil
}
