package hamt

import (
	"bytes"
	"math/bits"

	cid "github.com/ipfs/go-cid"
)

// BitmapSize is the bitmap width in bytes. Each level consumes one key byte,
// so a node has 256 slots.
const BitmapSize = 32

// Node is one level of the trie. Elements holds one entry per set bit, in
// slot order. Slot i is bit i%8 (least significant first) of Bitmap[i/8].
type Node struct {
	Bitmap   [BitmapSize]byte
	Elements []Element
}

// Element is either a link to a child node or a bucket of entries whose keys
// share the slot. Exactly one of the two is set.
type Element struct {
	Link   cid.Cid
	Bucket []BucketEntry
}

// BucketEntry is a key with its value. Buckets are sorted by key.
type BucketEntry struct {
	Key   []byte
	Value cid.Cid
}

func (e *Element) isLink() bool { return e.Link.Defined() }

func (n *Node) has(slot int) bool {
	return n.Bitmap[slot/8]&(1<<(slot%8)) != 0
}

func (n *Node) set(slot int) { n.Bitmap[slot/8] |= 1 << (slot % 8) }

func (n *Node) clear(slot int) { n.Bitmap[slot/8] &^= 1 << (slot % 8) }

// index returns the position in Elements of the element for slot, which is
// the number of set bits below it.
func (n *Node) index(slot int) int {
	count := 0
	for i := 0; i < slot/8; i++ {
		count += bits.OnesCount8(n.Bitmap[i])
	}
	mask := byte(1<<(slot%8)) - 1
	return count + bits.OnesCount8(n.Bitmap[slot/8]&mask)
}

func (n *Node) population() int {
	count := 0
	for _, b := range n.Bitmap {
		count += bits.OnesCount8(b)
	}
	return count
}

func (n *Node) clone() *Node {
	out := &Node{Bitmap: n.Bitmap, Elements: make([]Element, len(n.Elements))}
	copy(out.Elements, n.Elements)
	return out
}

// collapsible reports whether the node holds no links and at most max
// entries, in which case it is replaced by a bucket in its parent.
func (n *Node) collapsible(max int) bool {
	total := 0
	for i := range n.Elements {
		if n.Elements[i].isLink() {
			return false
		}
		total += len(n.Elements[i].Bucket)
	}
	return total <= max
}

// entries returns the bucket entries of a collapsible node in key order.
func (n *Node) entries() []BucketEntry {
	var out []BucketEntry
	for i := range n.Elements {
		out = append(out, n.Elements[i].Bucket...)
	}
	return out
}

// Links returns the child links of the node.
func (n *Node) Links() []cid.Cid {
	var out []cid.Cid
	for i := range n.Elements {
		if n.Elements[i].isLink() {
			out = append(out, n.Elements[i].Link)
		}
	}
	return out
}

func searchBucket(b []BucketEntry, key []byte) (int, bool) {
	lo, hi := 0, len(b)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if bytes.Compare(b[mid].Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(b) && bytes.Equal(b[lo].Key, key)
}
