package prolly

import (
	"context"

	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
)

type frame[K any] struct {
	n *node[K]
	i int
}

// Iterator walks entries in ascending key order, loading nodes as it goes.
// Only the nodes on the path to the current entry are held.
//
//	it := tree.Stream(ctx, root)
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iterator[K, V any] struct {
	ctx  context.Context
	t    *Tree[K, V]
	root cid.Cid

	start, end       K
	hasStart, hasEnd bool

	stack   []frame[K]
	started bool
	done    bool
	key     K
	value   V
	err     error
}

// Stream returns an iterator over every entry of the tree.
func (t *Tree[K, V]) Stream(ctx context.Context, root cid.Cid) *Iterator[K, V] {
	return &Iterator[K, V]{ctx: ctx, t: t, root: root}
}

// Range returns an iterator over the entries with start <= key < end.
func (t *Tree[K, V]) Range(ctx context.Context, root cid.Cid, start, end K) *Iterator[K, V] {
	return &Iterator[K, V]{ctx: ctx, t: t, root: root, start: start, end: end, hasStart: true, hasEnd: true}
}

// From returns an iterator over the entries with key >= start.
func (t *Tree[K, V]) From(ctx context.Context, root cid.Cid, start K) *Iterator[K, V] {
	return &Iterator[K, V]{ctx: ctx, t: t, root: root, start: start, hasStart: true}
}

// Next advances to the next entry and reports whether there is one.
func (it *Iterator[K, V]) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if !it.started {
		it.started = true
		if it.err = it.seek(); it.err != nil {
			return false
		}
	}
	for len(it.stack) > 0 {
		if it.err = it.ctx.Err(); it.err != nil {
			return false
		}
		top := &it.stack[len(it.stack)-1]
		if top.i >= len(top.n.entries) {
			it.stack = it.stack[:len(it.stack)-1]
			if len(it.stack) > 0 {
				it.stack[len(it.stack)-1].i++
			}
			continue
		}
		e := &top.n.entries[top.i]
		if !top.n.leaf {
			child, err := it.t.load(it.ctx, e.link)
			if err != nil {
				it.err = err
				return false
			}
			it.stack = append(it.stack, frame[K]{n: child})
			continue
		}
		top.i++
		if it.hasEnd && it.t.compare(e.key, it.end) >= 0 {
			it.finish()
			return false
		}
		v, err := it.t.values.Decode(e.vraw)
		if err != nil {
			it.err = errors.Mark(errors.Wrapf(err, "value of key %v", e.key), ipfs.ErrDecode)
			return false
		}
		it.key, it.value = e.key, v
		return true
	}
	it.finish()
	return false
}

// seek positions the stack on the first entry not below start.
func (it *Iterator[K, V]) seek() error {
	n, err := it.t.load(it.ctx, it.root)
	if err != nil {
		return err
	}
	for {
		f := frame[K]{n: n}
		if it.hasStart {
			if n.leaf {
				f.i, _ = n.search(it.start, it.t.compare)
			} else {
				f.i = n.childIndex(it.start, it.t.compare)
			}
		}
		it.stack = append(it.stack, f)
		if n.leaf || !it.hasStart {
			return nil
		}
		if n, err = it.t.load(it.ctx, n.entries[f.i].link); err != nil {
			return err
		}
	}
}

func (it *Iterator[K, V]) finish() {
	it.done = true
	it.stack = nil
}

func (it *Iterator[K, V]) Key() K { return it.key }

func (it *Iterator[K, V]) Value() V { return it.value }

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[K, V]) Err() error { return it.err }

// Collect drains the iterator into a slice.
func (it *Iterator[K, V]) Collect() ([]KV[K, V], error) {
	var out []KV[K, V]
	for it.Next() {
		out = append(out, KV[K, V]{Key: it.Key(), Value: it.Value()})
	}
	return out, it.Err()
}
