package prolly

import (
	"context"
	"sort"
	"time"

	cid "github.com/ipfs/go-cid"
)

// KV is a key with its value.
type KV[K, V any] struct {
	Key   K
	Value V
}

// Mutation is one write of a batch: Key is set to Value, or removed when
// Remove is set.
type Mutation[K, V any] struct {
	Key    K
	Value  V
	Remove bool
}

type op[K any] struct {
	entry[K]
	remove bool
}

func (t *Tree[K, V]) Insert(ctx context.Context, root cid.Cid, key K, value V) (cid.Cid, error) {
	return t.BatchInsert(ctx, root, []KV[K, V]{{Key: key, Value: value}})
}

// BatchInsert writes every pair and returns the new root. When a key repeats
// the last pair wins.
func (t *Tree[K, V]) BatchInsert(ctx context.Context, root cid.Cid, kvs []KV[K, V]) (cid.Cid, error) {
	muts := make([]Mutation[K, V], len(kvs))
	for i, kv := range kvs {
		muts[i] = Mutation[K, V]{Key: kv.Key, Value: kv.Value}
	}
	return t.Apply(ctx, root, muts)
}

func (t *Tree[K, V]) Remove(ctx context.Context, root cid.Cid, key K) (cid.Cid, error) {
	return t.BatchRemove(ctx, root, []K{key})
}

// BatchRemove deletes every key and returns the new root. Absent keys are
// ignored.
func (t *Tree[K, V]) BatchRemove(ctx context.Context, root cid.Cid, keys []K) (cid.Cid, error) {
	muts := make([]Mutation[K, V], len(keys))
	for i, k := range keys {
		muts[i] = Mutation[K, V]{Key: k, Remove: true}
	}
	return t.Apply(ctx, root, muts)
}

// Apply runs a batch of inserts and removals against root and returns the
// new root. Mutations are applied as if in slice order; the resulting tree
// depends only on the final key set.
func (t *Tree[K, V]) Apply(ctx context.Context, root cid.Cid, muts []Mutation[K, V]) (cid.Cid, error) {
	if len(muts) == 0 {
		return root, nil
	}
	ops, err := t.normalize(muts)
	if err != nil {
		return cid.Undef, err
	}
	start := time.Now()
	out, err := newExecutor(t).run(ctx, root, ops)
	if err != nil {
		return cid.Undef, err
	}
	log.Debugf("Applied %d mutations to %s in %s, new root %s", len(ops), root, time.Since(start), out)
	return out, nil
}

// normalize encodes the mutations and sorts them by key, keeping only the
// last mutation of each key.
func (t *Tree[K, V]) normalize(muts []Mutation[K, V]) ([]op[K], error) {
	sorted := make([]op[K], len(muts))
	for i, m := range muts {
		var err error
		if !m.Remove {
			if sorted[i].entry, err = t.leafEntry(m.Key, m.Value); err != nil {
				return nil, err
			}
			continue
		}
		sorted[i].key, sorted[i].remove = m.Key, true
		if sorted[i].kraw, err = t.keys.Encode(m.Key); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return t.compare(sorted[i].key, sorted[j].key) < 0
	})

	ops := sorted[:0]
	for _, o := range sorted {
		if n := len(ops); n > 0 && t.compare(ops[n-1].key, o.key) == 0 {
			ops[n-1] = o
			continue
		}
		ops = append(ops, o)
	}
	return ops, nil
}
