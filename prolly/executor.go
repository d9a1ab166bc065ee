package prolly

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/OpenBazaar/openbazaar-index/chunking"
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxHeight bounds the number of levels a batch may add above the old root.
const maxHeight = 64

// path addresses a node by the entry index taken at each level from the root.
type path []int

func (p path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "/")
}

func (p path) equal(o path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p path) child(i int) path {
	out := make(path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// dirtyNode holds the new entries of an old node touched by the batch.
type dirtyNode[K any] struct {
	at      path
	entries []entry[K]
}

// replacement is a run of consecutive old nodes of one level, starting at
// start, that was rechunked into nodes.
type replacement[K any] struct {
	start path
	count int
	nodes []entry[K]
}

// executor applies one sorted batch. It descends from the root to the
// affected leaves concurrently, then rebuilds the tree one level at a time
// from the leaves up. At each level every run of nodes touched by the batch
// is rechunked from the old node before it, continuing into the following
// old nodes until the chunker closes a node where an old node ended. From there on the old nodes are
// reused as they are.
type executor[K, V any] struct {
	t    *Tree[K, V]
	sem  *semaphore.Weighted
	root *node[K]

	mu    sync.Mutex
	nodes map[cid.Cid]*node[K]
}

func newExecutor[K, V any](t *Tree[K, V]) *executor[K, V] {
	return &executor[K, V]{
		t:     t,
		sem:   semaphore.NewWeighted(t.concurrency),
		nodes: make(map[cid.Cid]*node[K]),
	}
}

func (e *executor[K, V]) run(ctx context.Context, root cid.Cid, ops []op[K]) (cid.Cid, error) {
	var err error
	if e.root, err = e.load(ctx, root); err != nil {
		return cid.Undef, err
	}
	dirty, err := e.descend(ctx, e.root, nil, ops)
	if err != nil {
		return cid.Undef, err
	}
	height := len(dirty[0].at)
	for depth := height; ; depth-- {
		reps, blks, err := e.rechunk(ctx, dirty, depth == height)
		if err != nil {
			return cid.Undef, err
		}
		if err := e.persist(ctx, blks); err != nil {
			return cid.Undef, err
		}
		if depth == 0 {
			return e.finish(ctx, reps)
		}
		if dirty, err = e.lift(ctx, reps); err != nil {
			return cid.Undef, err
		}
	}
}

// descend routes ops down to the leaves they fall in, one goroutine per
// affected child, and returns the merged leaves in key order.
func (e *executor[K, V]) descend(ctx context.Context, n *node[K], at path, ops []op[K]) ([]dirtyNode[K], error) {
	if n.leaf {
		return []dirtyNode[K]{{at: at, entries: e.merge(n.entries, ops)}}, nil
	}

	type part struct {
		child int
		ops   []op[K]
	}
	var parts []part
	for _, o := range ops {
		i := n.childIndex(o.key, e.t.compare)
		if len(parts) == 0 || parts[len(parts)-1].child != i {
			parts = append(parts, part{child: i})
		}
		last := &parts[len(parts)-1]
		last.ops = append(last.ops, o)
	}

	results := make([][]dirtyNode[K], len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		i, p := i, p
		g.Go(func() error {
			child, err := e.load(gctx, n.entries[p.child].link)
			if err != nil {
				return err
			}
			results[i], err = e.descend(gctx, child, at.child(p.child), p.ops)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []dirtyNode[K]
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// merge applies sorted ops to the sorted entries of a leaf.
func (e *executor[K, V]) merge(entries []entry[K], ops []op[K]) []entry[K] {
	out := make([]entry[K], 0, len(entries)+len(ops))
	i, j := 0, 0
	for i < len(entries) || j < len(ops) {
		var c int
		switch {
		case j == len(ops):
			c = -1
		case i == len(entries):
			c = 1
		default:
			c = e.t.compare(entries[i].key, ops[j].key)
		}
		switch {
		case c < 0:
			out = append(out, entries[i])
			i++
		case c > 0:
			if !ops[j].remove {
				out = append(out, ops[j].entry)
			}
			j++
		default:
			if !ops[j].remove {
				out = append(out, ops[j].entry)
			}
			i++
			j++
		}
	}
	return out
}

// rechunk rebuilds every dirty run of one level. dirty is sorted by path.
//
// A run starts at the old node before its first dirty node: when that node
// was closed by the max size cut, where it ended depended on the first entry
// of the dirty node. The run ends once the chunker closes a node exactly
// where an old node ended, after every dirty node of the run was consumed.
func (e *executor[K, V]) rechunk(ctx context.Context, dirty []dirtyNode[K], leaf bool) ([]replacement[K], []blocks.Block, error) {
	var (
		reps    []replacement[K]
		blks    []blocks.Block
		covered path
	)
	emit := func(rep *replacement[K], entries []entry[K]) error {
		b, parent, err := e.build(&node[K]{leaf: leaf, entries: entries})
		if err != nil {
			return err
		}
		blks = append(blks, b)
		rep.nodes = append(rep.nodes, parent)
		return nil
	}

	for i := 0; i < len(dirty); {
		start := dirty[i].at
		before, ok, err := e.prev(ctx, start)
		if err != nil {
			return nil, nil, err
		}
		if ok && !before.equal(covered) {
			start = before
		}
		rep := replacement[K]{start: start}
		ch := chunking.NewChunker[entry[K]](e.t.strategy)
		cur := start
		consumed := false
		for {
			var entries []entry[K]
			if i < len(dirty) && dirty[i].at.equal(cur) {
				entries = dirty[i].entries
				consumed = true
				i++
			} else {
				n, err := e.at(ctx, cur)
				if err != nil {
					return nil, nil, err
				}
				entries = n.entries
			}
			rep.count++
			covered = cur
			for k := range entries {
				closed, err := ch.Push(entries[k], entries[k].data())
				if err != nil {
					return nil, nil, err
				}
				for _, c := range closed {
					if err := emit(&rep, c); err != nil {
						return nil, nil, err
					}
				}
			}
			if ch.Empty() && consumed {
				break
			}
			next, ok, err := e.next(ctx, cur)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				if !ch.Empty() {
					if err := emit(&rep, ch.Flush()); err != nil {
						return nil, nil, err
					}
				}
				break
			}
			cur = next
		}
		reps = append(reps, rep)
	}
	return reps, blks, nil
}

// lift turns the replacements of one level into the dirty nodes of the
// level above: replaced links are dropped and the new nodes' links are
// spliced in where the run started.
func (e *executor[K, V]) lift(ctx context.Context, reps []replacement[K]) ([]dirtyNode[K], error) {
	type edit struct {
		at   path
		drop map[int]bool
		add  map[int][]entry[K]
	}
	var order []*edit
	edits := make(map[string]*edit)
	lookup := func(at path) *edit {
		key := at.String()
		ed, ok := edits[key]
		if !ok {
			ed = &edit{at: at, drop: make(map[int]bool), add: make(map[int][]entry[K])}
			edits[key] = ed
			order = append(order, ed)
		}
		return ed
	}

	for _, rep := range reps {
		cur := rep.start
		for k := 0; k < rep.count; k++ {
			if k > 0 {
				var (
					ok  bool
					err error
				)
				if cur, ok, err = e.next(ctx, cur); err != nil {
					return nil, err
				} else if !ok {
					return nil, errors.AssertionFailedf("replacement at %s runs past the last node", rep.start)
				}
			}
			ed := lookup(cur[:len(cur)-1])
			idx := cur[len(cur)-1]
			ed.drop[idx] = true
			if k == 0 {
				ed.add[idx] = rep.nodes
			}
		}
	}

	dirty := make([]dirtyNode[K], 0, len(order))
	for _, ed := range order {
		n, err := e.at(ctx, ed.at)
		if err != nil {
			return nil, err
		}
		entries := make([]entry[K], 0, len(n.entries))
		for idx := range n.entries {
			entries = append(entries, ed.add[idx]...)
			if !ed.drop[idx] {
				entries = append(entries, n.entries[idx])
			}
		}
		dirty = append(dirty, dirtyNode[K]{at: ed.at, entries: entries})
	}
	return dirty, nil
}

// finish turns the rechunked root level into the new root, adding branch
// levels while it has more than one node and removing branch roots with a
// single child.
func (e *executor[K, V]) finish(ctx context.Context, reps []replacement[K]) (cid.Cid, error) {
	if len(reps) != 1 {
		return cid.Undef, errors.AssertionFailedf("root level rechunked into %d runs", len(reps))
	}
	top := reps[0].nodes
	if len(top) == 0 {
		// Every entry was removed.
		b, _, err := e.build(&node[K]{leaf: true})
		if err != nil {
			return cid.Undef, err
		}
		return b.Cid(), e.persist(ctx, []blocks.Block{b})
	}

	for levels := 0; len(top) > 1; levels++ {
		if levels == maxHeight {
			return cid.Undef, errors.Newf("tree grew past %d levels", maxHeight)
		}
		rep := replacement[K]{}
		var blks []blocks.Block
		ch := chunking.NewChunker[entry[K]](e.t.strategy)
		emit := func(entries []entry[K]) error {
			b, parent, err := e.build(&node[K]{entries: entries})
			if err != nil {
				return err
			}
			blks = append(blks, b)
			rep.nodes = append(rep.nodes, parent)
			return nil
		}
		for k := range top {
			closed, err := ch.Push(top[k], top[k].data())
			if err != nil {
				return cid.Undef, err
			}
			for _, c := range closed {
				if err := emit(c); err != nil {
					return cid.Undef, err
				}
			}
		}
		if !ch.Empty() {
			if err := emit(ch.Flush()); err != nil {
				return cid.Undef, err
			}
		}
		if err := e.persist(ctx, blks); err != nil {
			return cid.Undef, err
		}
		top = rep.nodes
	}

	root := top[0].link
	for {
		n, err := e.load(ctx, root)
		if err != nil {
			return cid.Undef, err
		}
		if n.leaf || len(n.entries) != 1 {
			return root, nil
		}
		root = n.entries[0].link
	}
}

// build serializes a new node and caches it for the levels above.
func (e *executor[K, V]) build(n *node[K]) (blocks.Block, entry[K], error) {
	b, parent, err := e.t.block(n)
	if err != nil {
		return nil, entry[K]{}, err
	}
	e.mu.Lock()
	e.nodes[b.Cid()] = n
	e.mu.Unlock()
	return b, parent, nil
}

// persist stores the blocks of one level concurrently and waits for all of
// them before the level above is built.
func (e *executor[K, V]) persist(ctx context.Context, blks []blocks.Block) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(e.t.concurrency))
	for _, b := range blks {
		b := b
		g.Go(func() error {
			return ipfs.Put(gctx, e.t.bs, b)
		})
	}
	return g.Wait()
}

func (e *executor[K, V]) load(ctx context.Context, c cid.Cid) (*node[K], error) {
	e.mu.Lock()
	n, ok := e.nodes[c]
	e.mu.Unlock()
	if ok {
		return n, nil
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	n, err := e.t.load(ctx, c)
	e.sem.Release(1)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.nodes[c] = n
	e.mu.Unlock()
	return n, nil
}

// at returns the old node at p.
func (e *executor[K, V]) at(ctx context.Context, p path) (*node[K], error) {
	n := e.root
	for _, i := range p {
		var err error
		if n, err = e.load(ctx, n.entries[i].link); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// prev returns the path of the old node that precedes p on the same level,
// which may sit under a different parent.
func (e *executor[K, V]) prev(ctx context.Context, p path) (path, bool, error) {
	q := append(path(nil), p...)
	for d := len(q) - 1; d >= 0; d-- {
		if q[d] == 0 {
			continue
		}
		q[d]--
		for j := d + 1; j < len(q); j++ {
			parent, err := e.at(ctx, q[:j])
			if err != nil {
				return nil, false, err
			}
			q[j] = len(parent.entries) - 1
		}
		return q, true, nil
	}
	return nil, false, nil
}

// next returns the path of the old node that follows p on the same level,
// which may sit under a different parent.
func (e *executor[K, V]) next(ctx context.Context, p path) (path, bool, error) {
	q := append(path(nil), p...)
	for d := len(q) - 1; d >= 0; d-- {
		parent, err := e.at(ctx, q[:d])
		if err != nil {
			return nil, false, err
		}
		if q[d]+1 < len(parent.entries) {
			q[d]++
			for j := d + 1; j < len(q); j++ {
				q[j] = 0
			}
			return q, true, nil
		}
	}
	return nil, false, nil
}
