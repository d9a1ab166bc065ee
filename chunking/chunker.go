package chunking

// Chunker groups a stream of ordered entries into nodes. It carries no state
// across a closed node, so restarting it at any node boundary of an earlier
// run reproduces that run's remaining nodes.
type Chunker[E any] struct {
	strategy Strategy
	pending  []E
	size     uint64
}

func NewChunker[E any](s Strategy) *Chunker[E] {
	return &Chunker[E]{strategy: s}
}

// Push appends e, whose serialized form is data, and returns the nodes it
// closed. An entry that would push the pending node past the max size first
// closes that node; an entry on a boundary closes the node it ends once the
// node has reached the min size.
func (c *Chunker[E]) Push(e E, data []byte) ([][]E, error) {
	var closed [][]E
	size := uint64(len(data))
	if len(c.pending) > 0 && c.size+size > c.strategy.MaxNodeSize() {
		closed = append(closed, c.cut())
	}
	c.pending = append(c.pending, e)
	c.size += size
	boundary, err := c.strategy.Boundary(data)
	if err != nil {
		return nil, err
	}
	if (boundary && c.size >= c.strategy.MinNodeSize()) || c.size >= c.strategy.MaxNodeSize() {
		closed = append(closed, c.cut())
	}
	return closed, nil
}

// Flush closes the pending node, returning nil if nothing is pending.
func (c *Chunker[E]) Flush() []E {
	if len(c.pending) == 0 {
		return nil
	}
	return c.cut()
}

// Empty reports whether the chunker sits on a node boundary.
func (c *Chunker[E]) Empty() bool { return len(c.pending) == 0 }

func (c *Chunker[E]) cut() []E {
	n := c.pending
	c.pending = nil
	c.size = 0
	return n
}
