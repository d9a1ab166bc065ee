package ipfs

import (
	"context"
	"sync"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"
)

// LinkFunc returns the child links of a block that belong to the same graph.
type LinkFunc func(b blocks.Block) ([]cid.Cid, error)

// FetchGraph walks the graph below root breadth first and returns every
// distinct CID reached, root included. Each frontier is fetched concurrently.
func FetchGraph(ctx context.Context, bs Blockstore, root cid.Cid, links LinkFunc) ([]cid.Cid, error) {
	seen := map[cid.Cid]bool{root: true}
	ret := []cid.Cid{root}
	frontier := []cid.Cid{root}
	for len(frontier) > 0 {
		var (
			mu   sync.Mutex
			next []cid.Cid
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(16)
		for _, c := range frontier {
			c := c
			g.Go(func() error {
				b, err := bs.Get(gctx, c)
				if err != nil {
					return classify(err, c)
				}
				children, err := links(b)
				if err != nil {
					return Corrupt(err, c)
				}
				mu.Lock()
				defer mu.Unlock()
				for _, child := range children {
					if !seen[child] {
						seen[child] = true
						next = append(next, child)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		ret = append(ret, next...)
		frontier = next
	}
	return ret, nil
}
