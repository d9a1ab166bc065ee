package namesys

import (
	"context"

	cid "github.com/ipfs/go-cid"
)

// A Resolver resolves names into handle CIDs. New name systems can be added
// by implementing it.
type Resolver interface {
	// Resolve a name into a handle CID
	Resolve(ctx context.Context, name string) (cid.Cid, error)

	// Returns a list of domains this resolver knows how to resolve
	Domains() []string
}

// A Publisher points names at new handles.
type Publisher interface {
	Publish(ctx context.Context, name string, c cid.Cid) error
}
