// Package namesys maps human readable index names onto the CID of the
// index's current handle.
package namesys

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("namesys")

var (
	// ErrResolveFailed signals an error when attempting to resolve.
	ErrResolveFailed = errors.New("could not resolve name")

	// ErrNoResolver signals no resolver exists for the specified domain.
	ErrNoResolver = errors.New("no resolver for domain")
)

// NameSystem dispatches names to resolvers by their last dot separated
// label. Names without a known label go to the "local" resolver.
type NameSystem struct {
	resolvers map[string]Resolver
}

func NewNameSystem(resolvers []Resolver) (*NameSystem, error) {
	n := &NameSystem{
		resolvers: make(map[string]Resolver),
	}
	for _, r := range resolvers {
		for _, domain := range r.Domains() {
			if _, ok := n.resolvers[domain]; ok {
				return nil, errors.Newf("two resolvers for domain %q", domain)
			}
			n.resolvers[domain] = r
		}
	}
	return n, nil
}

// Resolve returns the handle CID name points at. A name that already is a
// CID resolves to itself.
func (n *NameSystem) Resolve(ctx context.Context, name string) (cid.Cid, error) {
	if c, err := cid.Decode(name); err == nil {
		return c, nil
	}

	split := strings.Split(name, ".")
	if r, ok := n.resolvers[split[len(split)-1]]; ok && len(split) > 1 {
		return r.Resolve(ctx, name)
	}
	if len(split) > 1 {
		if r, ok := n.resolvers["dns"]; ok {
			return r.Resolve(ctx, name)
		}
	}
	if r, ok := n.resolvers["local"]; ok {
		return r.Resolve(ctx, name)
	}
	return cid.Undef, errors.Wrapf(ErrNoResolver, "name %q", name)
}
