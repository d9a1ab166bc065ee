package namesys

import (
	"context"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	isd "github.com/jbenet/go-is-domain"
)

const txtPrefix = "index="

type LookupTXTFunc func(name string) (txt []string, err error)

// DNSResolver implements a Resolver on DNS domains. A domain publishes an
// index with a TXT record of the form "index=<cid>".
type DNSResolver struct {
	lookupTXT LookupTXTFunc
}

// NewDNSResolver constructs a name resolver using DNS TXT records.
func NewDNSResolver() *DNSResolver {
	return &DNSResolver{lookupTXT: net.LookupTXT}
}

// Resolve implements Resolver.
func (r *DNSResolver) Resolve(ctx context.Context, name string) (cid.Cid, error) {
	return r.resolveOnce(ctx, name)
}

// Domains implements Resolver.
func (r *DNSResolver) Domains() []string {
	return []string{"dns"}
}

type lookupRes struct {
	c     cid.Cid
	error error
}

func (r *DNSResolver) resolveOnce(ctx context.Context, name string) (cid.Cid, error) {
	if !isd.IsDomain(name) {
		return cid.Undef, errors.Newf("%q is not a valid domain name", name)
	}

	rootChan := make(chan lookupRes, 1)
	go workDomain(r, name, rootChan)

	select {
	case res := <-rootChan:
		return res.c, res.error
	case <-ctx.Done():
		return cid.Undef, ctx.Err()
	}
}

func workDomain(r *DNSResolver, name string, res chan lookupRes) {
	txt, err := r.lookupTXT(name)
	if err != nil {
		res <- lookupRes{cid.Undef, err}
		return
	}
	for _, t := range txt {
		if c, err := parseEntry(t); err == nil {
			res <- lookupRes{c, nil}
			return
		}
	}
	res <- lookupRes{cid.Undef, errors.Wrapf(ErrResolveFailed, "no index record for %s", name)}
}

func parseEntry(txt string) (cid.Cid, error) {
	if !strings.HasPrefix(txt, txtPrefix) {
		return cid.Undef, errors.Newf("not an index record: %q", txt)
	}
	return cid.Decode(strings.TrimPrefix(txt, txtPrefix))
}
