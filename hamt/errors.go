package hamt

import (
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidKey is returned when a key is not exactly the configured
	// digest length.
	ErrInvalidKey = errors.New("key length does not match digest length")

	// ErrMaxDepth is returned when a lookup would need more key bytes than
	// the key has.
	ErrMaxDepth = errors.New("hamt exceeded max depth")

	ErrNotFound = ipfs.ErrNotFound
)
