package codec

import "github.com/cockroachdb/errors"

// ErrInvalidConfig is returned when a tree configuration cannot produce
// well formed nodes.
var ErrInvalidConfig = errors.New("invalid tree configuration")
