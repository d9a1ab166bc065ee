package core

import "github.com/cockroachdb/errors"

var (
	// ErrIndexExists - duplicate index name err
	ErrIndexExists = errors.New("index already exists")
	// ErrConflict - the index moved while a write was in flight
	ErrConflict = errors.New("index was updated concurrently")
	// ErrWrongKind - ordered operation on a point index or the reverse
	ErrWrongKind = errors.New("index is of a different kind")
)

// IndexKind is the structure behind an index name.
type IndexKind int

const (
	OrderedKind IndexKind = iota + 1
	PointKind
)

func (k IndexKind) String() string {
	switch k {
	case OrderedKind:
		return "ordered"
	case PointKind:
		return "point"
	}
	return "unknown"
}
