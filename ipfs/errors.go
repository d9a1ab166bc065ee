package ipfs

import (
	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

var (
	// ErrNotFound is returned when a key is absent from an index or a
	// referenced block is missing from the block store.
	ErrNotFound = errors.New("not found")

	// ErrDecode marks a block whose bytes are not a well formed node, or
	// whose digest does not match the CID it was stored under.
	ErrDecode = errors.New("corrupt block")

	// ErrTransport marks any other block store failure.
	ErrTransport = errors.New("block store failure")
)

// ErrCorrupt is an alias of ErrDecode.
var ErrCorrupt = ErrDecode

// classify maps a block store error onto the package sentinels, keeping the
// original error and the CID in the message.
func classify(err error, c cid.Cid) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDecode), errors.Is(err, ErrTransport):
		return err
	case format.IsNotFound(err):
		return errors.Mark(errors.Wrapf(err, "block %s", c), ErrNotFound)
	default:
		return errors.Mark(errors.Wrapf(err, "block %s", c), ErrTransport)
	}
}

// Corrupt wraps err as a decode failure of the block c.
func Corrupt(err error, c cid.Cid) error {
	if errors.Is(err, ErrDecode) {
		return err
	}
	return errors.Mark(errors.Wrapf(err, "decode block %s", c), ErrDecode)
}
