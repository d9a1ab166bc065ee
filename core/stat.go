package core

import (
	"fmt"
	"io"

	"github.com/OpenBazaar/openbazaar-index/codec"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Stat summarizes one index.
type Stat struct {
	Name   string
	Kind   IndexKind
	Handle cid.Cid
	Root   cid.Cid
	Config codec.Config
	// Branch levels above the leaves. Always zero for point indexes.
	Height int
	Count  int
	Nodes  int
}

// Print writes s in the layout used by the stat command.
func (s Stat) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "name:     %s\nkind:     %s\nhandle:   %s\nroot:     %s\nentries:  %d\nnodes:    %d\nheight:   %d\nchunking: factor %d, nodes %d..%d bytes, %s\n",
		s.Name, s.Kind, s.Handle, s.Root, s.Count, s.Nodes, s.Height,
		s.Config.ChunkingFactor, s.Config.MinNodeSize, s.Config.MaxNodeSize,
		multihash.Codes[s.Config.DigestFunction])
	return err
}
