package prolly

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// entry is one key of a node. Leaves carry the encoded value in vraw;
// branches carry the link to the child whose first key is key, with vraw
// holding the link's encoding.
type entry[K any] struct {
	key  K
	kraw []byte
	vraw []byte
	link cid.Cid
}

// data is the serialized (key, value) pair the chunking strategy hashes.
func (e *entry[K]) data() []byte {
	out := make([]byte, 0, 1+len(e.kraw)+len(e.vraw))
	out = append(out, 0x82) // array(2)
	out = append(out, e.kraw...)
	return append(out, e.vraw...)
}

type node[K any] struct {
	leaf    bool
	entries []entry[K]
}

// childIndex returns the branch entry responsible for key: the last entry
// whose key is not greater than it, or the first entry.
func (n *node[K]) childIndex(key K, compare func(a, b K) int) int {
	lo, hi := 0, len(n.entries)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if compare(n.entries[mid].key, key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	return lo - 1
}

// search returns the position of the first entry whose key is not less
// than key, and whether that entry equals it.
func (n *node[K]) search(key K, compare func(a, b K) int) (int, bool) {
	lo, hi := 0, len(n.entries)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if compare(n.entries[mid].key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(n.entries) && compare(n.entries[lo].key, key) == 0
}

func encodeLink(c cid.Cid) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := cbg.WriteCid(buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wireNode is the serialized form of a node:
// [is_leaf, [key...], [value or link...]].
type wireNode struct {
	Leaf   bool
	Keys   [][]byte
	Values [][]byte
}

const maxNodeEntries = 1 << 20

func (w *wireNode) MarshalCBOR(out io.Writer) error {
	if len(w.Keys) != len(w.Values) {
		return errors.Newf("node has %d keys and %d values", len(w.Keys), len(w.Values))
	}
	cw := cbg.NewCborWriter(out)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 3); err != nil {
		return err
	}
	if err := cbg.WriteBool(cw, w.Leaf); err != nil {
		return err
	}
	for _, items := range [][][]byte{w.Keys, w.Values} {
		if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(items))); err != nil {
			return err
		}
		for _, raw := range items {
			if _, err := cw.Write(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *wireNode) UnmarshalCBOR(r io.Reader) error {
	*w = wireNode{}
	cr := cbg.NewCborReader(r)
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajArray || extra != 3 {
		return errors.New("node should be a three element array")
	}
	maj, extra, err = cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajOther || (extra != 20 && extra != 21) {
		return errors.New("node leaf flag should be a boolean")
	}
	w.Leaf = extra == 21
	if w.Keys, err = readRawList(cr); err != nil {
		return errors.Wrap(err, "node keys")
	}
	if w.Values, err = readRawList(cr); err != nil {
		return errors.Wrap(err, "node values")
	}
	if len(w.Keys) != len(w.Values) {
		return errors.Newf("node has %d keys and %d values", len(w.Keys), len(w.Values))
	}
	return nil
}

func readRawList(cr *cbg.CborReader) ([][]byte, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajArray {
		return nil, errors.New("expected an array")
	}
	if extra > maxNodeEntries {
		return nil, errors.Newf("array of %d items is too long", extra)
	}
	out := make([][]byte, extra)
	for i := range out {
		var d cbg.Deferred
		if err := d.UnmarshalCBOR(cr); err != nil {
			return nil, err
		}
		out[i] = d.Raw
	}
	return out, nil
}
