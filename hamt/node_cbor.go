package hamt

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Element map keys. Canonical DAG-CBOR orders map keys by length first, so
// "key" precedes "value".
var (
	keyLink   = []byte("Link")
	keyBucket = []byte("Bucket")
	keyKey    = []byte("key")
	keyValue  = []byte("value")
)

const maxKeyLength = 1 << 10

// MarshalCBOR writes the node as [bitmap, [element...]].
func (n *Node) MarshalCBOR(w io.Writer) error {
	scratch := make([]byte, 9)
	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajArray, 2); err != nil {
		return err
	}
	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajByteString, BitmapSize); err != nil {
		return err
	}
	if _, err := w.Write(n.Bitmap[:]); err != nil {
		return err
	}
	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajArray, uint64(len(n.Elements))); err != nil {
		return err
	}
	for i := range n.Elements {
		if err := n.Elements[i].MarshalCBOR(w); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) UnmarshalCBOR(br io.Reader) error {
	*n = Node{}
	scratch := make([]byte, 8)
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray || extra != 2 {
		return errors.New("hamt node should be a two element array")
	}
	maj, extra, err = cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajByteString || extra != BitmapSize {
		return errors.Newf("hamt bitmap should be %d bytes", BitmapSize)
	}
	if _, err := io.ReadFull(br, n.Bitmap[:]); err != nil {
		return err
	}
	maj, extra, err = cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return errors.New("hamt elements should be an array")
	}
	if int(extra) != n.population() {
		return errors.Newf("hamt node has %d elements for %d set bits", extra, n.population())
	}
	n.Elements = make([]Element, extra)
	for i := range n.Elements {
		if err := n.Elements[i].UnmarshalCBOR(br); err != nil {
			return err
		}
	}
	return nil
}

// MarshalCBOR writes {"Link": cid} or {"Bucket": [{"key": k, "value": v}...]}.
func (e *Element) MarshalCBOR(w io.Writer) error {
	if e.isLink() && len(e.Bucket) > 0 {
		return errors.New("hamt element cannot have both a link and a bucket")
	}
	scratch := make([]byte, 9)
	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajMap, 1); err != nil {
		return err
	}
	if e.isLink() {
		if err := writeText(scratch, w, keyLink); err != nil {
			return err
		}
		return cbg.WriteCidBuf(scratch, w, e.Link)
	}
	if err := writeText(scratch, w, keyBucket); err != nil {
		return err
	}
	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajArray, uint64(len(e.Bucket))); err != nil {
		return err
	}
	for _, kv := range e.Bucket {
		if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajMap, 2); err != nil {
			return err
		}
		if err := writeText(scratch, w, keyKey); err != nil {
			return err
		}
		if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajByteString, uint64(len(kv.Key))); err != nil {
			return err
		}
		if _, err := w.Write(kv.Key); err != nil {
			return err
		}
		if err := writeText(scratch, w, keyValue); err != nil {
			return err
		}
		if err := cbg.WriteCidBuf(scratch, w, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Element) UnmarshalCBOR(br io.Reader) error {
	*e = Element{}
	scratch := make([]byte, 8)
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajMap || extra != 1 {
		return errors.New("hamt element should be a single entry map")
	}
	name, err := readText(br, scratch)
	if err != nil {
		return err
	}
	switch {
	case bytes.Equal(name, keyLink):
		c, err := cbg.ReadCid(br)
		if err != nil {
			return err
		}
		e.Link = c
		return nil
	case bytes.Equal(name, keyBucket):
		maj, length, err := cbg.CborReadHeaderBuf(br, scratch)
		if err != nil {
			return err
		}
		if maj != cbg.MajArray {
			return errors.New("hamt bucket should be an array")
		}
		if length == 0 || length > 256 {
			return errors.Newf("hamt bucket of %d entries", length)
		}
		e.Bucket = make([]BucketEntry, length)
		for i := range e.Bucket {
			if err := readBucketEntry(br, scratch, &e.Bucket[i]); err != nil {
				return err
			}
			if i > 0 && bytes.Compare(e.Bucket[i-1].Key, e.Bucket[i].Key) >= 0 {
				return errors.New("hamt bucket keys out of order")
			}
		}
		return nil
	default:
		return errors.Newf("invalid hamt element key %q", name)
	}
}

func readBucketEntry(br io.Reader, scratch []byte, kv *BucketEntry) error {
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajMap || extra != 2 {
		return errors.New("hamt bucket entry should be a two entry map")
	}
	name, err := readText(br, scratch)
	if err != nil {
		return err
	}
	if !bytes.Equal(name, keyKey) {
		return errors.Newf("expected hamt bucket key, got %q", name)
	}
	maj, extra, err = cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return err
	}
	if maj != cbg.MajByteString {
		return errors.New("hamt key should be a byte string")
	}
	if extra > maxKeyLength {
		return errors.Newf("hamt key of %d bytes is too long", extra)
	}
	kv.Key = make([]byte, extra)
	if _, err := io.ReadFull(br, kv.Key); err != nil {
		return err
	}
	name, err = readText(br, scratch)
	if err != nil {
		return err
	}
	if !bytes.Equal(name, keyValue) {
		return errors.Newf("expected hamt bucket value, got %q", name)
	}
	kv.Value, err = cbg.ReadCid(br)
	return err
}

func writeText(scratch []byte, w io.Writer, s []byte) error {
	if err := cbg.WriteMajorTypeHeaderBuf(scratch, w, cbg.MajTextString, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

func readText(br io.Reader, scratch []byte) ([]byte, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajTextString {
		return nil, errors.New("expected text string map key")
	}
	if extra > 16 {
		return nil, errors.Newf("map key of %d bytes is too long", extra)
	}
	buf := make([]byte, extra)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
