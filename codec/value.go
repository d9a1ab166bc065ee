package codec

import (
	"bytes"
	"cmp"

	"github.com/cockroachdb/errors"
	cbor "github.com/ipfs/go-ipld-cbor"
)

// Codec converts keys or values to and from their serialized form. Encode
// must be deterministic: equal values always produce equal bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(raw []byte) (T, error)
}

type cborCodec[T any] struct{}

// CBOR returns a codec that encodes values as canonical DAG-CBOR. CIDs inside
// values are written as links. Struct types must first be registered with
// go-ipld-cbor's RegisterCborType.
func CBOR[T any]() Codec[T] { return cborCodec[T]{} }

func (cborCodec[T]) Encode(v T) ([]byte, error) {
	raw, err := cbor.DumpObject(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode cbor")
	}
	return raw, nil
}

func (cborCodec[T]) Decode(raw []byte) (T, error) {
	var v T
	if err := cbor.DecodeInto(raw, &v); err != nil {
		return v, errors.Wrap(err, "decode cbor")
	}
	return v, nil
}

// Compare orders keys of any ordered type.
func Compare[K cmp.Ordered](a, b K) int { return cmp.Compare(a, b) }

// CompareBytes orders byte string keys lexicographically.
func CompareBytes(a, b []byte) int { return bytes.Compare(a, b) }
