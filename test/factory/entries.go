package factory

import (
	"fmt"
	"math/rand"

	"github.com/OpenBazaar/openbazaar-index/prolly"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// NewStringPairs returns n pairs "key-%06d" -> "value-%d" in key order.
func NewStringPairs(n int) []prolly.KV[string, string] {
	kvs := make([]prolly.KV[string, string], n)
	for i := range kvs {
		kvs[i] = prolly.KV[string, string]{
			Key:   fmt.Sprintf("key-%06d", i),
			Value: fmt.Sprintf("value-%d", i),
		}
	}
	return kvs
}

// Shuffle returns a copy of kvs in a random order fixed by seed.
func Shuffle[K, V any](kvs []prolly.KV[K, V], seed int64) []prolly.KV[K, V] {
	out := append([]prolly.KV[K, V](nil), kvs...)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// NewCid returns a raw sha2-256 CID of data.
func NewCid(data string) cid.Cid {
	h, err := multihash.Sum([]byte(data), multihash.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	return cid.NewCidV1(cid.Raw, h)
}

// NewCids returns n distinct CIDs.
func NewCids(n int) []cid.Cid {
	cids := make([]cid.Cid, n)
	for i := range cids {
		cids[i] = NewCid(fmt.Sprintf("block-%d", i))
	}
	return cids
}
