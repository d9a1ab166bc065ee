package ipfs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"
)

var testPrefix = cid.Prefix{Version: 1, Codec: cid.DagCBOR, MhType: multihash.SHA2_256, MhLength: -1}

// text is a CBOR text string node.
type text string

func (s *text) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajTextString, uint64(len(*s))); err != nil {
		return err
	}
	_, err := io.WriteString(cw, string(*s))
	return err
}

func (s *text) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajTextString {
		return errors.New("expected text")
	}
	buf := make([]byte, extra)
	if _, err := io.ReadFull(cr, buf); err != nil {
		return err
	}
	*s = text(buf)
	return nil
}

func TestPutGetNode(t *testing.T) {
	ctx := context.Background()
	bs := NewMemoryBlockstore()
	in := text("hello")
	c, err := PutNode(ctx, bs, testPrefix, &in)
	require.NoError(t, err)

	var out text
	require.NoError(t, GetNode(ctx, bs, c, &out))
	require.Equal(t, in, out)

	has, err := BlockstoreHas(ctx, bs, c)
	require.NoError(t, err)
	require.True(t, has)
}

func TestGetMissingBlock(t *testing.T) {
	ctx := context.Background()
	bs := NewMemoryBlockstore()
	c, err := testPrefix.Sum([]byte("absent"))
	require.NoError(t, err)

	_, err = GetRaw(ctx, bs, c)
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), c.String())

	has, err := BlockstoreHas(ctx, bs, c)
	require.NoError(t, err)
	require.False(t, has)
}

func TestGetNodeRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	bs := NewMemoryBlockstore()

	c, err := PutRaw(ctx, bs, testPrefix, []byte{0x01})
	require.NoError(t, err)
	var out text
	require.ErrorIs(t, GetNode(ctx, bs, c, &out), ErrDecode)

	c, err = PutRaw(ctx, bs, testPrefix, []byte{0x61, 0x61, 0x00})
	require.NoError(t, err)
	err = GetNode(ctx, bs, c, &out)
	require.ErrorIs(t, err, ErrDecode)
	require.Contains(t, err.Error(), "trailing")
}

type failingBlockstore struct{}

func (failingBlockstore) Get(context.Context, cid.Cid) (blocks.Block, error) {
	return nil, errors.New("connection reset")
}

func (failingBlockstore) Put(context.Context, blocks.Block) error {
	return errors.New("connection reset")
}

func TestTransportErrors(t *testing.T) {
	ctx := context.Background()
	c, err := PutRaw(ctx, failingBlockstore{}, testPrefix, []byte{0x01})
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, cid.Undef, c)

	c, err = testPrefix.Sum([]byte{0x01})
	require.NoError(t, err)
	_, err = GetRaw(ctx, failingBlockstore{}, c)
	require.ErrorIs(t, err, ErrTransport)
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestNewBlockIsDeterministic(t *testing.T) {
	in := text("same")
	a, err := NewBlock(testPrefix, &in)
	require.NoError(t, err)
	b, err := NewBlock(testPrefix, &in)
	require.NoError(t, err)
	require.True(t, a.Cid().Equals(b.Cid()))
	require.True(t, bytes.Equal(a.RawData(), b.RawData()))
}

func TestFetchGraphMissingChild(t *testing.T) {
	ctx := context.Background()
	bs := NewMemoryBlockstore()
	missing, err := testPrefix.Sum([]byte("never stored"))
	require.NoError(t, err)
	root, err := PutRaw(ctx, bs, testPrefix, []byte("root"))
	require.NoError(t, err)

	links := func(b blocks.Block) ([]cid.Cid, error) {
		if b.Cid().Equals(root) {
			return []cid.Cid{missing}, nil
		}
		return nil, nil
	}
	graph, err := FetchGraph(ctx, bs, root, links)
	require.True(t, errors.Is(err, ErrNotFound))
	require.Nil(t, graph)
}
