package codec

import (
	"io"

	"github.com/cockroachdb/errors"
	cbg "github.com/whyrusleeping/cbor-gen"
)

var lengthBufConfig = []byte{134}

// MarshalCBOR writes the configuration as
// [min_size, max_size, cid_version, codec, digest_function, chunking_factor].
func (c *Config) MarshalCBOR(w io.Writer) error {
	if c == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if _, err := w.Write(lengthBufConfig); err != nil {
		return err
	}
	cw := cbg.NewCborWriter(w)
	for _, v := range c.fields() {
		if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, *v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) UnmarshalCBOR(r io.Reader) error {
	*c = Config{}
	cr := cbg.NewCborReader(r)
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return errors.New("cbor input should be of type array")
	}
	if extra != 6 {
		return errors.Newf("config has %d fields, expected 6", extra)
	}
	for _, v := range c.fields() {
		maj, extra, err := cr.ReadHeader()
		if err != nil {
			return err
		}
		if maj != cbg.MajUnsignedInt {
			return errors.New("wrong type for uint64 field")
		}
		*v = extra
	}
	return nil
}

func (c *Config) fields() []*uint64 {
	return []*uint64{
		&c.MinNodeSize,
		&c.MaxNodeSize,
		&c.CidVersion,
		&c.Codec,
		&c.DigestFunction,
		&c.ChunkingFactor,
	}
}
