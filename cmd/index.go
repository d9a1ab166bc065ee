package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/OpenBazaar/openbazaar-index/core"
	"github.com/OpenBazaar/openbazaar-index/hamt"
	"github.com/OpenBazaar/openbazaar-index/prolly"
	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
)

var errUsage = errors.New("wrong number of arguments")

// Ordered indexes created from the command line map strings to strings.
type stringIndex = core.OrderedIndex[string, string]

func openStringIndex(ctx context.Context, n *core.IndexNode, name string) (*stringIndex, error) {
	return core.OpenOrderedIndex[string, string](ctx, n, name)
}

func kindOf(ctx context.Context, n *core.IndexNode, name string) (core.IndexKind, error) {
	h, err := n.Handle(ctx, name)
	if err != nil {
		return 0, err
	}
	return n.Kind(ctx, h)
}

// pointKey accepts either a hex key of the index's key length or a CID,
// whose digest is used.
func pointKey(s string, keyLength int) ([]byte, error) {
	if key, err := hex.DecodeString(s); err == nil && len(key) == keyLength {
		return key, nil
	}
	if c, err := cid.Decode(s); err == nil {
		return hamt.KeyFromCid(c)
	}
	return nil, errors.Newf("%q is neither a CID nor a %d byte hex key", s, keyLength)
}

type Create struct {
	RepoOptions
	Point bool `short:"p" long:"point" description:"create a point index mapping digests to CIDs"`
}

func (x *Create) Execute(args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "create NAME")
	}
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		var hc cid.Cid
		if x.Point {
			idx, err := n.CreatePointIndex(ctx, args[0])
			if err != nil {
				return err
			}
			_, hc = idx.Handle()
		} else {
			idx, err := core.CreateOrderedIndex[string, string](ctx, n, args[0])
			if err != nil {
				return err
			}
			_, hc = idx.Handle()
		}
		fmt.Printf("%s %s\n", args[0], hc)
		return nil
	})
}

type Insert struct {
	RepoOptions
}

func (x *Insert) Execute(args []string) error {
	if len(args) < 2 {
		return errors.Wrap(errUsage, "insert NAME KEY VALUE [KEY VALUE...]")
	}
	name, pairs := args[0], args[1:]
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		kind, err := kindOf(ctx, n, name)
		if err != nil {
			return err
		}
		var root cid.Cid
		switch kind {
		case core.PointKind:
			root, err = insertPoint(ctx, n, name, pairs)
		default:
			root, err = insertOrdered(ctx, n, name, pairs)
		}
		if err != nil {
			return err
		}
		fmt.Println(root)
		return nil
	})
}

func insertOrdered(ctx context.Context, n *core.IndexNode, name string, pairs []string) (cid.Cid, error) {
	if len(pairs)%2 != 0 {
		return cid.Undef, errors.Wrap(errUsage, "keys and values must come in pairs")
	}
	idx, err := openStringIndex(ctx, n, name)
	if err != nil {
		return cid.Undef, err
	}
	kvs := make([]prolly.KV[string, string], 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		kvs = append(kvs, prolly.KV[string, string]{Key: pairs[i], Value: pairs[i+1]})
	}
	return idx.BatchInsert(ctx, kvs)
}

// insertPoint takes KEY CID pairs, or bare CIDs stored under their digest.
func insertPoint(ctx context.Context, n *core.IndexNode, name string, args []string) (cid.Cid, error) {
	idx, err := n.OpenPointIndex(ctx, name)
	if err != nil {
		return cid.Undef, err
	}
	var root cid.Cid
	for i := 0; i < len(args); i++ {
		if key, err := hex.DecodeString(args[i]); err == nil && len(key) == idx.KeyLength() {
			if i+1 == len(args) {
				return cid.Undef, errors.Wrapf(errUsage, "key %s has no value", args[i])
			}
			value, err := cid.Decode(args[i+1])
			if err != nil {
				return cid.Undef, errors.Wrapf(err, "value of %s", args[i])
			}
			if root, err = idx.Insert(ctx, key, value); err != nil {
				return cid.Undef, err
			}
			i++
			continue
		}
		c, err := cid.Decode(args[i])
		if err != nil {
			return cid.Undef, errors.Wrapf(err, "argument %q", args[i])
		}
		if root, err = idx.Add(ctx, c); err != nil {
			return cid.Undef, err
		}
	}
	return root, nil
}

type Get struct {
	RepoOptions
}

func (x *Get) Execute(args []string) error {
	if len(args) != 2 {
		return errors.Wrap(errUsage, "get NAME KEY")
	}
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		kind, err := kindOf(ctx, n, args[0])
		if err != nil {
			return err
		}
		if kind == core.PointKind {
			idx, err := n.OpenPointIndex(ctx, args[0])
			if err != nil {
				return err
			}
			key, err := pointKey(args[1], idx.KeyLength())
			if err != nil {
				return err
			}
			v, err := idx.Get(ctx, key)
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}
		idx, err := openStringIndex(ctx, n, args[0])
		if err != nil {
			return err
		}
		v, err := idx.Get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	})
}

type Remove struct {
	RepoOptions
}

func (x *Remove) Execute(args []string) error {
	if len(args) < 2 {
		return errors.Wrap(errUsage, "remove NAME KEY [KEY...]")
	}
	name, keys := args[0], args[1:]
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		kind, err := kindOf(ctx, n, name)
		if err != nil {
			return err
		}
		var root cid.Cid
		if kind == core.PointKind {
			idx, err := n.OpenPointIndex(ctx, name)
			if err != nil {
				return err
			}
			for _, k := range keys {
				key, err := pointKey(k, idx.KeyLength())
				if err != nil {
					return err
				}
				if root, err = idx.Remove(ctx, key); err != nil {
					return err
				}
			}
		} else {
			idx, err := openStringIndex(ctx, n, name)
			if err != nil {
				return err
			}
			if root, err = idx.Remove(ctx, keys...); err != nil {
				return err
			}
		}
		fmt.Println(root)
		return nil
	})
}

type Dump struct {
	RepoOptions
	Start string `short:"s" long:"start" description:"first key to print"`
	End   string `short:"e" long:"end" description:"stop before this key"`
}

func (x *Dump) Execute(args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "dump NAME")
	}
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		kind, err := kindOf(ctx, n, args[0])
		if err != nil {
			return err
		}
		if kind == core.PointKind {
			idx, err := n.OpenPointIndex(ctx, args[0])
			if err != nil {
				return err
			}
			return idx.ForEach(ctx, func(key []byte, value cid.Cid) error {
				_, err := fmt.Fprintf(os.Stdout, "%x\t%s\n", key, value)
				return err
			})
		}
		idx, err := openStringIndex(ctx, n, args[0])
		if err != nil {
			return err
		}
		var it *prolly.Iterator[string, string]
		switch {
		case x.End != "":
			it = idx.Range(ctx, x.Start, x.End)
		case x.Start != "":
			it = idx.From(ctx, x.Start)
		default:
			it = idx.Stream(ctx)
		}
		for it.Next() {
			fmt.Printf("%s\t%s\n", it.Key(), it.Value())
		}
		return it.Err()
	})
}

type Stat struct {
	RepoOptions
}

func (x *Stat) Execute(args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "stat NAME")
	}
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		kind, err := kindOf(ctx, n, args[0])
		if err != nil {
			return err
		}
		var st core.Stat
		if kind == core.PointKind {
			idx, err := n.OpenPointIndex(ctx, args[0])
			if err != nil {
				return err
			}
			st, err = idx.Stat(ctx)
			if err != nil {
				return err
			}
		} else {
			idx, err := openStringIndex(ctx, n, args[0])
			if err != nil {
				return err
			}
			st, err = idx.Stat(ctx)
			if err != nil {
				return err
			}
		}
		return st.Print(os.Stdout)
	})
}

type Names struct {
	RepoOptions
}

func (x *Names) Execute(args []string) error {
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		names, err := n.IndexNames(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			c, err := n.Names.Resolve(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", name, c)
		}
		return nil
	})
}

type Delete struct {
	RepoOptions
}

func (x *Delete) Execute(args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "delete NAME")
	}
	return x.withNode(func(ctx context.Context, n *core.IndexNode) error {
		return n.Delete(ctx, args[0])
	})
}
