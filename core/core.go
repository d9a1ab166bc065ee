package core

import (
	"context"
	"sync"

	"github.com/OpenBazaar/openbazaar-index/codec"
	"github.com/OpenBazaar/openbazaar-index/ipfs"
	"github.com/OpenBazaar/openbazaar-index/namesys"
	"github.com/OpenBazaar/openbazaar-index/prolly"
	"github.com/OpenBazaar/openbazaar-index/repo"
	"github.com/OpenBazaar/openbazaar-index/schema"
	"github.com/cockroachdb/errors"
	cid "github.com/ipfs/go-cid"
	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"
)

const VERSION = "0.1.0"

var log = logging.MustGetLogger("core")

// Node is the process wide index node, set by the command that started it.
var Node *IndexNode

// IndexNode owns the storage of a data directory and the named indexes
// published in it.
type IndexNode struct {
	// The path to the data directory in the file system.
	RepoPath string

	// Parsed config of the data directory
	Config *schema.Config

	// Content addressed storage for every index node
	Blockstore ipfs.Blockstore

	// Local names of the indexes, pointing at their handles
	Names *namesys.DatastoreResolver

	// Resolves local names, DNS names and raw handle CIDs
	NameSystem *namesys.NameSystem

	stores *repo.Stores

	// Serializes commits so each name moves from one handle to the next.
	commitLock sync.Mutex
}

// NewNode opens the initialized data directory at repoPath.
func NewNode(repoPath string, reg prometheus.Registerer) (*IndexNode, error) {
	cfg, err := repo.LoadConfig(repoPath)
	if err != nil {
		return nil, err
	}
	stores, err := repo.OpenStores(repoPath, cfg, reg)
	if err != nil {
		return nil, err
	}
	n, err := NewNodeWithStores(repoPath, cfg, stores)
	if err != nil {
		return nil, errors.CombineErrors(err, stores.Close())
	}
	return n, nil
}

// NewNodeWithStores builds a node over already opened stores.
func NewNodeWithStores(repoPath string, cfg *schema.Config, stores *repo.Stores) (*IndexNode, error) {
	names := namesys.NewDatastoreResolver(stores.Names)
	ns, err := namesys.NewNameSystem([]namesys.Resolver{names, namesys.NewDNSResolver()})
	if err != nil {
		return nil, err
	}
	return &IndexNode{
		RepoPath:   repoPath,
		Config:     cfg,
		Blockstore: stores.Blockstore,
		Names:      names,
		NameSystem: ns,
		stores:     stores,
	}, nil
}

func (n *IndexNode) Close() error {
	return n.stores.Close()
}

// TreeConfig returns the configuration new indexes are created with.
func (n *IndexNode) TreeConfig() (codec.Config, error) {
	return n.Config.Index.TreeConfig()
}

func (n *IndexNode) treeOptions() []prolly.Option {
	return []prolly.Option{prolly.UseConcurrency(n.Config.Executor.Concurrency)}
}

// resolve prefers local names, so a local name with dots in it is not sent
// to DNS.
func (n *IndexNode) resolve(ctx context.Context, name string) (cid.Cid, error) {
	c, err := n.Names.Resolve(ctx, name)
	if err == nil || !errors.Is(err, namesys.ErrResolveFailed) {
		return c, err
	}
	return n.NameSystem.Resolve(ctx, name)
}

// Handle resolves name and loads the handle it points at.
func (n *IndexNode) Handle(ctx context.Context, name string) (prolly.Handle, error) {
	c, err := n.resolve(ctx, name)
	if err != nil {
		return prolly.Handle{}, err
	}
	return prolly.LoadHandle(ctx, n.Blockstore, c)
}

// Kind reports which index structure the handle's root is.
func (n *IndexNode) Kind(ctx context.Context, h prolly.Handle) (IndexKind, error) {
	raw, err := ipfs.GetRaw(ctx, n.Blockstore, h.Root)
	if err != nil {
		return 0, err
	}
	switch {
	case len(raw) > 0 && raw[0] == 0x83:
		return OrderedKind, nil
	case len(raw) > 0 && raw[0] == 0x82:
		return PointKind, nil
	}
	return 0, ipfs.Corrupt(errors.New("root is neither an ordered nor a point index"), h.Root)
}

// create publishes a new handle under name, refusing to replace an
// existing one.
func (n *IndexNode) create(ctx context.Context, name string, h prolly.Handle) (cid.Cid, error) {
	n.commitLock.Lock()
	defer n.commitLock.Unlock()
	if _, err := n.Names.Resolve(ctx, name); err == nil {
		return cid.Undef, errors.Wrapf(ErrIndexExists, "%q", name)
	} else if !errors.Is(err, namesys.ErrResolveFailed) {
		return cid.Undef, err
	}
	return n.publish(ctx, name, h)
}

// commit moves name from the handle prev to next. It fails when name was
// moved by someone else in between.
func (n *IndexNode) commit(ctx context.Context, name string, prev cid.Cid, next prolly.Handle) (cid.Cid, error) {
	n.commitLock.Lock()
	defer n.commitLock.Unlock()
	current, err := n.Names.Resolve(ctx, name)
	if err != nil {
		return cid.Undef, err
	}
	if !current.Equals(prev) {
		return cid.Undef, errors.Wrapf(ErrConflict, "%q moved to %s", name, current)
	}
	return n.publish(ctx, name, next)
}

func (n *IndexNode) publish(ctx context.Context, name string, h prolly.Handle) (cid.Cid, error) {
	cfg, err := prolly.LoadConfig(ctx, n.Blockstore, h.Config)
	if err != nil {
		return cid.Undef, err
	}
	hc, err := prolly.SaveHandle(ctx, n.Blockstore, cfg.Prefix(), h)
	if err != nil {
		return cid.Undef, err
	}
	if err := n.Names.Publish(ctx, name, hc); err != nil {
		return cid.Undef, err
	}
	return hc, nil
}

// Delete unpublishes name. The blocks of the index stay in the block store.
func (n *IndexNode) Delete(ctx context.Context, name string) error {
	n.commitLock.Lock()
	defer n.commitLock.Unlock()
	if _, err := n.Names.Resolve(ctx, name); err != nil {
		return err
	}
	return n.Names.Unpublish(ctx, name)
}

// IndexNames lists the local index names.
func (n *IndexNode) IndexNames(ctx context.Context) ([]string, error) {
	return n.Names.Names(ctx)
}
