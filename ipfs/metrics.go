package ipfs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	"github.com/prometheus/client_golang/prometheus"
)

// MeteredBlockstore counts block store operations and their latency.
type MeteredBlockstore struct {
	Blockstore
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMeteredBlockstore registers the block store collectors with reg. When
// the collectors already exist in reg they are shared.
func NewMeteredBlockstore(bs Blockstore, reg prometheus.Registerer) (*MeteredBlockstore, error) {
	ops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "index",
		Subsystem: "blockstore",
		Name:      "operations_total",
		Help:      "Block store operations by type and result.",
	}, []string{"op", "result"}))
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "index",
		Subsystem: "blockstore",
		Name:      "operation_seconds",
		Help:      "Block store operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	return &MeteredBlockstore{Blockstore: bs, ops: ops, latency: latency}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register block store metrics")
	}
	return c, nil
}

func (s *MeteredBlockstore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	start := time.Now()
	b, err := s.Blockstore.Get(ctx, c)
	s.observe("get", start, classify(err, c))
	return b, err
}

func (s *MeteredBlockstore) Put(ctx context.Context, b blocks.Block) error {
	start := time.Now()
	err := s.Blockstore.Put(ctx, b)
	s.observe("put", start, err)
	return err
}

func (s *MeteredBlockstore) observe(op string, start time.Time, err error) {
	s.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	s.ops.WithLabelValues(op, result).Inc()
}
