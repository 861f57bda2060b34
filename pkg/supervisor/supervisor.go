// Package supervisor owns the socket set and the rule store, and drives
// the three long-running tasks that move messages between them: the file
// watcher, the ingress pump, and the transform worker.
package supervisor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/allenjsomb/changer/pkg/audit"
	"github.com/allenjsomb/changer/pkg/metrics"
	"github.com/allenjsomb/changer/pkg/rulestore"
	"github.com/allenjsomb/changer/pkg/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ackSrc is the reserved source tag consumed as a control message by the
// ingress pump rather than republished.
const ackSrc = "changer.ack"

// Supervisor owns the socket topology and the rule store, and runs the
// watcher, ingress pump, and transform worker tasks against them.
type Supervisor struct {
	sockets *transport.Set
	store   *rulestore.Store
	ledger  *audit.Ledger
	metrics *metrics.Registry
	logger  *zap.Logger

	rulesPath string

	ingressCount   atomic.Uint64
	ingressDropped atomic.Uint64
	ingressSeq     atomic.Uint64

	transformCount   atomic.Uint64
	transformDropped atomic.Uint64
}

// New constructs a Supervisor over an already-wired socket set and rule
// store. ledger may be nil or a Ledger opened with an empty path, both of
// which record nothing; reg must be a non-nil Registry from metrics.New.
func New(sockets *transport.Set, store *rulestore.Store, ledger *audit.Ledger, reg *metrics.Registry, rulesPath string, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		sockets:   sockets,
		store:     store,
		ledger:    ledger,
		metrics:   reg,
		logger:    logger,
		rulesPath: rulesPath,
	}
}

// Start loads rules synchronously, then launches the watcher, ingress
// pump, and transform worker under ctx, joining all three. It returns
// once every task has exited. There is no graceful shutdown signal
// beyond canceling ctx; the individual tasks block on indefinite socket
// receives and may not observe cancellation until their next message.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.store.Load(); err != nil {
		s.logger.Warn("initial rule load failed, starting with an empty rule store", zap.Error(err))
	}
	s.metrics.RuleStoreSize.Set(float64(s.store.Size()))

	tasks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"watcher", s.runWatcher},
		{"ingress_pump", s.runIngressPump},
		{"transform_worker", s.runTransformWorker},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			err := task.run(gctx)
			if err != nil {
				s.logger.Error("supervisor task exited", zap.String("task", task.name), zap.Error(err))
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("supervisor task failed: %w", err)
	}
	return nil
}

// IngressCounts returns the accepted/dropped counters of the ingress
// pump, for tests and diagnostics.
func (s *Supervisor) IngressCounts() (count, dropped uint64) {
	return s.ingressCount.Load(), s.ingressDropped.Load()
}

// TransformCounts returns the accepted/dropped counters of the transform
// worker, for tests and diagnostics.
func (s *Supervisor) TransformCounts() (count, dropped uint64) {
	return s.transformCount.Load(), s.transformDropped.Load()
}
