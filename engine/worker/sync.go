package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gebv/checkout"
)

// Syncer pushes the unsynced orders of the local store to the backend.
type Syncer struct {
	backend checkout.Backend
	store   checkout.LocalStore
	l       *zap.Logger

	// one sync at a time
	mu sync.Mutex
}

func NewSyncer(backend checkout.Backend, store checkout.LocalStore) *Syncer {
	return &Syncer{
		backend: backend,
		store:   store,
		l:       zap.L().Named("sync"),
	}
}

// Sync pushes every unsynced order and removes the ones the backend acknowledged.
// Returns the number of removed orders.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := trace.StartSpan(ctx, "checkout.sync")
	defer span.End()

	orders, err := s.store.ListUnsyncedOrders(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "Failed list unsynced orders")
	}
	if len(orders) == 0 {
		return 0, nil
	}
	span.AddAttributes(trace.Int64Attribute("orders", int64(len(orders))))

	synced, err := s.backend.PushOrders(ctx, orders)
	if err != nil {
		return 0, errors.Wrap(err, "Failed push unsynced orders")
	}

	var n int
	var rmErr error
	for _, so := range synced {
		if so.UID == "" {
			continue
		}
		if err := s.store.RemoveUnsyncedOrder(ctx, so.UID); err != nil {
			rmErr = multierr.Append(rmErr, errors.Wrapf(err, "order %s", so.UID))
			continue
		}
		n++
	}
	s.l.Info("Unsynced orders pushed.", zap.Int("orders", len(orders)), zap.Int("synced", n))
	return n, rmErr
}

// BackgroundSync runs the sync in its own goroutine, detached from the caller.
type BackgroundSync struct {
	s       *Syncer
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewBackgroundSync(s *Syncer, timeout time.Duration) *BackgroundSync {
	return &BackgroundSync{s: s, timeout: timeout}
}

func (b *BackgroundSync) SyncUnsynced(_ context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if _, err := b.s.Sync(ctx); err != nil {
			b.s.l.Warn("Background sync failed.", zap.Error(err))
		}
	}()
}

// Wait blocks until the started syncs are done.
func (b *BackgroundSync) Wait() {
	b.wg.Wait()
}
