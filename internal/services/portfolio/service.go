package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foliosync/foliosync/internal/auth"
	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/services/catalog"
	"github.com/foliosync/foliosync/internal/services/failtrack"
	"github.com/foliosync/foliosync/internal/services/reconciler"
	"github.com/foliosync/foliosync/internal/storage/ledger"
)

// quoteCatalog is the slice of the asset catalog the service consumes.
type quoteCatalog interface {
	Crypto(ctx context.Context) (domain.QuoteBatch, error)
	Stocks(ctx context.Context) (domain.QuoteBatch, error)
	NFTs(ctx context.Context) (domain.QuoteBatch, error)
}

// snapshotSink receives a snapshot per asset class after every completed
// refresh cycle.
type snapshotSink interface {
	Publish(domain.PortfolioSnapshot)
}

// Service drives the reconciliation loop for one user session: it fetches
// all asset classes jointly, reconciles them against the ledger once every
// fetch has landed, routes attempt outcomes through the failure tracker and
// publishes a typed snapshot per class.
type Service struct {
	catalog  quoteCatalog
	store    ledger.Store
	identity auth.Provider
	tracker  *failtrack.Tracker
	sink     snapshotSink
	logger   *zap.Logger

	mu         sync.Mutex
	generation uint64
	latest     map[domain.AssetClass]domain.PortfolioSnapshot
}

// New creates a portfolio service.
func New(logger *zap.Logger, catalog quoteCatalog, store ledger.Store, identity auth.Provider,
	tracker *failtrack.Tracker, sink snapshotSink) *Service {
	return &Service{
		catalog:  catalog,
		store:    store,
		identity: identity,
		tracker:  tracker,
		sink:     sink,
		logger:   logger,
		latest:   make(map[domain.AssetClass]domain.PortfolioSnapshot),
	}
}

// Refresh runs one full reconciliation pass: concurrent fetches for every
// asset class, jointly awaited, then reconciled against a fresh ledger read.
// A class whose fetch fails degrades to its bundled fallback batch instead
// of failing the cycle; healthy classes keep their live quotes. A refresh
// superseded by a newer one discards its results (last writer wins). The
// attempt outcome is recorded with the failure tracker exactly once.
func (s *Service) Refresh(ctx context.Context) error {
	userID, ok := s.identity.CurrentUserID()
	if !ok {
		return domain.ErrNoSession
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	fetches := []struct {
		class domain.AssetClass
		fetch func(context.Context) (domain.QuoteBatch, error)
	}{
		{domain.ClassCrypto, s.catalog.Crypto},
		{domain.ClassStock, s.catalog.Stocks},
		{domain.ClassNFT, s.catalog.NFTs},
	}

	batches := make([]domain.QuoteBatch, len(fetches))
	fetchErrs := make([]error, len(fetches))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fetches {
		g.Go(func() error {
			batch, err := f.fetch(gctx)
			if err != nil {
				s.logger.Warn("class fetch failed, serving fallback",
					zap.String("class", string(f.class)), zap.Error(err))
				fetchErrs[i] = err
				batch = catalog.Fallback(f.class)
			}
			batches[i] = batch
			return nil
		})
	}
	_ = g.Wait()

	// quotes (live or degraded) are complete; read the ledger once and
	// reconcile every class against the same view
	userLedger, err := s.store.Read(ctx, userID)
	if err != nil {
		s.tracker.RecordFailure(err)
		return errors.Wrap(err, "read ledger")
	}

	if fetchErr := dominantError(fetchErrs); fetchErr != nil {
		s.tracker.RecordFailure(fetchErr)
	} else {
		s.tracker.RecordSuccess()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// a newer refresh started while this one was in flight
		s.logger.Debug("discarding superseded refresh", zap.Uint64("generation", gen))
		return nil
	}

	for _, batch := range batches {
		snapshot := s.buildSnapshot(batch, userLedger)
		s.latest[batch.Class] = snapshot
		s.sink.Publish(snapshot)
	}

	return nil
}

// dominantError picks the fetch error to record for the cycle, preferring a
// rate limit so the cooldown window starts.
func dominantError(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, domain.ErrRateLimited) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// ManualRefresh is the user-triggered path. It bypasses the consecutive
// error gate but still honors an active rate-limit cooldown.
func (s *Service) ManualRefresh(ctx context.Context) error {
	if !s.tracker.ManualRefreshAllowed() {
		until, _ := s.tracker.RateLimitedUntil()
		return errors.Wrapf(domain.ErrRateLimited, "retry after %s", time.Until(until).Round(time.Second))
	}
	return s.Refresh(ctx)
}

// Run drives automatic refreshing until ctx is cancelled. Ticks where the
// tracker rules the session ineligible are skipped.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.tracker.AutoRefreshEligible() {
			if err := s.Refresh(ctx); err != nil {
				if errors.Is(err, domain.ErrNoSession) {
					return err
				}
				s.logger.Warn("refresh failed", zap.Error(err))
			}
		} else {
			s.logger.Debug("auto refresh skipped",
				zap.String("state", string(s.tracker.State())),
				zap.Int("consecutive_errors", s.tracker.ConsecutiveErrors()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Latest returns the most recent snapshot for the class.
func (s *Service) Latest(class domain.AssetClass) (domain.PortfolioSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.latest[class]
	return snap, ok
}

func (s *Service) buildSnapshot(batch domain.QuoteBatch, userLedger domain.Ledger) domain.PortfolioSnapshot {
	res := reconciler.Reconcile(batch, userLedger)

	snapshot := domain.PortfolioSnapshot{
		Timestamp:        time.Now().UTC(),
		Class:            batch.Class,
		Holdings:         res.Holdings,
		TotalValueUSD:    res.TotalValueUSD.String(),
		WeightedChange24: res.WeightedChange24.String(),
		IsFallback:       batch.IsFallback,
	}

	if until, active := s.tracker.RateLimitedUntil(); active {
		snapshot.RateLimitedUntil = &until
	}

	return snapshot
}
