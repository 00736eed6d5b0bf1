package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/foliosync/foliosync/internal/domain"
)

// MemoryStore is an in-process ledger used for demo mode and tests. It
// honors the same validation and atomicity contract as the redis store.
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]domain.Ledger
	subs    map[string][]chan domain.Ledger
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers: make(map[string]domain.Ledger),
		subs:    make(map[string][]chan domain.Ledger),
		now:     time.Now,
	}
}

// Read returns a copy of the user's ledger.
func (s *MemoryStore) Read(ctx context.Context, userID string) (domain.Ledger, error) {
	if userID == "" {
		return nil, domain.ErrNoSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLedger(s.ledgers[userID]), nil
}

// Write upserts a single entry.
func (s *MemoryStore) Write(ctx context.Context, userID string, entry domain.LedgerEntry) error {
	if userID == "" {
		return domain.ErrNoSession
	}
	if entry.Quantity.IsNegative() {
		return errors.Wrapf(domain.ErrInsufficientBalance, "write %s", entry.AssetID)
	}

	key := entry.Class.LedgerKey(entry.AssetID)
	entry.AssetID = key
	entry.LastUpdated = s.now()

	s.mu.Lock()
	if s.ledgers[userID] == nil {
		s.ledgers[userID] = make(domain.Ledger)
	}
	s.ledgers[userID][key] = entry
	s.mu.Unlock()

	s.publish(userID)
	return nil
}

// ApplySwap applies both legs under one lock, so the update is atomic with
// respect to every other access.
func (s *MemoryStore) ApplySwap(ctx context.Context, userID string, debit, credit domain.SwapLeg) error {
	if userID == "" {
		return domain.ErrNoSession
	}

	s.mu.Lock()
	current := s.ledgers[userID]
	if current == nil {
		current = make(domain.Ledger)
	}

	debited, credited, err := applyLegs(current, debit, credit, s.now())
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if s.ledgers[userID] == nil {
		s.ledgers[userID] = current
	}
	current[debited.AssetID] = debited
	current[credited.AssetID] = credited
	s.mu.Unlock()

	s.publish(userID)
	return nil
}

// Stream emits the ledger on every change.
func (s *MemoryStore) Stream(ctx context.Context, userID string) (<-chan domain.Ledger, error) {
	if userID == "" {
		return nil, domain.ErrNoSession
	}

	ch := make(chan domain.Ledger, 8)

	s.mu.Lock()
	s.subs[userID] = append(s.subs[userID], ch)
	initial := copyLedger(s.ledgers[userID])
	s.mu.Unlock()

	ch <- initial

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[userID]
		for i, sub := range subs {
			if sub == ch {
				s.subs[userID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

func (s *MemoryStore) publish(userID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := copyLedger(s.ledgers[userID])
	for _, ch := range s.subs[userID] {
		select {
		case ch <- snapshot:
		default:
			// drop when the subscriber is not keeping up
		}
	}
}

func copyLedger(l domain.Ledger) domain.Ledger {
	out := make(domain.Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
