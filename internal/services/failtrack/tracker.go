package failtrack

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/foliosync/foliosync/internal/domain"
)

// State identifies the tracker's health state.
type State string

const (
	// StateHealthy means the last fetch succeeded.
	StateHealthy State = "healthy"
	// StateDegraded means fetches are failing but refreshes may continue.
	StateDegraded State = "degraded"
	// StateRateLimited means the upstream pushed back and refreshes are
	// blocked until the cooldown expires.
	StateRateLimited State = "rate_limited"
)

// Config tunes the tracker's policy windows.
type Config struct {
	MaxConsecutiveErrors int
	RateLimitCooldown    time.Duration
	StaleFailureWindow   time.Duration
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveErrors: 3,
		RateLimitCooldown:    60 * time.Second,
		StaleFailureWindow:   5 * time.Minute,
	}
}

// Tracker records fetch outcomes for one reconciliation session and gates
// automatic refresh. State transitions are explicit and serialized; the
// tracker is shared across all attempts of the session even when the
// underlying I/O overlaps.
type Tracker struct {
	mu sync.Mutex

	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	state             State
	consecutiveErrors int
	lastErrorAt       time.Time
	lastSuccessAt     time.Time
	rateLimitUntil    time.Time
}

// New creates a tracker starting in the healthy state.
func New(logger *zap.Logger, cfg Config) *Tracker {
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = DefaultConfig().MaxConsecutiveErrors
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = DefaultConfig().RateLimitCooldown
	}
	if cfg.StaleFailureWindow <= 0 {
		cfg.StaleFailureWindow = DefaultConfig().StaleFailureWindow
	}

	return &Tracker{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		state:  StateHealthy,
	}
}

// RecordSuccess resets the tracker to healthy.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateHealthy
	t.consecutiveErrors = 0
	t.rateLimitUntil = time.Time{}
	t.lastSuccessAt = t.now()
}

// RecordFailure transitions the tracker according to the failure kind. A
// rate-limit error starts the cooldown window regardless of the error
// counter; anything else degrades. A failure arriving after a long quiet
// period does not inherit old failure weight.
func (t *Tracker) RecordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	// stale-failure decay
	if !t.lastErrorAt.IsZero() && now.Sub(t.lastErrorAt) > t.cfg.StaleFailureWindow {
		t.consecutiveErrors = 0
	}

	t.consecutiveErrors++
	t.lastErrorAt = now

	if errors.Is(err, domain.ErrRateLimited) {
		t.state = StateRateLimited
		t.rateLimitUntil = now.Add(t.cfg.RateLimitCooldown)
		t.logger.Warn("entering rate-limit cooldown",
			zap.Time("until", t.rateLimitUntil),
			zap.Int("consecutive_errors", t.consecutiveErrors))
		return
	}

	t.state = StateDegraded
	t.logger.Warn("fetch failure recorded",
		zap.Int("consecutive_errors", t.consecutiveErrors),
		zap.Error(err))
}

// State returns the current state, resolving an expired cooldown.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Tracker) stateLocked() State {
	if t.state == StateRateLimited && !t.now().Before(t.rateLimitUntil) {
		if t.consecutiveErrors > 0 {
			return StateDegraded
		}
		return StateHealthy
	}
	return t.state
}

// AutoRefreshEligible reports whether an automatic refresh may run: the
// cooldown must have expired and the error counter must be under the cap.
func (t *Tracker) AutoRefreshEligible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimitActiveLocked() {
		return false
	}
	return t.consecutiveErrors < t.cfg.MaxConsecutiveErrors
}

// ManualRefreshAllowed reports whether a user-triggered refresh may run. It
// bypasses the error-counter gate but still respects an active cooldown.
func (t *Tracker) ManualRefreshAllowed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.rateLimitActiveLocked()
}

func (t *Tracker) rateLimitActiveLocked() bool {
	return t.state == StateRateLimited && t.now().Before(t.rateLimitUntil)
}

// ConsecutiveErrors returns the current failure streak.
func (t *Tracker) ConsecutiveErrors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutiveErrors
}

// RateLimitedUntil returns the cooldown deadline and whether one is active,
// so a UI can render a retry countdown.
func (t *Tracker) RateLimitedUntil() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.rateLimitActiveLocked() {
		return time.Time{}, false
	}
	return t.rateLimitUntil, true
}
