package failtrack

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/foliosync/foliosync/internal/domain"
)

func newTestTracker(cfg Config) (*Tracker, *time.Time) {
	t := New(zap.NewNop(), cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t.now = func() time.Time { return now }
	return t, &now
}

func TestStartsHealthyAndEligible(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())
	assert.Equal(t, StateHealthy, tr.State())
	assert.True(t, tr.AutoRefreshEligible())
	assert.True(t, tr.ManualRefreshAllowed())
}

func TestThreeFailuresBlockAutoRefresh(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	for i := 0; i < 3; i++ {
		tr.RecordFailure(domain.ErrTimeout)
	}

	assert.Equal(t, StateDegraded, tr.State())
	assert.False(t, tr.AutoRefreshEligible())
	// manual refresh bypasses the error gate
	assert.True(t, tr.ManualRefreshAllowed())
}

func TestSuccessResetsCounterAndEligibility(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	for i := 0; i < 3; i++ {
		tr.RecordFailure(domain.ErrNetwork)
	}
	assert.False(t, tr.AutoRefreshEligible())

	tr.RecordSuccess()
	assert.True(t, tr.AutoRefreshEligible())
	assert.Zero(t, tr.ConsecutiveErrors())
	assert.Equal(t, StateHealthy, tr.State())
}

func TestRateLimitBlocksRegardlessOfCounter(t *testing.T) {
	tr, now := newTestTracker(DefaultConfig())

	tr.RecordSuccess() // counter at zero
	tr.RecordFailure(errors.Wrap(domain.ErrRateLimited, "markets"))

	assert.Equal(t, StateRateLimited, tr.State())
	assert.False(t, tr.AutoRefreshEligible())
	assert.False(t, tr.ManualRefreshAllowed(), "manual refresh must respect active cooldown")

	until, active := tr.RateLimitedUntil()
	assert.True(t, active)
	assert.Equal(t, now.Add(60*time.Second), until)

	// cooldown expiry restores eligibility
	*now = now.Add(61 * time.Second)
	assert.True(t, tr.AutoRefreshEligible())
	assert.True(t, tr.ManualRefreshAllowed())
	_, active = tr.RateLimitedUntil()
	assert.False(t, active)
}

func TestStaleFailureDecay(t *testing.T) {
	tr, now := newTestTracker(DefaultConfig())

	tr.RecordFailure(domain.ErrTimeout)
	tr.RecordFailure(domain.ErrTimeout)
	assert.Equal(t, 2, tr.ConsecutiveErrors())

	// a failure after a long quiet period starts a fresh streak
	*now = now.Add(6 * time.Minute)
	tr.RecordFailure(domain.ErrTimeout)
	assert.Equal(t, 1, tr.ConsecutiveErrors())
	assert.True(t, tr.AutoRefreshEligible())
}

func TestRateLimitExpiryFallsBackToDegradedWhileErrorsRemain(t *testing.T) {
	tr, now := newTestTracker(DefaultConfig())

	tr.RecordFailure(domain.ErrRateLimited)
	assert.Equal(t, StateRateLimited, tr.State())

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, StateDegraded, tr.State())
}
