package exchangejournal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosync/foliosync/internal/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func testRecord() Record {
	return Record{
		ID:     uuid.NewString(),
		UserID: "user-1",
		Debit: domain.SwapLeg{
			AssetID: "bitcoin",
			Class:   domain.ClassCrypto,
			Delta:   decimal.NewFromFloat(-0.1),
		},
		Credit: domain.SwapLeg{
			AssetID: "ethereum",
			Class:   domain.ClassCrypto,
			Delta:   decimal.NewFromInt(2),
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestCompletedSwapLeavesNothingPending(t *testing.T) {
	j := newTestJournal(t)

	rec := testRecord()
	require.NoError(t, j.RecordIntent(rec))
	require.NoError(t, j.RecordCompletion(rec.ID))

	pending, err := j.Incomplete()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestIntentWithoutCompletionIsPending(t *testing.T) {
	j := newTestJournal(t)

	done := testRecord()
	require.NoError(t, j.RecordIntent(done))
	require.NoError(t, j.RecordCompletion(done.ID))

	orphan := testRecord()
	require.NoError(t, j.RecordIntent(orphan))

	pending, err := j.Incomplete()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, orphan.ID, pending[0].ID)
	assert.Equal(t, "bitcoin", pending[0].Debit.AssetID)
}

func TestRecordIntentRequiresID(t *testing.T) {
	j := newTestJournal(t)

	rec := testRecord()
	rec.ID = ""
	assert.Error(t, j.RecordIntent(rec))
}
