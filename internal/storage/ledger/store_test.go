package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosync/foliosync/internal/domain"
)

const testUser = "user-1"

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

// both implementations satisfy the same contract
func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"redis":  newRedisTestStore(t),
		"memory": NewMemoryStore(),
	}
}

func btcEntry(qty float64) domain.LedgerEntry {
	return domain.LedgerEntry{
		AssetID:        "bitcoin",
		Class:          domain.ClassCrypto,
		Quantity:       decimal.NewFromFloat(qty),
		AverageCostUSD: decimal.NewFromInt(40000),
	}
}

func TestReadUnknownUserReturnsEmptyLedger(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ledger, err := store.Read(context.Background(), "nobody")
			require.NoError(t, err)
			assert.Empty(t, ledger)
		})
	}
}

func TestWriteAndRead(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Write(ctx, testUser, btcEntry(0.5)))

			ledger, err := store.Read(ctx, testUser)
			require.NoError(t, err)
			require.Contains(t, ledger, "bitcoin")
			assert.True(t, ledger["bitcoin"].Quantity.Equal(decimal.NewFromFloat(0.5)))
			assert.False(t, ledger["bitcoin"].LastUpdated.IsZero())
		})
	}
}

func TestWriteRejectsNegativeQuantity(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			entry := btcEntry(0.5)
			entry.Quantity = decimal.NewFromFloat(-0.1)

			err := store.Write(context.Background(), testUser, entry)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))

			ledger, rerr := store.Read(context.Background(), testUser)
			require.NoError(t, rerr)
			assert.Empty(t, ledger, "rejected write must not mutate the ledger")
		})
	}
}

func TestWriteNormalizesKeys(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			stock := domain.LedgerEntry{AssetID: "aapl", Class: domain.ClassStock, Quantity: decimal.NewFromInt(10)}
			require.NoError(t, store.Write(ctx, testUser, stock))

			crypto := domain.LedgerEntry{AssetID: "BiTcOiN", Class: domain.ClassCrypto, Quantity: decimal.NewFromInt(1)}
			require.NoError(t, store.Write(ctx, testUser, crypto))

			ledger, err := store.Read(ctx, testUser)
			require.NoError(t, err)
			assert.Contains(t, ledger, "AAPL")
			assert.Contains(t, ledger, "bitcoin")
		})
	}
}

func TestApplySwapMovesBothLegs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Write(ctx, testUser, btcEntry(0.5)))

			debit := domain.SwapLeg{
				AssetID:  "bitcoin",
				Class:    domain.ClassCrypto,
				Delta:    decimal.NewFromFloat(-0.1001),
				PriceUSD: decimal.NewFromInt(50000),
			}
			credit := domain.SwapLeg{
				AssetID:  "ethereum",
				Class:    domain.ClassCrypto,
				Delta:    decimal.NewFromInt(2),
				PriceUSD: decimal.NewFromInt(2500),
			}

			require.NoError(t, store.ApplySwap(ctx, testUser, debit, credit))

			ledger, err := store.Read(ctx, testUser)
			require.NoError(t, err)
			assert.True(t, ledger["bitcoin"].Quantity.Equal(decimal.NewFromFloat(0.3999)),
				"got %s", ledger["bitcoin"].Quantity)
			assert.True(t, ledger["ethereum"].Quantity.Equal(decimal.NewFromInt(2)))
			// fresh credit entry picks up the execution price as cost basis
			assert.True(t, ledger["ethereum"].AverageCostUSD.Equal(decimal.NewFromInt(2500)))
		})
	}
}

func TestApplySwapInsufficientBalanceMutatesNothing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Write(ctx, testUser, btcEntry(0.05)))

			debit := domain.SwapLeg{AssetID: "bitcoin", Class: domain.ClassCrypto, Delta: decimal.NewFromFloat(-0.1)}
			credit := domain.SwapLeg{AssetID: "ethereum", Class: domain.ClassCrypto, Delta: decimal.NewFromInt(2)}

			err := store.ApplySwap(ctx, testUser, debit, credit)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))

			ledger, rerr := store.Read(ctx, testUser)
			require.NoError(t, rerr)
			assert.True(t, ledger["bitcoin"].Quantity.Equal(decimal.NewFromFloat(0.05)))
			assert.NotContains(t, ledger, "ethereum")
		})
	}
}

func TestApplySwapUpdatesCostBasisOnExistingPosition(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	eth := domain.LedgerEntry{
		AssetID:        "ethereum",
		Class:          domain.ClassCrypto,
		Quantity:       decimal.NewFromInt(2),
		AverageCostUSD: decimal.NewFromInt(2000),
	}
	require.NoError(t, store.Write(ctx, testUser, eth))
	require.NoError(t, store.Write(ctx, testUser, btcEntry(1)))

	debit := domain.SwapLeg{AssetID: "bitcoin", Class: domain.ClassCrypto, Delta: decimal.NewFromFloat(-0.1), PriceUSD: decimal.NewFromInt(50000)}
	credit := domain.SwapLeg{AssetID: "ethereum", Class: domain.ClassCrypto, Delta: decimal.NewFromInt(2), PriceUSD: decimal.NewFromInt(3000)}
	require.NoError(t, store.ApplySwap(ctx, testUser, debit, credit))

	ledger, err := store.Read(ctx, testUser)
	require.NoError(t, err)
	// (2*2000 + 2*3000) / 4 = 2500
	assert.True(t, ledger["ethereum"].AverageCostUSD.Equal(decimal.NewFromInt(2500)),
		"got %s", ledger["ethereum"].AverageCostUSD)
}

func TestMemoryStreamEmitsOnChange(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := store.Stream(ctx, testUser)
	require.NoError(t, err)

	// initial snapshot
	first := <-stream
	assert.Empty(t, first)

	require.NoError(t, store.Write(context.Background(), testUser, btcEntry(1)))

	select {
	case update := <-stream:
		assert.Contains(t, update, "bitcoin")
	case <-time.After(time.Second):
		t.Fatal("expected a ledger update on the stream")
	}

	cancel()
	for range stream {
		// drain until close
	}
}
