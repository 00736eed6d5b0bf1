package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/foliosync/foliosync/internal/domain"
)

const (
	ledgerKeyPrefix  = "ledger:"
	swapMaxTxRetries = 5
	streamPollPeriod = 2 * time.Second
)

// RedisStore keeps each user's ledger in a redis hash: one field per
// normalized asset id, JSON-encoded entry. The hash is the user's document;
// ApplySwap updates both legs inside a single WATCH/MULTI transaction.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a ledger store over an existing redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func ledgerKey(userID string) string {
	return ledgerKeyPrefix + userID
}

// Read loads the user's full ledger.
func (s *RedisStore) Read(ctx context.Context, userID string) (domain.Ledger, error) {
	if userID == "" {
		return nil, domain.ErrNoSession
	}

	fields, err := s.client.HGetAll(ctx, ledgerKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read ledger for user %s", userID)
	}

	return decodeLedger(fields)
}

// Write upserts a single entry, rejecting negative quantities before any
// mutation.
func (s *RedisStore) Write(ctx context.Context, userID string, entry domain.LedgerEntry) error {
	if userID == "" {
		return domain.ErrNoSession
	}
	if entry.Quantity.IsNegative() {
		return errors.Wrapf(domain.ErrInsufficientBalance, "write %s", entry.AssetID)
	}

	key := entry.Class.LedgerKey(entry.AssetID)
	entry.AssetID = key
	entry.LastUpdated = s.now()

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "encode ledger entry %s", key)
	}

	if err := s.client.HSet(ctx, ledgerKey(userID), key, payload).Err(); err != nil {
		return errors.Wrapf(err, "write ledger entry %s for user %s", key, userID)
	}
	return nil
}

// ApplySwap debits one entry and credits another in a single transaction.
// The balance check runs against the watched read, so a concurrent write to
// the same ledger aborts and retries the transaction instead of executing
// against a stale balance.
func (s *RedisStore) ApplySwap(ctx context.Context, userID string, debit, credit domain.SwapLeg) error {
	if userID == "" {
		return domain.ErrNoSession
	}

	key := ledgerKey(userID)

	txn := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return errors.Wrap(err, "read ledger in swap transaction")
		}

		current, err := decodeLedger(fields)
		if err != nil {
			return err
		}

		debited, credited, err := applyLegs(current, debit, credit, s.now())
		if err != nil {
			return err
		}

		debitPayload, err := json.Marshal(debited)
		if err != nil {
			return errors.Wrap(err, "encode debit entry")
		}
		creditPayload, err := json.Marshal(credited)
		if err != nil {
			return errors.Wrap(err, "encode credit entry")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, debited.AssetID, debitPayload)
			pipe.HSet(ctx, key, credited.AssetID, creditPayload)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < swapMaxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	// TxFailedErr means the MULTI never ran, so nothing was written; this
	// is contention, not corruption, and the caller may retry
	return errors.Wrapf(domain.ErrSwapConflict,
		"swap transaction for user %s kept conflicting after %d attempts", userID, swapMaxTxRetries)
}

// Stream polls the ledger document and emits it whenever it changes. The
// channel closes when ctx is cancelled; callers resubscribe to restart.
func (s *RedisStore) Stream(ctx context.Context, userID string) (<-chan domain.Ledger, error) {
	if userID == "" {
		return nil, domain.ErrNoSession
	}

	out := make(chan domain.Ledger, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(streamPollPeriod)
		defer ticker.Stop()

		var lastDigest string
		for {
			fields, err := s.client.HGetAll(ctx, ledgerKey(userID)).Result()
			if err == nil {
				digest := digestFields(fields)
				if digest != lastDigest {
					if ledger, derr := decodeLedger(fields); derr == nil {
						lastDigest = digest
						select {
						case out <- ledger:
						case <-ctx.Done():
							return
						}
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out, nil
}

func decodeLedger(fields map[string]string) (domain.Ledger, error) {
	ledger := make(domain.Ledger, len(fields))
	for field, raw := range fields {
		var entry domain.LedgerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, errors.Wrapf(err, "decode ledger entry %s", field)
		}
		ledger[field] = entry
	}
	return ledger, nil
}

func digestFields(fields map[string]string) string {
	// cheap change detection over the serialized document; json.Marshal
	// sorts map keys so the digest is deterministic
	payload, _ := json.Marshal(fields)
	return string(payload)
}
