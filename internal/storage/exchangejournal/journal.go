// Package exchangejournal persists swap intents and completions so a ledger
// left half-written by a crashed or failed exchange is detected instead of
// silently diverging.
package exchangejournal

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/foliosync/foliosync/internal/domain"
)

const (
	defaultJournalDir   = "./wal/exchange"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	intentKeyPrefix     = "swap_intent_"
	completeKeyPrefix   = "swap_complete_"
)

// Record is one journaled swap.
type Record struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Debit     domain.SwapLeg `json:"debit"`
	Credit    domain.SwapLeg `json:"credit"`
	CreatedAt time.Time      `json:"created_at"`
}

// Journal is a WAL of swap intents and completions keyed by idempotency id.
type Journal struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// New initializes the journal under the provided directory.
func New(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init exchange journal WAL")
	}

	return &Journal{wal: wal}, nil
}

// RecordIntent journals a swap before the ledger write.
func (j *Journal) RecordIntent(rec Record) error {
	if j == nil || j.wal == nil {
		return errors.New("exchange journal is not initialized")
	}
	if rec.ID == "" {
		return errors.New("swap record id is required")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal swap intent")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, intentKeyPrefix+rec.ID, payload)
}

// RecordCompletion journals that the ledger write for the swap finished.
func (j *Journal) RecordCompletion(id string) error {
	if j == nil || j.wal == nil {
		return errors.New("exchange journal is not initialized")
	}
	if id == "" {
		return errors.New("swap record id is required")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, completeKeyPrefix+id, []byte(time.Now().UTC().Format(time.RFC3339Nano)))
}

// Incomplete returns journaled intents that never recorded a completion.
// A non-empty result after recovery means the ledger may be inconsistent and
// automatic exchanges must stay halted until resolved.
func (j *Journal) Incomplete() ([]Record, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("exchange journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	intents := make(map[string]Record)
	completed := make(map[string]struct{})

	for msg := range j.wal.Iterator() {
		switch {
		case strings.HasPrefix(msg.Key, intentKeyPrefix):
			var rec Record
			if err := json.Unmarshal(msg.Value, &rec); err != nil {
				return nil, errors.Wrap(err, "decode swap intent")
			}
			intents[rec.ID] = rec
		case strings.HasPrefix(msg.Key, completeKeyPrefix):
			completed[strings.TrimPrefix(msg.Key, completeKeyPrefix)] = struct{}{}
		}
	}

	var pending []Record
	for id, rec := range intents {
		if _, ok := completed[id]; !ok {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("exchange journal is not initialized")
	}
	return j.wal.Close()
}
