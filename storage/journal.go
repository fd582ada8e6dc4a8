package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"perpcore/core/events"
	"perpcore/core/types"
)

var journalBucket = []byte("events")

// JournalEntry is one audited event with its assigned id and wall-clock
// timestamp. Entries are stored in strict append order.
type JournalEntry struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// Journal is an append-only audit log of engine events backed by bbolt. It
// satisfies events.Emitter so it can be fanned out alongside metrics.
// Writes that fail are surfaced through Err rather than an error return,
// since the Emitter contract is fire-and-forget.
type Journal struct {
	db    *bolt.DB
	nowFn func() time.Time

	mu      sync.Mutex
	lastErr error
}

// OpenJournal creates or opens the audit journal at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(journalBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init journal: %w", err)
	}
	return &Journal{db: db, nowFn: time.Now}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SetNowFunc overrides the timestamp source. Primarily intended for tests.
func (j *Journal) SetNowFunc(now func() time.Time) {
	if now != nil {
		j.nowFn = now
	}
}

// Err returns the last append failure, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Emit implements events.Emitter by appending the event to the journal.
func (j *Journal) Emit(evt events.Event) {
	if evt == nil || evt.Event() == nil {
		return
	}
	if err := j.Append(evt.Event()); err != nil {
		j.mu.Lock()
		j.lastErr = err
		j.mu.Unlock()
	}
}

// Append writes one event to the journal and assigns it a sequence number
// and id.
func (j *Journal) Append(evt *types.Event) error {
	entry := JournalEntry{
		ID:         uuid.NewString(),
		Type:       evt.Type,
		Attributes: evt.Attributes,
		RecordedAt: j.nowFn().UTC(),
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(journalBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		entry.Sequence = seq
		raw, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, raw)
	})
}

// Replay streams every journal entry in append order. The callback may stop
// iteration by returning an error, which Replay passes through.
func (j *Journal) Replay(fn func(JournalEntry) error) error {
	return j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(journalBucket).ForEach(func(_, raw []byte) error {
			var entry JournalEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return err
			}
			return fn(entry)
		})
	})
}

// Recent returns up to limit entries from the tail of the journal, oldest
// first.
func (j *Journal) Recent(limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []JournalEntry
	err := j.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(journalBucket).Cursor()
		for k, raw := cursor.Last(); k != nil && len(out) < limit; k, raw = cursor.Prev() {
			var entry JournalEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return err
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, jj := 0, len(out)-1; i < jj; i, jj = i+1, jj-1 {
		out[i], out[jj] = out[jj], out[i]
	}
	return out, nil
}
