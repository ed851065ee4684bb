// Package history keeps a journal of completed conversion runs in a
// small bolt database, so past runs can be reviewed from the CLI.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const runsBucket = "runs"

// Record is one completed run as persisted to the journal.
type Record struct {
	StartedAt   time.Time     `json:"started_at"`
	InputRoot   string        `json:"input_root"`
	OutputRoot  string        `json:"output_root"`
	TotalImages int           `json:"total_images"`
	Processed   int           `json:"processed"`
	OutputPages int           `json:"output_pages"`
	Failed      []string      `json:"failed,omitempty"`
	Workers     int           `json:"workers"`
	Batches     int           `json:"batches"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Store wraps the journal database.
type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// DefaultPath places the journal under the user cache directory, with
// a temp-dir fallback.
func DefaultPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "me2comic", "history.db")
}

// Open opens or creates the journal at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger.Named("history")}, nil
}

// Append persists one run record, keyed by its start time so the
// bucket iterates in chronological order.
func (s *Store) Append(rec Record) error {
	key := []byte(rec.StartedAt.UTC().Format(time.RFC3339Nano))
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put(key, data)
	})
	if err != nil {
		return err
	}
	return s.db.Sync()
}

// List returns up to limit records, most recent first. limit <= 0
// returns everything.
func (s *Store) List(limit int) ([]Record, error) {
	var records []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("skipping unreadable history entry", zap.ByteString("key", k), zap.Error(err))
				continue
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				return nil
			}
		}
		return nil
	})
	return records, err
}

// Prune deletes all but the most recent keep records.
func (s *Store) Prune(keep int) error {
	if keep < 0 {
		keep = 0
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		total := b.Stats().KeyN
		excess := total - keep
		if excess <= 0 {
			return nil
		}

		c := b.Cursor()
		var doomed [][]byte
		for k, _ := c.First(); k != nil && len(doomed) < excess; k, _ = c.Next() {
			doomed = append(doomed, append([]byte(nil), k...))
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the database file.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
