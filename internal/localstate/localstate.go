// Package localstate provides a tiny BoltDB-backed marker of the
// CLI's own operational history, separate from the engine's
// authoritative Postgres checkpoints. It answers "when did this
// machine last run the engine, and against what" without a round
// trip to the database. The engine subcommand records a marker on
// each start; the select subcommand does not open it.
package localstate

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const runsBucket = "runs"

// RunMarker records the last resolved engine run for a given run key
// (typically the RPC URL, so switching networks is visible).
type RunMarker struct {
	DBURL         string    `json:"db_url"`
	StartBlock    uint64    `json:"start_block"`
	LastRunAt     time.Time `json:"last_run_at"`
	SchemaApplied bool      `json:"schema_applied"`
}

// Store persists RunMarker rows keyed by run key.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the local BoltDB file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordRun stores the marker for runKey, overwriting any prior entry.
func (s *Store) RecordRun(runKey string, marker RunMarker) error {
	marker.LastRunAt = time.Now()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		data, err := json.Marshal(marker)
		if err != nil {
			return fmt.Errorf("marshal run marker: %w", err)
		}
		return b.Put([]byte(runKey), data)
	})
}

// LastRun returns the marker for runKey, or nil if this machine has
// never recorded a run under that key.
func (s *Store) LastRun(runKey string) (*RunMarker, error) {
	var marker RunMarker
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		data := b.Get([]byte(runKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &marker)
	})
	if err != nil {
		return nil, fmt.Errorf("read run marker: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &marker, nil
}

// Close closes the underlying BoltDB file.
func (s *Store) Close() error {
	return s.db.Close()
}
