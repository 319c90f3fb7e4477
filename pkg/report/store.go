/*
Package report stores scenario run reports in a BoltDB file so that results
of previous runs can be listed and compared.
*/
package report

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/rpcprobe/pkg/scenario"
	"go.etcd.io/bbolt"
)

// Bucket is the BoltDB bucket holding all runs.
var Bucket = []byte("runs")

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Run is a report of a single harness run.
type Run struct {
	ID        uuid.UUID         `json:"id"`
	Started   time.Time         `json:"started"`
	Endpoint  string            `json:"endpoint"`
	Transport string            `json:"transport"`
	Parallel  bool              `json:"parallel"`
	Results   []scenario.Result `json:"results"`
}

// NewRun creates a new run report with a random ID.
func NewRun(started time.Time, endpoint, transport string, parallel bool, results []scenario.Result) *Run {
	return &Run{
		ID:        uuid.New(),
		Started:   started.UTC(),
		Endpoint:  endpoint,
		Transport: transport,
		Parallel:  parallel,
		Results:   results,
	}
}

// Passed returns true if all scenarios passed.
func (r *Run) Passed() bool {
	return scenario.Failed(r.Results) == 0
}

// Store is a BoltDB-backed run storage.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the report database at the given path.
func Open(path string) (*Store, error) {
	err := os.MkdirAll(filepath.Dir(path), os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("could not create dir for reports: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("can't open report database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(Bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create root bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// key orders runs by start time, ID makes it unique.
func key(r *Run) []byte {
	k := make([]byte, 8+len(r.ID))
	binary.BigEndian.PutUint64(k, uint64(r.Started.UnixNano()))
	copy(k[8:], r.ID[:])
	return k
}

// Save stores the run.
func (s *Store) Save(r *Run) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Bucket).Put(key(r), data)
	})
}

// List returns up to limit latest runs, newest first. Non-positive limit
// means all runs.
func (s *Store) List(limit int) ([]*Run, error) {
	var runs []*Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(Bucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) == limit {
				break
			}
			r := new(Run)
			if err := json.Unmarshal(v, r); err != nil {
				return fmt.Errorf("bad run %x: %w", k, err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}

// Get returns the run with the given ID.
func (s *Store) Get(id uuid.UUID) (*Run, error) {
	var run *Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(Bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) != 8+len(id) || uuid.UUID(k[8:]) != id {
				continue
			}
			run = new(Run)
			return json.Unmarshal(v, run)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	return run, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
