// Package catalog indexes finished driving sessions in a BadgerDB database.
//
// Each session is stored as a JSON value under "session:<id>". The catalog
// holds metadata only; frames and telemetry stay in the recorder's artifact
// files (and optionally in S3).
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dagpilot/internal/telemetry"
)

const prefixSession = "session:"

// ErrNotFound is returned when no session exists under the requested id.
var ErrNotFound = errors.New("session not found")

// Session is the catalog record of one finished session.
type Session struct {
	ID            string    `json:"id" yaml:"id"`
	Mode          string    `json:"mode" yaml:"mode"`
	Predictor     string    `json:"predictor" yaml:"predictor"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	EndedAt       time.Time `json:"ended_at" yaml:"ended_at"`
	Ticks         int64     `json:"ticks" yaml:"ticks"`
	Iterations    int64     `json:"iterations" yaml:"iterations"`
	ArtifactName  string    `json:"artifact" yaml:"artifact"`
	VideoPath     string    `json:"video_path" yaml:"video_path"`
	TelemetryPath string    `json:"telemetry_path" yaml:"telemetry_path"`
	Frames        int       `json:"frames" yaml:"frames"`
	Model         string    `json:"model,omitempty" yaml:"model,omitempty"`
	ExitError     string    `json:"exit_error,omitempty" yaml:"exit_error,omitempty"`
	Upload        *Upload   `json:"upload,omitempty" yaml:"upload,omitempty"`
}

// Upload records where a session's artifacts were copied.
type Upload struct {
	Bucket       string    `json:"bucket" yaml:"bucket"`
	VideoKey     string    `json:"video_key" yaml:"video_key"`
	TelemetryKey string    `json:"telemetry_key" yaml:"telemetry_key"`
	UploadedAt   time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

// Duration is the wall time between start and end.
func (s *Session) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Store is a BadgerDB-backed session catalog. Safe for concurrent use.
type Store struct {
	db *badgerdb.DB
}

// Open opens (or creates) the catalog database in dir.
func Open(dir string) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a catalog that lives only in memory.
func OpenInMemory() (*Store, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory catalog: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces a session record.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess.ID == "" {
		return errors.New("session id is required")
	}

	ctx, span := telemetry.StartCatalogPutSpan(ctx, sess.ID)
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(prefixSession+sess.ID), data)
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("put session %s: %w", sess.ID, err)
	}
	return nil
}

// Get returns the session stored under id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sess Session
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(prefixSession + id))
		if err == badgerdb.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// List returns every session, most recent first.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*Session
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSession)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var sess Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			result = append(result, &sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

// Delete removes a session record. Missing ids return ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		key := []byte(prefixSession + id)
		if _, err := txn.Get(key); err == badgerdb.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Healthcheck verifies the database can serve a read transaction.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badgerdb.Txn) error {
		return nil
	})
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}
