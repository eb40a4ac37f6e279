// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/metrics"
)

const (
	memoryPath         = ":memory:"
	defaultLockTimeout = 30 * time.Second
	defaultBusyTimeout = 5 * time.Second
)

var (
	// ErrStoreContention is returned when a caller could not acquire the store
	// gate within the configured lock timeout.
	ErrStoreContention = errors.New("timed out waiting for exclusive store access")
	// ErrStoreClosed is returned by WithStore after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// Querier is the capability handed to WithStore callbacks. It is satisfied by
// the single *sql.Conn owned by the Store.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures Open.
type Options struct {
	// Path is the SQLite database file, or ":memory:".
	Path string
	// LockTimeout bounds the wait for the store gate.
	LockTimeout time.Duration
	// BusyTimeout is handed to SQLite for file-level locking.
	BusyTimeout time.Duration
}

// Store serializes all access to one SQLite connection. Callers queue on the
// gate in arrival order; at most one callback runs at any instant.
type Store struct {
	db          *sql.DB
	conn        *sql.Conn
	gate        chan struct{}
	lockTimeout time.Duration
	log         *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
}

// Open opens the database, applies the embedded migrations and pins the single
// connection used by every later WithStore call.
func Open(ctx context.Context, opts Options, log *zap.SugaredLogger) (*Store, error) {
	if opts.Path == "" {
		opts.Path = memoryPath
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	log = log.Named("store")

	dsn := buildDSN(opts.Path, opts.BusyTimeout)
	log.Infow("Opening sqlite store", "path", opts.Path, "lockTimeout", opts.LockTimeout.String())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite3 database")
	}
	// The store permits exactly one live connection; keep it around forever so
	// in-memory databases survive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to connect to sqlite3 database")
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to acquire sqlite3 connection")
	}

	return &Store{
		db:          db,
		conn:        conn,
		gate:        make(chan struct{}, 1),
		lockTimeout: opts.LockTimeout,
		log:         log,
	}, nil
}

func buildDSN(path string, busyTimeout time.Duration) string {
	if path == memoryPath {
		return fmt.Sprintf("file::memory:?_busy_timeout=%d&_foreign_keys=on", busyTimeout.Milliseconds())
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL", path, busyTimeout.Milliseconds())
}

// WithStore runs fn with exclusive access to the connection. Backend errors
// returned by fn are passed through; the store does not retry.
func (s *Store) WithStore(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrStoreClosed
	}

	start := time.Now()
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	metrics.StoreGateWait.Observe(time.Since(start).Seconds())

	// Close may have won the race while we were queued.
	s.mu.RLock()
	closed = s.closed
	s.mu.RUnlock()
	if closed {
		return ErrStoreClosed
	}

	return fn(ctx, s.conn)
}

// Do is WithStore for callbacks that produce a value.
func Do[T any](ctx context.Context, s *Store, fn func(ctx context.Context, q Querier) (T, error)) (T, error) {
	var result T
	err := s.WithStore(ctx, func(ctx context.Context, q Querier) error {
		var err error
		result, err = fn(ctx, q)
		return err
	})
	return result, err
}

func (s *Store) acquire(ctx context.Context) error {
	// Fast path avoids allocating a timer when the gate is free.
	select {
	case s.gate <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case s.gate <- struct{}{}:
		return nil
	case <-timer.C:
		metrics.StoreContention.Inc()
		s.log.Warnw("Gave up waiting for store access", "lockTimeout", s.lockTimeout.String())
		return ErrStoreContention
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.gate
}

// Close waits for the in-flight caller, then closes the connection and the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.gate <- struct{}{}
	defer s.release()

	s.log.Info("Closing sqlite store")
	connErr := s.conn.Close()
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close sqlite3 database")
	}
	if connErr != nil {
		return errors.Wrap(connErr, "failed to close sqlite3 connection")
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	return Do(ctx, s, func(ctx context.Context, q Querier) (int64, error) {
		var v sql.NullInt64
		err := q.QueryRowContext(ctx, `SELECT MAX(version_id) FROM goose_db_version WHERE is_applied = 1`).Scan(&v)
		if err != nil {
			return 0, errors.Wrap(err, "failed to read schema version")
		}
		return v.Int64, nil
	})
}
