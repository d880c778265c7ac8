// ABOUTME: database/sql implementation of storage.Store shared by both backends
// ABOUTME: Backend differences are confined to the Dialect (placeholders, schema)
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/harper/dmagent/internal/storage"
)

// Dialect captures what differs between SQL backends
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2...) instead of ?
	Numbered bool
	// Schema creates every table, idempotently
	Schema string
}

// Rebind rewrites ? placeholders into the dialect's style
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Option customises a Store
type Option func(*Store)

// WithClock overrides the time source used for row timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store implements storage.Store over a *sql.DB
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New wraps db. Call Init before use.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the schema and seeds the bot state singleton exactly once
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return wrap("init schema", err)
	}
	_, err := s.exec(ctx, `
		INSERT INTO bot_state (id, dms_sent_today, last_dm_date, account_created_date,
			consecutive_rejections, platform_session, updated_at)
		VALUES (1, 0, '', '', 0, '', ?)
		ON CONFLICT (id) DO NOTHING
	`, s.now().UTC())
	return wrap("seed bot state", err)
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the backend dialect
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

// returningInt runs an UPDATE ... RETURNING <int> and maps a missing row to ErrNotFound
func (s *Store) returningInt(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	err := s.queryRow(ctx, query, args...).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &storage.StoreError{Op: op, Err: storage.ErrNotFound}
	}
	if err != nil {
		return 0, wrap(op, err)
	}
	return n, nil
}

// execOne runs a single-row UPDATE and maps zero affected rows to ErrNotFound
func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return &storage.StoreError{Op: op, Err: storage.ErrNotFound}
	}
	return nil
}

// inTx runs fn in a transaction and commits only when fn succeeds. Errors
// from fn are wrapped as a StoreError for op.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		if storage.IsStoreError(err) {
			return err
		}
		return wrap(op, err)
	}
	return wrap(op, tx.Commit())
}

// txExecOne is execOne inside a transaction; zero affected rows is storage.ErrNotFound
func (s *Store) txExecOne(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storage.StoreError{Op: op, Err: err}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
