// Package sqlstore implements school.Store on PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

type (
	Store struct {
		db *sqlx.DB
		*queries
		maxRetries uint64
		backoff    time.Duration
		log        core.Logger
	}

	Option func(*Store)
)

var _ school.Store = (*Store)(nil) // interface compliance check

// WithRetry sets how many times a transaction failing on a serialization error, a deadlock or a busy
// database is run again, and the initial backoff (doubled after each attempt).
func WithRetry(maxRetries uint64, backoff time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = maxRetries
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.queries.now = now }
}

func WithLogger(log core.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New returns a store over db, which must be migrated (see database.Migrate).
func New(db *sqlx.DB, opts ...Option) *Store {
	var placeholder sq.PlaceholderFormat = sq.Question
	if db.DriverName() == "postgres" {
		placeholder = sq.Dollar
	}
	s := &Store{
		db: db,
		queries: &queries{
			exec:    db,
			sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
			collate: collation(db.DriverName()),
			now:     time.Now,
		},
		maxRetries: 5,
		backoff:    20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

// RunInTx runs fn in a database transaction, committed only if fn succeeds. Transient failures run fn again
// from the start, so fn must not have side effects outside tx.
func (s *Store) RunInTx(ctx context.Context, fn func(tx school.Tx) error) error {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.runInTx(ctx, fn)
		if retryable(err) {
			if s.log != nil {
				s.log.Warn("retrying transaction", err)
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *Store) runInTx(ctx context.Context, fn func(tx school.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&queries{exec: tx, sb: s.sb, collate: s.collate, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// Single writes run in their own transaction, so that multi-statement writes (links) are atomic and
// transient failures are retried.

func (s *Store) Insert(ctx context.Context, e school.Entity) (res school.Entity, err error) {
	err = s.RunInTx(ctx, func(tx school.Tx) error {
		res, err = tx.Insert(ctx, e)
		return err
	})
	return res, err
}

func (s *Store) Update(ctx context.Context, e school.Entity) (res school.Entity, err error) {
	err = s.RunInTx(ctx, func(tx school.Tx) error {
		res, err = tx.Update(ctx, e)
		return err
	})
	return res, err
}

func (s *Store) Delete(ctx context.Context, kind school.Kind, id string) error {
	return s.RunInTx(ctx, func(tx school.Tx) error {
		return tx.Delete(ctx, kind, id)
	})
}

func (s *Store) Link(ctx context.Context, j school.Junction, links ...school.Link) error {
	return s.RunInTx(ctx, func(tx school.Tx) error {
		return tx.Link(ctx, j, links...)
	})
}

func (s *Store) Unlink(ctx context.Context, j school.Junction, q school.Link) (n int, err error) {
	err = s.RunInTx(ctx, func(tx school.Tx) error {
		n, err = tx.Unlink(ctx, j, q)
		return err
	})
	return n, err
}

func (s *Store) UpsertAttendance(ctx context.Context, a school.Attendance) (res school.Attendance, err error) {
	err = s.RunInTx(ctx, func(tx school.Tx) error {
		res, err = tx.UpsertAttendance(ctx, a)
		return err
	})
	return res, err
}
