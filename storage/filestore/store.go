// Package filestore implements school.Store on top of a single JSON snapshot file.
//
// The whole dataset is held in memory and the file is rewritten in full after every committed write.
// Writers inside one process are serialized by the store lock. Several processes sharing the same snapshot
// file are NOT coordinated: each one rewrites the file from its own in-memory state, so the last writer wins
// and earlier concurrent writes from another process are lost.
package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/masomo-core/core/school"
)

type (
	Store struct {
		mu      sync.RWMutex
		fs      afero.Fs
		path    string
		state   *state
		nowFunc func() time.Time
	}

	Option func(*Store)
)

var _ school.Store = (*Store)(nil) // interface compliance check

// WithFs makes the store read and write its snapshot on fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) { s.fs = fs }
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFunc = now }
}

// Open loads the snapshot at path; a missing file is an empty store.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		fs:      afero.NewOsFs(),
		path:    path,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := afero.ReadFile(s.fs, path)
	switch {
	case os.IsNotExist(err):
		s.state = newState()
	case err != nil:
		return nil, errors.Wrap(err, "reading snapshot")
	default:
		var doc document
		if err = json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrapf(err, "decoding snapshot %s", path)
		}
		if s.state, err = doc.state(); err != nil {
			return nil, errors.Wrapf(err, "loading snapshot %s", path)
		}
	}
	return s, nil
}

func (s *Store) Close() error { return nil }

// RunInTx runs fn against a private copy of the dataset. The copy replaces the dataset (and is written to
// disk) only if fn succeeds; otherwise every write made through tx is discarded.
func (s *Store) RunInTx(ctx context.Context, fn func(tx school.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{state: s.state.clone(), now: s.nowFunc}
	if err := fn(t); err != nil {
		return err
	}
	if !t.dirty {
		return nil
	}
	if err := s.persist(t.state); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

func (s *Store) persist(st *state) error {
	data, err := json.MarshalIndent(st.document(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err = s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "creating snapshot directory")
		}
	}
	tmp := s.path + ".tmp"
	if err = afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	if err = s.fs.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replacing snapshot")
	}
	return nil
}

func (s *Store) read(ctx context.Context, fn func(t *tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{state: s.state, now: s.nowFunc})
}

func (s *Store) Get(ctx context.Context, kind school.Kind, id string) (e school.Entity, err error) {
	err = s.read(ctx, func(t *tx) error {
		e, err = t.Get(ctx, kind, id)
		return err
	})
	return e, err
}

func (s *Store) List(ctx context.Context, kind school.Kind, filter school.Filter) (es []school.Entity, err error) {
	err = s.read(ctx, func(t *tx) error {
		es, err = t.List(ctx, kind, filter)
		return err
	})
	return es, err
}

func (s *Store) Links(ctx context.Context, j school.Junction, q school.Link) (links []school.Link, err error) {
	err = s.read(ctx, func(t *tx) error {
		links, err = t.Links(ctx, j, q)
		return err
	})
	return links, err
}

func (s *Store) Insert(ctx context.Context, e school.Entity) (res school.Entity, err error) {
	err = s.RunInTx(ctx, func(t school.Tx) error {
		res, err = t.Insert(ctx, e)
		return err
	})
	return res, err
}

func (s *Store) Update(ctx context.Context, e school.Entity) (res school.Entity, err error) {
	err = s.RunInTx(ctx, func(t school.Tx) error {
		res, err = t.Update(ctx, e)
		return err
	})
	return res, err
}

func (s *Store) Delete(ctx context.Context, kind school.Kind, id string) error {
	return s.RunInTx(ctx, func(t school.Tx) error {
		return t.Delete(ctx, kind, id)
	})
}

func (s *Store) Link(ctx context.Context, j school.Junction, links ...school.Link) error {
	return s.RunInTx(ctx, func(t school.Tx) error {
		return t.Link(ctx, j, links...)
	})
}

func (s *Store) Unlink(ctx context.Context, j school.Junction, q school.Link) (n int, err error) {
	err = s.RunInTx(ctx, func(t school.Tx) error {
		n, err = t.Unlink(ctx, j, q)
		return err
	})
	return n, err
}

func (s *Store) UpsertAttendance(ctx context.Context, a school.Attendance) (res school.Attendance, err error) {
	err = s.RunInTx(ctx, func(t school.Tx) error {
		res, err = t.UpsertAttendance(ctx, a)
		return err
	})
	return res, err
}
