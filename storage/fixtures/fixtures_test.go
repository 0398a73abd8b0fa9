package fixtures_test

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core/school"
	"github.com/trezcool/masomo-core/storage/fixtures"
	"github.com/trezcool/masomo-core/storage/storetest"
	testutil "github.com/trezcool/masomo-core/tests"
)

var ctx = context.Background()

func seeded(t *testing.T, newStore func(t *testing.T) school.Store) school.Store {
	store := newStore(t)
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error { return storetest.Seed(ctx, tx) }))
	return store
}

func take(t *testing.T, store school.Store) (snap storetest.Snapshot) {
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) (err error) {
		snap, err = storetest.Take(ctx, tx)
		return err
	}))
	return snap
}

func TestLoad(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := b.Open(t)
			f, err := os.Open("testdata/school.yaml")
			require.NoError(t, err)
			defer f.Close()
			require.NoError(t, fixtures.Load(ctx, store, f))

			admin, err := school.Get[school.User](ctx, store, "u-admin")
			require.NoError(t, err)
			assert.NoError(t, admin.CheckPassword("s3cret!"), "password is hashed on load")
			assert.False(t, admin.CreatedAt.IsZero())

			subjects, err := school.List[school.Subject](ctx, store, nil)
			require.NoError(t, err)
			require.Len(t, subjects, 2)

			links, err := store.Links(ctx, school.SubjectTeachers, school.Link{})
			require.NoError(t, err)
			assert.Equal(t, []school.Link{{SubjectID: "s-math", TargetID: "t-kabila"}}, links)
			links, err = store.Links(ctx, school.SubjectClasses, school.Link{})
			require.NoError(t, err)
			assert.Equal(t, []school.Link{{SubjectID: "s-math", TargetID: "c-6a"}}, links)

			tt, err := school.List[school.TimetableEntry](ctx, store, nil)
			require.NoError(t, err)
			require.Len(t, tt, 1)
			assert.NotEmpty(t, tt[0].ID, "ids are assigned to rows without one")
			assert.Equal(t, "08:00", tt[0].StartTime)

			ans, err := school.List[school.Announcement](ctx, store, nil)
			require.NoError(t, err)
			require.Len(t, ans, 1)
			assert.Equal(t, school.TargetAll, ans[0].TargetGroup)
			assert.Equal(t, 2024, ans[0].CreatedAt.Year())
		})
	}
}

func TestLoad_errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "unknown field", yaml: "users:\n  - nickname: bob\n", wantErr: "field nickname not found"},
		{name: "unknown kind", yaml: "courses: []\n", wantErr: "field courses not found"},
		{name: "linked subject without id", yaml: "subjects:\n  - name: Art\n    classes: [c-1]\n", wantErr: "linked subjects need an id"},
		{name: "duplicate id", yaml: "classes:\n  - id: c-1\n  - id: c-1\n", wantErr: "inserting classes/c-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewFileStore(t)
			err := fixtures.Load(ctx, store, strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			classes, err := school.List[school.ClassGroup](ctx, store, nil)
			require.NoError(t, err)
			assert.Empty(t, classes, "nothing is written on failure")
		})
	}
}

func TestLoad_empty(t *testing.T) {
	store := testutil.NewFileStore(t)
	assert.NoError(t, fixtures.Load(ctx, store, strings.NewReader("")))
}

func TestDump(t *testing.T) {
	from := seeded(t, open(testutil.NewFileStore))

	var buf bytes.Buffer
	require.NoError(t, fixtures.Dump(ctx, from, &buf))
	assert.NotContains(t, buf.String(), "password")

	to := testutil.NewSQLiteStore(t)
	require.NoError(t, fixtures.Load(ctx, to, &buf))

	want, got := take(t, from), take(t, to)
	for _, snap := range []storetest.Snapshot{want, got} {
		for i, e := range snap.Rows[school.KindUser] {
			u := e.(school.User)
			u.PasswordHash = nil
			snap.Rows[school.KindUser][i] = u
		}
	}
	assert.Equal(t, want, got)
}

func TestCopy(t *testing.T) {
	tests := []struct {
		name     string
		from, to func(t *testing.T) school.Store
	}{
		{name: "file to sqlite", from: seededWith(testutil.NewFileStore), to: open(testutil.NewSQLiteStore)},
		{name: "sqlite to file", from: seededWith(testutil.NewSQLiteStore), to: open(testutil.NewFileStore)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := tt.from(t), tt.to(t)
			n, err := fixtures.Copy(ctx, from, to)
			require.NoError(t, err)

			want := storetest.Want()
			var total int
			for _, rows := range want.Rows {
				total += len(rows)
			}
			assert.Equal(t, total, n)
			assert.Equal(t, want, take(t, to))
		})
	}

	t.Run("target not empty", func(t *testing.T) {
		from := seeded(t, open(testutil.NewFileStore))
		to := seeded(t, open(testutil.NewFileStore))
		_, err := fixtures.Copy(ctx, from, to)
		assert.Error(t, err)
	})
}

func seededWith[S school.Store](fn func(t *testing.T) S) func(t *testing.T) school.Store {
	return func(t *testing.T) school.Store { return seeded(t, open(fn)) }
}

func open[S school.Store](fn func(t *testing.T) S) func(t *testing.T) school.Store {
	return func(t *testing.T) school.Store { return fn(t) }
}
