package cascade_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/cascade"
	"github.com/trezcool/masomo-core/core/relation"
	"github.com/trezcool/masomo-core/core/school"
	"github.com/trezcool/masomo-core/storage/storetest"
	testutil "github.com/trezcool/masomo-core/tests"
)

var ctx = context.Background()

func seeded(t *testing.T, open func(t *testing.T) school.Store) school.Store {
	t.Helper()
	store := open(t)
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error { return storetest.Seed(ctx, tx) }))
	return store
}

func ids[T school.Entity](t *testing.T, store school.Store) []string {
	t.Helper()
	rows, err := school.List[T](ctx, store, nil)
	require.NoError(t, err)
	return school.IDs(rows)
}

func TestManager_deleteTeacherUser(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := b.Open(t)
			var (
				class1   school.ClassGroup
				s1, s2   school.Student
				subject1 school.Subject
				t1User   school.User
				t1       school.Teacher
			)
			require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
				class1 = testutil.Insert(t, tx, school.ClassGroup{Name: "10-A", Level: "10"})
				subject1 = testutil.Insert(t, tx, school.Subject{Name: "Math", Code: "MAT"})
				testutil.Link(t, tx, school.SubjectClasses, subject1.ID, class1.ID)
				_, s1 = testutil.CreateStudent(t, tx, "s1", class1.ID)
				_, s2 = testutil.CreateStudent(t, tx, "s2", class1.ID)
				t1User, t1 = testutil.CreateTeacher(t, tx, "t1", subject1.ID)
				return nil
			}))

			resolver := relation.NewResolver(testutil.NewLogger(t))
			mgr := cascade.NewManager(testutil.NewLogger(t))

			plan, err := mgr.Delete(ctx, store, school.RefOf(t1User))
			require.NoError(t, err)
			assert.Equal(t, []string{t1.ID}, plan.Deleted(school.KindTeacher))

			_, err = school.Get[school.Teacher](ctx, store, t1.ID)
			assert.True(t, core.IsNotFound(err), "teacher record: err = %v", err)

			g, err := resolver.Load(ctx, store)
			require.NoError(t, err)
			assert.Empty(t, g.ClassTeachers(class1.ID))
			assert.Equal(t, []string{class1.ID}, g.SubjectClasses(subject1.ID))
			assert.ElementsMatch(t, []string{s1.ID, s2.ID}, g.ClassRoster(class1.ID))
		})
	}
}

func TestManager_deleteClass(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := seeded(t, b.Open)
			mgr := cascade.NewManager(testutil.NewLogger(t))

			plan, err := mgr.Delete(ctx, store, school.Ref{Kind: school.KindClass, ID: "c-1"})
			require.NoError(t, err)
			assert.Equal(t, []school.Ref{
				{Kind: school.KindTimetable, ID: "tt-1"},
				{Kind: school.KindMessage, ID: "m-2"},
				{Kind: school.KindClass, ID: "c-1"},
			}, plan.Deletes)

			g, err := relation.NewResolver(testutil.NewLogger(t)).Load(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, []string{"c-2"}, g.SubjectClasses("s-1"))
			assert.Empty(t, g.SubjectClasses("s-2"))

			assert.Equal(t, []string{"c-2"}, ids[school.ClassGroup](t, store))
			assert.Empty(t, ids[school.TimetableEntry](t, store))
			assert.Equal(t, []string{"m-1"}, ids[school.Message](t, store))

			an, err := school.Get[school.Announcement](ctx, store, "an-1")
			require.NoError(t, err)
			assert.Equal(t, []string{"c-2"}, an.TargetIDs)

			st, err := school.Get[school.Student](ctx, store, "st-1")
			require.NoError(t, err)
			assert.Empty(t, st.ClassID)
			at, err := school.Get[school.Attendance](ctx, store, "at-1")
			require.NoError(t, err)
			assert.Empty(t, at.ClassID)
		})
	}
}

func TestManager_announcementKeptWithoutTargets(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := seeded(t, b.Open)
			mgr := cascade.NewManager(testutil.NewLogger(t))

			for _, id := range []string{"c-1", "c-2"} {
				_, err := mgr.Delete(ctx, store, school.Ref{Kind: school.KindClass, ID: id})
				require.NoError(t, err)
			}
			an, err := school.Get[school.Announcement](ctx, store, "an-1")
			require.NoError(t, err)
			assert.Empty(t, an.TargetIDs)
		})
	}
}

func TestManager_deleteSubject(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := seeded(t, b.Open)
			mgr := cascade.NewManager(testutil.NewLogger(t))

			_, err := mgr.Delete(ctx, store, school.Ref{Kind: school.KindSubject, ID: "s-1"})
			require.NoError(t, err)

			assert.Equal(t, []string{"s-2"}, ids[school.Subject](t, store))
			assert.Empty(t, ids[school.Attendance](t, store))
			assert.Empty(t, ids[school.Grade](t, store))
			assert.Empty(t, ids[school.Assignment](t, store))
			assert.Empty(t, ids[school.Submission](t, store))
			assert.Empty(t, ids[school.TimetableEntry](t, store))
			assert.Equal(t, []string{"an-1"}, ids[school.Announcement](t, store))

			teachers, err := store.Links(ctx, school.SubjectTeachers, school.Link{})
			require.NoError(t, err)
			assert.Equal(t, []school.Link{{SubjectID: "s-2", TargetID: "t-1"}}, teachers)
			classes, err := store.Links(ctx, school.SubjectClasses, school.Link{})
			require.NoError(t, err)
			assert.Equal(t, []school.Link{{SubjectID: "s-2", TargetID: "c-1"}}, classes)
		})
	}
}

func TestManager_deleteSubjectUntargetsAnnouncements(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := seeded(t, b.Open)
			_, err := store.Insert(ctx, school.Announcement{
				ID: "an-2", PostedBy: "u-teacher", Title: "Quiz", TargetGroup: school.TargetSubject, TargetIDs: []string{"s-1", "s-2"},
			})
			require.NoError(t, err)

			_, err = cascade.NewManager(testutil.NewLogger(t)).Delete(ctx, store, school.Ref{Kind: school.KindSubject, ID: "s-1"})
			require.NoError(t, err)

			an, err := school.Get[school.Announcement](ctx, store, "an-2")
			require.NoError(t, err)
			assert.Equal(t, []string{"s-2"}, an.TargetIDs)
		})
	}
}

func TestManager_deleteUser(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		wantDeletes []school.Ref
		check       func(t *testing.T, store school.Store)
	}{
		{
			name:   "teacher",
			userID: "u-teacher",
			wantDeletes: []school.Ref{
				{Kind: school.KindSubmission, ID: "sb-1"},
				{Kind: school.KindAttendance, ID: "at-1"},
				{Kind: school.KindGrade, ID: "g-1"},
				{Kind: school.KindTimetable, ID: "tt-1"},
				{Kind: school.KindAssignment, ID: "as-1"},
				{Kind: school.KindMessage, ID: "m-1"},
				{Kind: school.KindMessage, ID: "m-2"},
				{Kind: school.KindTeacher, ID: "t-1"},
				{Kind: school.KindUser, ID: "u-teacher"},
			},
			check: func(t *testing.T, store school.Store) {
				links, err := store.Links(ctx, school.SubjectTeachers, school.Link{})
				require.NoError(t, err)
				assert.Empty(t, links)
				classes, err := store.Links(ctx, school.SubjectClasses, school.Link{})
				require.NoError(t, err)
				assert.Len(t, classes, 3)
			},
		},
		{
			name:   "student",
			userID: "u-student",
			wantDeletes: []school.Ref{
				{Kind: school.KindSubmission, ID: "sb-1"},
				{Kind: school.KindAttendance, ID: "at-1"},
				{Kind: school.KindGrade, ID: "g-1"},
				{Kind: school.KindStudent, ID: "st-1"},
				{Kind: school.KindUser, ID: "u-student"},
			},
			check: func(t *testing.T, store school.Store) {
				parent, err := school.Get[school.User](ctx, store, "u-parent")
				require.NoError(t, err)
				assert.Empty(t, parent.ParentOfStudentIDs)
			},
		},
		{
			name:   "parent",
			userID: "u-parent",
			wantDeletes: []school.Ref{
				{Kind: school.KindMessage, ID: "m-1"},
				{Kind: school.KindUser, ID: "u-parent"},
			},
			check: func(t *testing.T, store school.Store) {
				st, err := school.Get[school.Student](ctx, store, "st-1")
				require.NoError(t, err)
				assert.Empty(t, st.ParentID)
				assert.Equal(t, "c-1", st.ClassID)
			},
		},
		{
			name:   "admin",
			userID: "u-admin",
			wantDeletes: []school.Ref{
				{Kind: school.KindAnnouncement, ID: "an-1"},
				{Kind: school.KindUser, ID: "u-admin"},
			},
		},
	}
	for _, b := range testutil.Backends {
		for _, tt := range tests {
			t.Run(b.Name+"/"+tt.name, func(t *testing.T) {
				store := seeded(t, b.Open)
				plan, err := cascade.NewManager(testutil.NewLogger(t)).Delete(ctx, store, school.Ref{Kind: school.KindUser, ID: tt.userID})
				require.NoError(t, err)
				assert.Equal(t, tt.wantDeletes, plan.Deletes)

				for _, ref := range tt.wantDeletes {
					_, err = store.Get(ctx, ref.Kind, ref.ID)
					assert.True(t, core.IsNotFound(err), "%s survived: err = %v", ref, err)
				}
				if tt.check != nil {
					tt.check(t, store)
				}
			})
		}
	}
}

func TestManager_deleteTeacherNullsGrader(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := seeded(t, b.Open)
			var other school.Teacher
			require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
				_, other = testutil.CreateTeacher(t, tx, "substitute", "s-1")
				return nil
			}))
			_, err := school.Patch(ctx, store, "sb-1", func(s *school.Submission) error {
				s.GradedBy = other.ID
				return nil
			})
			require.NoError(t, err)

			plan, err := cascade.NewManager(testutil.NewLogger(t)).Delete(ctx, store, school.Ref{Kind: school.KindTeacher, ID: other.ID})
			require.NoError(t, err)
			assert.Len(t, plan.Updates, 1)

			sb, err := school.Get[school.Submission](ctx, store, "sb-1")
			require.NoError(t, err)
			assert.Empty(t, sb.GradedBy)
			require.NotNil(t, sb.Grade)
		})
	}
}

func TestManager_deleteLeaf(t *testing.T) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			store := seeded(t, b.Open)
			mgr := cascade.NewManager(testutil.NewLogger(t))

			plan, err := mgr.Delete(ctx, store, school.Ref{Kind: school.KindGrade, ID: "g-1"})
			require.NoError(t, err)
			assert.True(t, plan.Empty())
			assert.Empty(t, ids[school.Grade](t, store))

			_, err = mgr.Delete(ctx, store, school.Ref{Kind: school.KindGrade, ID: "g-1"})
			assert.True(t, core.IsNotFound(err), "err = %v", err)
		})
	}
}

var errBoom = errors.New("boom")

// failingStore fails every deletion of kind.
type failingStore struct {
	school.Store
	kind school.Kind
}

func (s failingStore) RunInTx(ctx context.Context, fn func(tx school.Tx) error) error {
	return s.Store.RunInTx(ctx, func(tx school.Tx) error {
		return fn(failingTx{Tx: tx, kind: s.kind})
	})
}

type failingTx struct {
	school.Tx
	kind school.Kind
}

func (tx failingTx) Delete(ctx context.Context, kind school.Kind, id string) error {
	if kind == tx.kind {
		return errBoom
	}
	return tx.Tx.Delete(ctx, kind, id)
}

func TestManager_failedStepRollsBack(t *testing.T) {
	for _, b := range testutil.Backends {
		for _, kind := range []school.Kind{school.KindSubmission, school.KindTeacher, school.KindUser} {
			t.Run(b.Name+"/"+kind.String(), func(t *testing.T) {
				store := seeded(t, b.Open)
				_, err := cascade.NewManager(testutil.NewLogger(t)).Delete(ctx, failingStore{Store: store, kind: kind}, school.Ref{Kind: school.KindUser, ID: "u-teacher"})
				assert.ErrorIs(t, err, errBoom)

				var got storetest.Snapshot
				require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) (err error) {
					got, err = storetest.Take(ctx, tx)
					return err
				}))
				assert.Equal(t, storetest.Want(), got)
			})
		}
	}
}

func TestManager_backendsAgree(t *testing.T) {
	roots := []school.Ref{
		{Kind: school.KindClass, ID: "c-1"},
		{Kind: school.KindClass, ID: "c-2"},
		{Kind: school.KindSubject, ID: "s-1"},
		{Kind: school.KindUser, ID: "u-teacher"},
		{Kind: school.KindUser, ID: "u-student"},
		{Kind: school.KindUser, ID: "u-parent"},
		{Kind: school.KindAssignment, ID: "as-1"},
		{Kind: school.KindStudent, ID: "st-1"},
	}
	for _, root := range roots {
		t.Run(root.String(), func(t *testing.T) {
			var snaps []storetest.Snapshot
			for _, b := range testutil.Backends {
				store := seeded(t, b.Open)
				_, err := cascade.NewManager(testutil.NewLogger(t)).Delete(ctx, store, root)
				require.NoError(t, err, b.Name)

				var snap storetest.Snapshot
				require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) (err error) {
					snap, err = storetest.Take(ctx, tx)
					return err
				}))
				snaps = append(snaps, snap)
			}
			for i := 1; i < len(snaps); i++ {
				assert.Equal(t, snaps[0], snaps[i], "%s differs from %s", testutil.Backends[i].Name, testutil.Backends[0].Name)
			}
		})
	}
}
