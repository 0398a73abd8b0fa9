package relation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/relation"
	"github.com/trezcool/masomo-core/core/school"
	"github.com/trezcool/masomo-core/tests"
)

type fixture struct {
	class1, class2, class3 school.ClassGroup
	math, physics          school.Subject
	t1, t2                 school.Teacher
	s1, s2, s3             school.Student
}

func seed(t *testing.T, tx school.Tx) fixture {
	var f fixture
	f.class1 = testutil.Insert(t, tx, school.ClassGroup{Name: "10-A"})
	f.class2 = testutil.Insert(t, tx, school.ClassGroup{Name: "10-B"})
	f.class3 = testutil.Insert(t, tx, school.ClassGroup{Name: "10-C"})
	f.math = testutil.Insert(t, tx, school.Subject{Name: "Math", Code: "MAT"})
	f.physics = testutil.Insert(t, tx, school.Subject{Name: "Physics", Code: "PHY"})
	_, f.t1 = testutil.CreateTeacher(t, tx, "T1")
	_, f.t2 = testutil.CreateTeacher(t, tx, "T2")
	_, f.s1 = testutil.CreateStudent(t, tx, "S1", f.class1.ID)
	_, f.s2 = testutil.CreateStudent(t, tx, "S2", f.class1.ID)
	_, f.s3 = testutil.CreateStudent(t, tx, "S3", f.class2.ID)
	return f
}

func strPtr(s string) *string        { return &s }
func idsPtr(ids ...string) *[]string { return &ids }

func TestResolver_linkSubjectRoundTrip(t *testing.T) {
	for _, backend := range testutil.Backends {
		t.Run(backend.Name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.Open(t)
			res := relation.NewResolver(testutil.NewLogger(t))

			err := store.RunInTx(ctx, func(tx school.Tx) error {
				f := seed(t, tx)
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t1.ID), idsPtr(f.class1.ID, f.class2.ID)))

				g, err := res.Load(ctx, tx)
				require.NoError(t, err)
				// symmetric
				assert.Equal(t, []string{f.math.ID}, g.TeacherSubjects(f.t1.ID))
				assert.Equal(t, f.t1.ID, g.SubjectTeacher(f.math.ID))
				assert.Equal(t, []string{f.class1.ID, f.class2.ID}, g.SubjectClasses(f.math.ID))
				assert.Equal(t, []string{f.t1.ID}, g.ClassTeachers(f.class1.ID))
				assert.Equal(t, []string{f.t1.ID}, g.ClassTeachers(f.class2.ID))
				assert.Equal(t, []string{f.s1.ID, f.s2.ID}, g.ClassRoster(f.class1.ID))

				// drop class2: t1 no longer reaches it
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, nil, idsPtr(f.class1.ID)))
				g, err = res.Load(ctx, tx)
				require.NoError(t, err)
				assert.Empty(t, g.ClassTeachers(f.class2.ID))
				assert.Equal(t, []string{f.t1.ID}, g.ClassTeachers(f.class1.ID))
				assert.Equal(t, f.t1.ID, g.SubjectTeacher(f.math.ID), "teacher side untouched")

				// unless another of t1's subjects is linked to class2
				require.NoError(t, res.LinkSubject(ctx, tx, f.physics.ID, strPtr(f.t1.ID), idsPtr(f.class2.ID)))
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, nil, idsPtr(f.class1.ID, f.class2.ID)))
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, nil, idsPtr(f.class1.ID)))
				g, err = res.Load(ctx, tx)
				require.NoError(t, err)
				assert.Equal(t, []string{f.t1.ID}, g.ClassTeachers(f.class2.ID))
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestResolver_teacherChangeRecomputesReachability(t *testing.T) {
	for _, backend := range testutil.Backends {
		t.Run(backend.Name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.Open(t)
			res := relation.NewResolver(testutil.NewLogger(t))

			require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
				f := seed(t, tx)
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t1.ID), idsPtr(f.class1.ID)))
				require.NoError(t, res.LinkSubject(ctx, tx, f.physics.ID, strPtr(f.t2.ID), idsPtr(f.class2.ID)))

				// math moves from t1 to t2
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t2.ID), nil))
				g, err := res.Load(ctx, tx)
				require.NoError(t, err)
				assert.Equal(t, []string{f.t2.ID}, g.ClassTeachers(f.class1.ID))
				assert.Empty(t, g.TeacherSubjects(f.t1.ID))
				assert.Empty(t, g.TeacherClasses(f.t1.ID))
				assert.ElementsMatch(t, []string{f.class1.ID, f.class2.ID}, g.TeacherClasses(f.t2.ID))

				// unassign
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(""), nil))
				g, err = res.Load(ctx, tx)
				require.NoError(t, err)
				assert.Empty(t, g.SubjectTeacher(f.math.ID))
				assert.Empty(t, g.ClassTeachers(f.class1.ID))
				return nil
			}))
		})
	}
}

func TestResolver_setTeacherSubjectsKeepsRank(t *testing.T) {
	for _, backend := range testutil.Backends {
		t.Run(backend.Name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.Open(t)
			res := relation.NewResolver(testutil.NewLogger(t))

			require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
				f := seed(t, tx)
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t1.ID), nil))
				require.NoError(t, res.SetTeacherSubjects(ctx, tx, f.t2.ID, []string{f.math.ID, f.physics.ID}))
				require.NoError(t, res.SetTeacherSubjects(ctx, tx, f.t1.ID, []string{f.math.ID, f.physics.ID}))

				g, err := res.Load(ctx, tx)
				require.NoError(t, err)
				assert.Equal(t, []string{f.t1.ID, f.t2.ID}, g.SubjectTeachers(f.math.ID), "multiplicity kept, t1 still first")
				assert.Equal(t, f.t1.ID, g.SubjectTeacher(f.math.ID))
				assert.Equal(t, f.t2.ID, g.SubjectTeacher(f.physics.ID))

				require.NoError(t, res.SetTeacherSubjects(ctx, tx, f.t1.ID, []string{f.physics.ID}))
				g, err = res.Load(ctx, tx)
				require.NoError(t, err)
				assert.Equal(t, []string{f.t2.ID}, g.SubjectTeachers(f.math.ID))
				assert.Equal(t, []string{f.t2.ID, f.t1.ID}, g.SubjectTeachers(f.physics.ID))
				return nil
			}))
		})
	}
}

func TestResolver_missingReferences(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFileStore(t)
	res := relation.NewResolver(testutil.NewLogger(t))

	var f fixture
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
		f = seed(t, tx)
		return nil
	}))

	tests := []struct {
		name   string
		fn     func(tx school.Tx) error
		wantFn func(error) bool
	}{
		{"missing teacher", func(tx school.Tx) error {
			return res.LinkSubject(ctx, tx, f.math.ID, strPtr("missing"), nil)
		}, core.IsValidation},
		{"missing class", func(tx school.Tx) error {
			return res.LinkSubject(ctx, tx, f.math.ID, nil, idsPtr(f.class1.ID, "missing"))
		}, core.IsValidation},
		{"missing subject", func(tx school.Tx) error {
			return res.LinkSubject(ctx, tx, "missing", strPtr(f.t1.ID), nil)
		}, core.IsNotFound},
		{"teacher subjects: missing subject", func(tx school.Tx) error {
			return res.SetTeacherSubjects(ctx, tx, f.t1.ID, []string{"missing"})
		}, core.IsValidation},
		{"teacher subjects: missing teacher", func(tx school.Tx) error {
			return res.SetTeacherSubjects(ctx, tx, "missing", nil)
		}, core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.RunInTx(ctx, tt.fn)
			assert.True(t, tt.wantFn(err), "err = %v", err)
		})
	}

	links, err := store.Links(ctx, school.SubjectClasses, school.Link{})
	require.NoError(t, err)
	assert.Empty(t, links, "failed writes leave no link")
}

func TestResolver_danglingLinks(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFileStore(t) // the relational schema cascades junction rows
	res := relation.NewResolver(testutil.NewLogger(t))

	var f fixture
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
		f = seed(t, tx)
		require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t1.ID), idsPtr(f.class1.ID)))
		// raw delete, bypassing the cascade
		return tx.Delete(ctx, school.KindTeacher, f.t1.ID)
	}))

	// reads omit the dangling row
	g, err := res.Load(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, g.SubjectTeacher(f.math.ID))
	assert.Empty(t, g.ClassTeachers(f.class1.ID))
	assert.Equal(t, []string{f.t1.ID}, g.Dangling(school.SubjectTeachers, f.math.ID))

	// a write keeping it fails
	err = store.RunInTx(ctx, func(tx school.Tx) error {
		return res.LinkSubject(ctx, tx, f.math.ID, nil, idsPtr(f.class2.ID))
	})
	assert.True(t, core.IsValidation(err), "err = %v", err)

	// a write replacing it repairs it
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
		return res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t2.ID), nil)
	}))
	links, err := store.Links(ctx, school.SubjectTeachers, school.Link{SubjectID: f.math.ID})
	require.NoError(t, err)
	assert.Equal(t, []school.Link{{SubjectID: f.math.ID, TargetID: f.t2.ID}}, links)
}

func TestGraph_hydrate(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFileStore(t)
	res := relation.NewResolver(testutil.NewLogger(t))

	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
		f := seed(t, tx)
		require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t1.ID), idsPtr(f.class1.ID)))
		g, err := res.Load(ctx, tx)
		require.NoError(t, err)

		sub := g.Subject(f.math)
		assert.Equal(t, f.t1.ID, sub.TeacherID)
		assert.Equal(t, []string{f.class1.ID}, sub.ClassIDs)

		classes := relation.Hydrate(g, []school.ClassGroup{f.class1, f.class3})
		assert.Equal(t, []string{f.t1.ID}, classes[0].TeacherIDs)
		assert.Equal(t, []string{f.s1.ID, f.s2.ID}, classes[0].StudentIDs)
		assert.Equal(t, []string{}, classes[1].TeacherIDs)
		assert.Equal(t, []string{}, classes[1].StudentIDs)

		tch := g.Hydrate(f.t1).(school.Teacher)
		assert.Equal(t, []string{f.math.ID}, tch.SubjectIDs)
		return nil
	}))
}

func TestResolver_viewers(t *testing.T) {
	for _, backend := range testutil.Backends {
		t.Run(backend.Name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.Open(t)
			res := relation.NewResolver(testutil.NewLogger(t))

			require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
				f := seed(t, tx)
				require.NoError(t, res.LinkSubject(ctx, tx, f.math.ID, strPtr(f.t1.ID), idsPtr(f.class1.ID, f.class2.ID)))
				as := testutil.Insert(t, tx, school.Assignment{SubjectID: f.math.ID, Title: "Fractions", CreatedBy: f.t1.ID})
				parent := testutil.CreateParent(t, tx, "P", f.s3)

				st, err := school.Get[school.Student](ctx, tx, f.s1.ID)
				require.NoError(t, err)
				sv, err := res.Viewer(ctx, tx, school.Actor{UserID: st.UserID, Role: school.RoleStudent})
				require.NoError(t, err)
				assert.Equal(t, f.s1.ID, sv.StudentID)
				assert.Equal(t, f.class1.ID, sv.ClassID)
				assert.Equal(t, []string{f.math.ID}, sv.ClassSubjectIDs.Sorted())

				tv, err := res.Viewer(ctx, tx, school.Actor{UserID: f.t1.UserID, Role: school.RoleTeacher})
				require.NoError(t, err)
				assert.Equal(t, f.t1.ID, tv.TeacherID)
				assert.True(t, tv.SubjectIDs.Has(f.math.ID))
				assert.ElementsMatch(t, []string{f.class1.ID, f.class2.ID}, tv.TeacherClassIDs.Sorted())
				assert.Equal(t, []string{as.ID}, tv.TeacherAssignmentIDs.Sorted())

				pv, err := res.Viewer(ctx, tx, parent.Actor())
				require.NoError(t, err)
				assert.Equal(t, []string{f.s3.ID}, pv.ChildIDs.Sorted())
				assert.Equal(t, []string{f.class2.ID}, pv.ChildClassIDs.Sorted())
				assert.Equal(t, []string{f.math.ID}, pv.ChildSubjectIDs.Sorted())

				av, err := res.Viewer(ctx, tx, school.System)
				require.NoError(t, err)
				assert.True(t, av.IsAdmin())

				vs, err := res.Viewers(ctx, tx, []school.User{parent})
				require.NoError(t, err)
				require.Len(t, vs, 1)
				assert.Equal(t, pv, vs[0])
				return nil
			}))
		})
	}
}
