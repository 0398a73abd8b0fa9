// Package storetest is the behavioral contract every school.Store backend passes, plus the helpers used to
// check that two backends hold the same data.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

// Opener returns a new, empty store.
type Opener func(t *testing.T) school.Store

// Run runs the contract suite against the stores returned by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store school.Store)
	}{
		{"InsertGet", testInsertGet},
		{"ListOrder", testListOrder},
		{"Update", testUpdate},
		{"Delete", testDelete},
		{"DerivedFieldsNotPersisted", testDerivedFields},
		{"Links", testLinks},
		{"LinkMissingReference", testLinkMissingReference},
		{"DeleteSubjectDropsLinks", testDeleteSubjectDropsLinks},
		{"DeleteTargetDropsLinks", testDeleteTargetDropsLinks},
		{"UpsertAttendance", testUpsertAttendance},
		{"RollbackOnError", testRollback},
		{"ConcurrentInserts", testConcurrentInserts},
		{"ConcurrentUpserts", testConcurrentUpserts},
		{"Scenario", testScenario},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func testInsertGet(t *testing.T, store school.Store) {
	ctx := context.Background()
	before := time.Now().UTC().Add(-time.Second)

	e, err := store.Insert(ctx, school.User{Name: "Awe", Email: "awe@test.cd", Role: school.RoleAdmin})
	require.NoError(t, err)
	usr := e.(school.User)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.CreatedAt.After(before), "createdAt = %v", usr.CreatedAt)
	assert.Equal(t, time.UTC, usr.CreatedAt.Location())

	got, err := school.Get[school.User](ctx, store, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, usr, got)

	_, err = store.Insert(ctx, usr)
	assert.True(t, core.IsConflict(err), "duplicate insert: err = %v", err)

	_, err = store.Get(ctx, school.KindUser, "missing")
	assert.True(t, core.IsNotFound(err), "get missing: err = %v", err)
}

func testListOrder(t *testing.T, store school.Store) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		e, err := store.Insert(ctx, school.ClassGroup{Name: fmt.Sprintf("Grade %d", i), Level: "primary"})
		require.NoError(t, err)
		ids = append(ids, e.EntityID())
	}

	classes, err := school.List[school.ClassGroup](ctx, store, nil)
	require.NoError(t, err)
	assert.Equal(t, ids, school.IDs(classes), "ids are time-ordered")

	odd, err := school.List(ctx, store, func(c school.ClassGroup) bool { return c.Name == "Grade 1" || c.Name == "Grade 3" })
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[3]}, school.IDs(odd))
}

func testUpdate(t *testing.T, store school.Store) {
	ctx := context.Background()
	e, err := store.Insert(ctx, school.Subject{Name: "Maths", Code: "MAT"})
	require.NoError(t, err)

	sub, err := school.Patch(ctx, store, e.EntityID(), func(s *school.Subject) error {
		s.Name = "Mathematics"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", sub.Name)
	assert.Equal(t, "MAT", sub.Code)

	got, err := school.Get[school.Subject](ctx, store, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub, got)

	_, err = store.Update(ctx, school.Subject{ID: "missing", Name: "Nope"})
	assert.True(t, core.IsNotFound(err), "update missing: err = %v", err)
}

func testDelete(t *testing.T, store school.Store) {
	ctx := context.Background()
	e, err := store.Insert(ctx, school.ClassGroup{Name: "Grade 1"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, school.KindClass, e.EntityID()))
	_, err = store.Get(ctx, school.KindClass, e.EntityID())
	assert.True(t, core.IsNotFound(err), "get deleted: err = %v", err)

	err = store.Delete(ctx, school.KindClass, e.EntityID())
	assert.True(t, core.IsNotFound(err), "delete missing: err = %v", err)
}

func testDerivedFields(t *testing.T, store school.Store) {
	ctx := context.Background()
	e, err := store.Insert(ctx, school.Subject{Name: "Maths", TeacherID: "t1", TeacherIDs: []string{"t1"}, ClassIDs: []string{"c1"}})
	require.NoError(t, err)
	assert.Equal(t, school.Subject{ID: e.EntityID(), Name: "Maths"}, e)

	got, err := school.Get[school.Subject](ctx, store, e.EntityID())
	require.NoError(t, err)
	assert.Empty(t, got.TeacherID)
	assert.Empty(t, got.ClassIDs)

	links, err := store.Links(ctx, school.SubjectClasses, school.Link{})
	require.NoError(t, err)
	assert.Empty(t, links, "derived ids never create links")
}

func testLinks(t *testing.T, store school.Store) {
	ctx := context.Background()
	var s1, s2 school.Subject
	var t1, t2 school.Teacher
	var c1 school.ClassGroup
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
		s1 = mustInsert(t, tx, school.Subject{Name: "Maths"})
		s2 = mustInsert(t, tx, school.Subject{Name: "Physics"})
		u := mustInsert(t, tx, school.User{Name: "T", Email: "t@test.cd", Role: school.RoleTeacher})
		t2 = mustInsert(t, tx, school.Teacher{UserID: u.ID, Name: "T2"})
		t1 = mustInsert(t, tx, school.Teacher{UserID: u.ID, Name: "T1"})
		c1 = mustInsert(t, tx, school.ClassGroup{Name: "Grade 1"})
		return nil
	}))

	// t2 then t1: link order, not id order
	require.NoError(t, store.Link(ctx, school.SubjectTeachers,
		school.Link{SubjectID: s1.ID, TargetID: t2.ID},
		school.Link{SubjectID: s1.ID, TargetID: t1.ID},
		school.Link{SubjectID: s2.ID, TargetID: t1.ID},
	))
	require.NoError(t, store.Link(ctx, school.SubjectTeachers, school.Link{SubjectID: s1.ID, TargetID: t2.ID}), "idempotent")
	require.NoError(t, store.Link(ctx, school.SubjectClasses, school.Link{SubjectID: s1.ID, TargetID: c1.ID}))

	tests := []struct {
		name string
		j    school.Junction
		q    school.Link
		want []school.Link
	}{
		{"all", school.SubjectTeachers, school.Link{}, []school.Link{
			{SubjectID: s1.ID, TargetID: t2.ID}, {SubjectID: s1.ID, TargetID: t1.ID}, {SubjectID: s2.ID, TargetID: t1.ID},
		}},
		{"by subject", school.SubjectTeachers, school.Link{SubjectID: s2.ID}, []school.Link{{SubjectID: s2.ID, TargetID: t1.ID}}},
		{"by teacher", school.SubjectTeachers, school.Link{TargetID: t1.ID}, []school.Link{
			{SubjectID: s1.ID, TargetID: t1.ID}, {SubjectID: s2.ID, TargetID: t1.ID},
		}},
		{"exact", school.SubjectTeachers, school.Link{SubjectID: s2.ID, TargetID: t2.ID}, []school.Link{}},
		{"classes", school.SubjectClasses, school.Link{}, []school.Link{{SubjectID: s1.ID, TargetID: c1.ID}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Links(ctx, tt.j, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	n, err := store.Unlink(ctx, school.SubjectTeachers, school.Link{TargetID: t1.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, err := store.Links(ctx, school.SubjectTeachers, school.Link{})
	require.NoError(t, err)
	assert.Equal(t, []school.Link{{SubjectID: s1.ID, TargetID: t2.ID}}, got)

	// a re-linked row goes to the end of the order
	require.NoError(t, store.Link(ctx, school.SubjectTeachers, school.Link{SubjectID: s1.ID, TargetID: t1.ID}))
	got, err = store.Links(ctx, school.SubjectTeachers, school.Link{SubjectID: s1.ID})
	require.NoError(t, err)
	assert.Equal(t, []school.Link{{SubjectID: s1.ID, TargetID: t2.ID}, {SubjectID: s1.ID, TargetID: t1.ID}}, got)
}

func testLinkMissingReference(t *testing.T, store school.Store) {
	ctx := context.Background()
	e, err := store.Insert(ctx, school.Subject{Name: "Maths"})
	require.NoError(t, err)

	err = store.Link(ctx, school.SubjectClasses, school.Link{SubjectID: e.EntityID(), TargetID: "missing"})
	assert.True(t, core.IsValidation(err), "missing class: err = %v", err)
	err = store.Link(ctx, school.SubjectTeachers, school.Link{SubjectID: "missing", TargetID: "missing"})
	assert.True(t, core.IsValidation(err), "missing subject: err = %v", err)
}

func testDeleteSubjectDropsLinks(t *testing.T, store school.Store) {
	ctx := context.Background()
	var sub school.Subject
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
		sub = mustInsert(t, tx, school.Subject{Name: "Maths"})
		c := mustInsert(t, tx, school.ClassGroup{Name: "Grade 1"})
		return tx.Link(ctx, school.SubjectClasses, school.Link{SubjectID: sub.ID, TargetID: c.ID})
	}))
	require.NoError(t, store.Delete(ctx, school.KindSubject, sub.ID))

	links, err := store.Links(ctx, school.SubjectClasses, school.Link{})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func testDeleteTargetDropsLinks(t *testing.T, store school.Store) {
	ctx := context.Background()
	var sub school.Subject
	var t1, t2 school.Teacher
	var c1, c2 school.ClassGroup
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error {
		sub = mustInsert(t, tx, school.Subject{Name: "Maths"})
		u := mustInsert(t, tx, school.User{Name: "T", Email: "t@test.cd", Role: school.RoleTeacher})
		t1 = mustInsert(t, tx, school.Teacher{UserID: u.ID, Name: "T1"})
		t2 = mustInsert(t, tx, school.Teacher{UserID: u.ID, Name: "T2"})
		c1 = mustInsert(t, tx, school.ClassGroup{Name: "Grade 1"})
		c2 = mustInsert(t, tx, school.ClassGroup{Name: "Grade 2"})
		if err := tx.Link(ctx, school.SubjectTeachers,
			school.Link{SubjectID: sub.ID, TargetID: t1.ID}, school.Link{SubjectID: sub.ID, TargetID: t2.ID}); err != nil {
			return err
		}
		return tx.Link(ctx, school.SubjectClasses, school.Link{SubjectID: sub.ID, TargetID: c1.ID})
	}))

	require.NoError(t, store.Delete(ctx, school.KindTeacher, t1.ID))
	require.NoError(t, store.Delete(ctx, school.KindClass, c1.ID))

	teachers, err := store.Links(ctx, school.SubjectTeachers, school.Link{})
	require.NoError(t, err)
	assert.Equal(t, []school.Link{{SubjectID: sub.ID, TargetID: t2.ID}}, teachers)
	classes, err := store.Links(ctx, school.SubjectClasses, school.Link{})
	require.NoError(t, err)
	assert.Empty(t, classes)

	// the subject can be linked again once its old class is gone
	require.NoError(t, store.Link(ctx, school.SubjectClasses, school.Link{SubjectID: sub.ID, TargetID: c2.ID}))
	classes, err = store.Links(ctx, school.SubjectClasses, school.Link{})
	require.NoError(t, err)
	assert.Equal(t, []school.Link{{SubjectID: sub.ID, TargetID: c2.ID}}, classes)
}

func testUpsertAttendance(t *testing.T, store school.Store) {
	ctx := context.Background()
	ref := seedAttendanceRefs(t, store)

	first, err := store.UpsertAttendance(ctx, school.Attendance{
		StudentID: ref.student, SubjectID: ref.subject, ClassID: ref.class, Date: "2024-03-04",
		Status: school.StatusPresent, MarkedBy: ref.teacher,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := store.UpsertAttendance(ctx, school.Attendance{
		StudentID: ref.student, SubjectID: ref.subject, ClassID: ref.class, Date: "2024-03-04",
		Status: school.StatusLate, MarkedBy: ref.teacher,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := store.UpsertAttendance(ctx, school.Attendance{
		StudentID: ref.student, SubjectID: ref.subject, Date: "2024-03-05", Status: school.StatusAbsent, MarkedBy: ref.teacher,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	rows, err := school.List[school.Attendance](ctx, store, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second, rows[0])
	assert.Equal(t, school.StatusLate, rows[0].Status)
}

func testRollback(t *testing.T, store school.Store) {
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := store.RunInTx(ctx, func(tx school.Tx) error {
		mustInsert(t, tx, school.ClassGroup{Name: "Grade 1"})
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	classes, err := school.List[school.ClassGroup](ctx, store, nil)
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func testConcurrentInserts(t *testing.T, store school.Store) {
	ctx := context.Background()
	const n = 40

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Insert(ctx, school.ClassGroup{Name: fmt.Sprintf("Grade %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	classes, err := school.List[school.ClassGroup](ctx, store, nil)
	require.NoError(t, err)
	assert.Len(t, classes, n)
	seen := make(map[string]bool, n)
	for _, c := range classes {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

func testConcurrentUpserts(t *testing.T, store school.Store) {
	ctx := context.Background()
	ref := seedAttendanceRefs(t, store)
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := school.StatusPresent
			if i%2 == 1 {
				status = school.StatusAbsent
			}
			_, err := store.UpsertAttendance(ctx, school.Attendance{
				StudentID: ref.student, SubjectID: ref.subject, Date: "2024-03-04", Status: status, MarkedBy: ref.teacher,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := school.List[school.Attendance](ctx, store, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "one row per (student, subject, date)")
}

func testScenario(t *testing.T, store school.Store) {
	ctx := context.Background()
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error { return Seed(ctx, tx) }))

	snap, err := Take(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, Want(), snap)
}

type attendanceRefs struct {
	student, subject, class, teacher string
}

func seedAttendanceRefs(t *testing.T, store school.Store) attendanceRefs {
	var ref attendanceRefs
	require.NoError(t, store.RunInTx(context.Background(), func(tx school.Tx) error {
		c := mustInsert(t, tx, school.ClassGroup{Name: "Grade 1"})
		sub := mustInsert(t, tx, school.Subject{Name: "Maths"})
		su := mustInsert(t, tx, school.User{Name: "S", Email: "s@test.cd", Role: school.RoleStudent})
		st := mustInsert(t, tx, school.Student{UserID: su.ID, Name: "S", ClassID: c.ID})
		tu := mustInsert(t, tx, school.User{Name: "T", Email: "t@test.cd", Role: school.RoleTeacher})
		tch := mustInsert(t, tx, school.Teacher{UserID: tu.ID, Name: "T"})
		ref = attendanceRefs{student: st.ID, subject: sub.ID, class: c.ID, teacher: tch.ID}
		return nil
	}))
	return ref
}

func mustInsert[T school.Entity](t *testing.T, tx school.Tx, e T) T {
	t.Helper()
	res, err := tx.Insert(context.Background(), e)
	require.NoError(t, err, "inserting %s", school.RefOf(e))
	return res.(T)
}
