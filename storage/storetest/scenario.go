package storetest

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core/school"
)

// Snapshot is the full content of a store: every row in store order and every junction row in link order.
type Snapshot struct {
	Rows  map[school.Kind][]school.Entity
	Links map[school.Junction][]school.Link
}

// Junctions lists every junction.
var Junctions = []school.Junction{school.SubjectTeachers, school.SubjectClasses}

// Take reads the whole content of tx.
func Take(ctx context.Context, tx school.Tx) (Snapshot, error) {
	snap := Snapshot{
		Rows:  make(map[school.Kind][]school.Entity, len(school.Kinds)),
		Links: make(map[school.Junction][]school.Link, len(Junctions)),
	}
	for _, kind := range school.Kinds {
		es, err := tx.List(ctx, kind, nil)
		if err != nil {
			return Snapshot{}, errors.Wrapf(err, "listing %s", kind)
		}
		snap.Rows[kind] = es
	}
	for _, j := range Junctions {
		links, err := tx.Links(ctx, j, school.Link{})
		if err != nil {
			return Snapshot{}, errors.Wrapf(err, "listing %s", j)
		}
		snap.Links[j] = links
	}
	return snap, nil
}

var (
	at    = time.Date(2024, 3, 4, 8, 30, 15, 123456000, time.UTC)
	grade = 17.5
)

// Fixture is a small school exercising every field of every kind. Ids are fixed so that two stores seeded
// with it hold identical rows.
func Fixture() ([]school.Entity, map[school.Junction][]school.Link) {
	rows := []school.Entity{
		school.User{ID: "u-admin", Name: "Admin", Email: "admin@test.cd", Role: school.RoleAdmin, PasswordHash: []byte("$2a$10$hash"), CreatedAt: at},
		school.User{ID: "u-parent", Name: "Parent", Email: "parent@test.cd", Role: school.RoleParent, ParentOfStudentIDs: []string{"st-1"}, CreatedAt: at},
		school.User{ID: "u-student", Name: "Student", Email: "student@test.cd", Role: school.RoleStudent, CreatedAt: at.Add(time.Second)},
		school.User{ID: "u-teacher", Name: "Teacher", Email: "teacher@test.cd", Role: school.RoleTeacher, CreatedAt: at},
		school.ClassGroup{ID: "c-1", Name: "Grade 1", Level: "primary"},
		school.ClassGroup{ID: "c-2", Name: "Grade 2", Level: "primary"},
		school.Subject{ID: "s-1", Name: "Mathematics", Code: "MAT"},
		school.Subject{ID: "s-2", Name: "Physics", Code: "PHY"},
		school.Student{ID: "st-1", UserID: "u-student", Name: "Student", ClassID: "c-1", ParentID: "u-parent", StudentCode: "STU-1"},
		school.Teacher{ID: "t-1", UserID: "u-teacher", Name: "Teacher"},
		school.Attendance{ID: "at-1", StudentID: "st-1", SubjectID: "s-1", ClassID: "c-1", Date: "2024-03-04", Status: school.StatusLate, MarkedBy: "t-1"},
		school.Grade{ID: "g-1", StudentID: "st-1", SubjectID: "s-1", ExamType: "midterm", Score: 42.5, MaxScore: 50, Date: "2024-03-01", TeacherID: "t-1", Comments: "good"},
		school.Assignment{ID: "as-1", SubjectID: "s-1", Title: "Fractions", Description: "p. 12", DueDate: "2024-03-11", CreatedBy: "t-1", Attachments: []string{"https://files.test/a.pdf"}, CreatedAt: at},
		school.Submission{ID: "sb-1", AssignmentID: "as-1", StudentID: "st-1", FileURL: "https://files.test/s.pdf", SubmittedAt: at.Add(time.Hour), Grade: &grade, Feedback: "ok", GradedBy: "t-1"},
		school.Announcement{ID: "an-1", PostedBy: "u-admin", Title: "Holiday", Body: "No school", TargetGroup: school.TargetClass, TargetIDs: []string{"c-1", "c-2"}, CreatedAt: at},
		school.Message{ID: "m-1", From: "u-teacher", To: "u-parent", Body: "Hello", Date: at, Read: true},
		school.Message{ID: "m-2", From: "u-teacher", GroupID: "c-1", GroupType: school.GroupClass, Body: "Class", Date: at},
		school.TimetableEntry{ID: "tt-1", ClassID: "c-1", SubjectID: "s-1", TeacherID: "t-1", Day: "monday", StartTime: "08:00", EndTime: "09:00", Room: "B12"},
	}
	links := map[school.Junction][]school.Link{
		school.SubjectTeachers: {{SubjectID: "s-1", TargetID: "t-1"}, {SubjectID: "s-2", TargetID: "t-1"}},
		school.SubjectClasses:  {{SubjectID: "s-1", TargetID: "c-2"}, {SubjectID: "s-1", TargetID: "c-1"}, {SubjectID: "s-2", TargetID: "c-1"}},
	}
	return rows, links
}

// Seed inserts Fixture into tx, parents first.
func Seed(ctx context.Context, tx school.Tx) error {
	rows, links := Fixture()
	byKind := make(map[school.Kind][]school.Entity)
	for _, e := range rows {
		byKind[e.EntityKind()] = append(byKind[e.EntityKind()], e)
	}
	for _, kind := range school.Kinds {
		for _, e := range byKind[kind] {
			if _, err := tx.Insert(ctx, e); err != nil {
				return err
			}
		}
	}
	for _, j := range Junctions {
		if err := tx.Link(ctx, j, links[j]...); err != nil {
			return err
		}
	}
	return nil
}

// Want is the snapshot of a store seeded with Fixture.
func Want() Snapshot {
	rows, links := Fixture()
	snap := Snapshot{
		Rows:  make(map[school.Kind][]school.Entity, len(school.Kinds)),
		Links: links,
	}
	for _, kind := range school.Kinds {
		snap.Rows[kind] = []school.Entity{}
	}
	for _, e := range rows {
		snap.Rows[e.EntityKind()] = append(snap.Rows[e.EntityKind()], e)
	}
	for _, es := range snap.Rows {
		sort.SliceStable(es, func(i, j int) bool { return es[i].EntityID() < es[j].EntityID() })
	}
	return snap
}
