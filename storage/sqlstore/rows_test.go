package sqlstore

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

func TestTables_roundTrip(t *testing.T) {
	at := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)
	grade := 12.5

	tests := []struct {
		name string
		e    school.Entity
	}{
		{"user", school.User{ID: "u-1", Name: "Awe", Email: "awe@test.cd", PasswordHash: []byte("hash"), Role: school.RoleParent, ParentOfStudentIDs: []string{"st-1", "st-2"}, CreatedAt: at}},
		{"user without password", school.User{ID: "u-2", Name: "Awe", Email: "awe2@test.cd", Role: school.RoleAdmin, CreatedAt: at}},
		{"student", school.Student{ID: "st-1", UserID: "u-1", Name: "Kid", ClassID: "c-1", ParentID: "u-2", StudentCode: "STU-1"}},
		{"student without class", school.Student{ID: "st-2", UserID: "u-1", Name: "Kid"}},
		{"teacher", school.Teacher{ID: "t-1", UserID: "u-1", Name: "Awe"}},
		{"class", school.ClassGroup{ID: "c-1", Name: "Grade 1", Level: "primary"}},
		{"subject", school.Subject{ID: "s-1", Name: "Maths", Code: "MAT"}},
		{"attendance", school.Attendance{ID: "a-1", StudentID: "st-1", SubjectID: "s-1", ClassID: "c-1", Date: "2024-03-04", Status: school.StatusExcused, MarkedBy: "t-1"}},
		{"grade", school.Grade{ID: "g-1", StudentID: "st-1", SubjectID: "s-1", ExamType: "final", Score: 88, MaxScore: 100, Date: "2024-03-04", TeacherID: "t-1", Comments: "well done"}},
		{"assignment", school.Assignment{ID: "as-1", SubjectID: "s-1", Title: "T", Description: "D", DueDate: "2024-03-10", CreatedBy: "t-1", Attachments: []string{"a.pdf"}, CreatedAt: at}},
		{"submission", school.Submission{ID: "sb-1", AssignmentID: "as-1", StudentID: "st-1", FileURL: "f.pdf", SubmittedAt: at, Grade: &grade, Feedback: "ok", GradedBy: "t-1"}},
		{"ungraded submission", school.Submission{ID: "sb-2", AssignmentID: "as-1", StudentID: "st-1", FileURL: "f.pdf", SubmittedAt: at}},
		{"announcement", school.Announcement{ID: "an-1", PostedBy: "u-1", Title: "T", Body: "B", TargetGroup: school.TargetRole, TargetIDs: []string{"teacher"}, CreatedAt: at}},
		{"direct message", school.Message{ID: "m-1", From: "u-1", To: "u-2", Body: "hi", Date: at, Read: true}},
		{"group message", school.Message{ID: "m-2", From: "u-1", GroupID: "s-1", GroupType: school.GroupSubject, Body: "hi", Date: at}},
		{"timetable", school.TimetableEntry{ID: "tt-1", ClassID: "c-1", SubjectID: "s-1", TeacherID: "t-1", Day: "friday", StartTime: "10:00", EndTime: "11:00", Room: "Lab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := roundTrip(tt.e)
			require.NoError(t, err)
			assert.Equal(t, tt.e, got)
		})
	}
}

// roundTrip boils e and unboils the result.
func roundTrip(e school.Entity) (school.Entity, error) {
	switch v := e.(type) {
	case school.User:
		return unboilUser(boilUser(v))
	case school.Student:
		return unboilStudent(boilStudent(v)), nil
	case school.Teacher:
		return unboilTeacher(boilTeacher(v)), nil
	case school.ClassGroup:
		return unboilClass(boilClass(v)), nil
	case school.Subject:
		return unboilSubject(boilSubject(v)), nil
	case school.Attendance:
		return unboilAttendance(boilAttendance(v)), nil
	case school.Grade:
		return unboilGrade(boilGrade(v)), nil
	case school.Assignment:
		return unboilAssignment(boilAssignment(v))
	case school.Submission:
		return unboilSubmission(boilSubmission(v)), nil
	case school.Announcement:
		return unboilAnnouncement(boilAnnouncement(v))
	case school.Message:
		return unboilMessage(boilMessage(v)), nil
	case school.TimetableEntry:
		return unboilTimetable(boilTimetable(v)), nil
	}
	return nil, errors.Errorf("unexpected %T", e)
}

func TestTables_everyKind(t *testing.T) {
	for _, kind := range school.Kinds {
		tbl, err := tableFor(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.NotEmpty(t, tbl.name())
	}
	_, err := tableFor("lol")
	assert.Error(t, err)
}

func TestBoil_nullColumns(t *testing.T) {
	r := boilStudent(school.Student{ID: "st-1", UserID: "u-1", Name: "Kid"})
	assert.False(t, r.ClassID.Valid)
	assert.False(t, r.ParentID.Valid)

	cols := boilAnnouncement(school.Announcement{ID: "an-1"}).columns()
	assert.Equal(t, "[]", cols["target_ids"])
}

func TestMapErr(t *testing.T) {
	conflict := mapErr(&pq.Error{Code: pqUniqueViolation, Constraint: "users_email_key"}, "inserting users/u-1")
	assert.True(t, core.IsConflict(conflict), "err = %v", conflict)

	fk := mapErr(&pq.Error{Code: pqForeignKeyViolation, Constraint: "students_class_id_fkey"}, "inserting students/st-1")
	assert.True(t, core.IsValidation(fk), "err = %v", fk)

	other := mapErr(errors.New("boom"), "inserting")
	assert.EqualError(t, other, "inserting: boom")
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pq.Error{Code: pqSerializationFailure}, true},
		{"deadlock", errors.Wrap(&pq.Error{Code: pqDeadlockDetected}, "committing"), true},
		{"unique violation", &pq.Error{Code: pqUniqueViolation}, false},
		{"other", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestNew_dialect(t *testing.T) {
	tests := []struct {
		driver    string
		wantList  string
		wantLinks string
	}{
		{
			driver:    "sqlite",
			wantList:  "SELECT * FROM classes WHERE id = ? ORDER BY id",
			wantLinks: "ORDER BY subject_id, position",
		},
		{
			driver:    "postgres",
			wantList:  `SELECT * FROM classes WHERE id = $1 ORDER BY id COLLATE "C"`,
			wantLinks: `ORDER BY subject_id COLLATE "C", position`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			q := New(sqlx.NewDb(nil, tt.driver)).queries

			query, _, err := q.sb.Select("*").From("classes").Where("id = ?", "class-1").OrderBy(q.orderBy("id")...).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantList, query)

			query, _, err = q.sb.Select("subject_id").From("subject_classes").OrderBy(q.orderBy("subject_id", "position")...).ToSql()
			require.NoError(t, err)
			assert.Contains(t, query, tt.wantLinks)
		})
	}
}
