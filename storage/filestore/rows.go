package filestore

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core/school"
)

type (
	// document is the persisted layout: one array per kind. Junction rows live inline on the owning subject.
	document struct {
		Users         []userRow               `json:"users"`
		Students      []school.Student        `json:"students"`
		Teachers      []teacherRow            `json:"teachers"`
		Classes       []classRow              `json:"classes"`
		Subjects      []subjectRow            `json:"subjects"`
		Attendance    []school.Attendance     `json:"attendance"`
		Grades        []school.Grade          `json:"grades"`
		Assignments   []school.Assignment     `json:"assignments"`
		Submissions   []school.Submission     `json:"submissions"`
		Announcements []school.Announcement   `json:"announcements"`
		Messages      []school.Message        `json:"messages"`
		Timetable     []school.TimetableEntry `json:"timetable"`
	}

	userRow struct {
		ID                 string      `json:"id"`
		Name               string      `json:"name"`
		Email              string      `json:"email"`
		PasswordHash       []byte      `json:"passwordHash,omitempty"`
		Role               school.Role `json:"role"`
		ParentOfStudentIDs []string    `json:"parentOfStudentIds,omitempty"`
		CreatedAt          time.Time   `json:"createdAt"`
	}

	teacherRow struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}

	classRow struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Level string `json:"level"`
	}

	subjectRow struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		Code       string   `json:"code"`
		TeacherIDs []string `json:"teacherIds,omitempty"`
		ClassIDs   []string `json:"classIds,omitempty"`
	}
)

func boilUser(u school.User) userRow {
	return userRow{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Role:               u.Role,
		ParentOfStudentIDs: u.ParentOfStudentIDs,
		CreatedAt:          u.CreatedAt,
	}
}

func unboilUser(r userRow) school.User {
	return school.User{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		PasswordHash:       r.PasswordHash,
		Role:               r.Role,
		ParentOfStudentIDs: r.ParentOfStudentIDs,
		CreatedAt:          r.CreatedAt.UTC(),
	}
}

func boilTeacher(t school.Teacher) teacherRow {
	return teacherRow{ID: t.ID, UserID: t.UserID, Name: t.Name}
}

func unboilTeacher(r teacherRow) school.Teacher {
	return school.Teacher{ID: r.ID, UserID: r.UserID, Name: r.Name}
}

func boilClass(c school.ClassGroup) classRow {
	return classRow{ID: c.ID, Name: c.Name, Level: c.Level}
}

func unboilClass(r classRow) school.ClassGroup {
	return school.ClassGroup{ID: r.ID, Name: r.Name, Level: r.Level}
}

// boilSubject embeds the subject's junction rows (teacher and class links).
func boilSubject(s school.Subject, teacherIDs, classIDs []string) subjectRow {
	return subjectRow{ID: s.ID, Name: s.Name, Code: s.Code, TeacherIDs: teacherIDs, ClassIDs: classIDs}
}

// unboilSubject splits a subject row into the bare subject and its junction rows.
func unboilSubject(r subjectRow) (s school.Subject, teacherIDs, classIDs []string) {
	return school.Subject{ID: r.ID, Name: r.Name, Code: r.Code}, r.TeacherIDs, r.ClassIDs
}

func (st *state) document() document {
	var doc document
	for _, e := range st.sorted(school.KindUser) {
		doc.Users = append(doc.Users, boilUser(e.(school.User)))
	}
	for _, e := range st.sorted(school.KindTeacher) {
		doc.Teachers = append(doc.Teachers, boilTeacher(e.(school.Teacher)))
	}
	for _, e := range st.sorted(school.KindClass) {
		doc.Classes = append(doc.Classes, boilClass(e.(school.ClassGroup)))
	}
	for _, e := range st.sorted(school.KindSubject) {
		s := e.(school.Subject)
		row := boilSubject(s, st.links[school.SubjectTeachers][s.ID], st.links[school.SubjectClasses][s.ID])
		doc.Subjects = append(doc.Subjects, row)
	}
	doc.Students = rowsOf[school.Student](st)
	doc.Attendance = rowsOf[school.Attendance](st)
	doc.Grades = rowsOf[school.Grade](st)
	doc.Assignments = rowsOf[school.Assignment](st)
	doc.Submissions = rowsOf[school.Submission](st)
	doc.Announcements = rowsOf[school.Announcement](st)
	doc.Messages = rowsOf[school.Message](st)
	doc.Timetable = rowsOf[school.TimetableEntry](st)
	return doc
}

func (doc document) state() (*state, error) {
	st := newState()
	for _, r := range doc.Users {
		if err := st.put(unboilUser(r)); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.Teachers {
		if err := st.put(unboilTeacher(r)); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.Classes {
		if err := st.put(unboilClass(r)); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.Subjects {
		s, teacherIDs, classIDs := unboilSubject(r)
		if err := st.put(s); err != nil {
			return nil, err
		}
		if len(teacherIDs) > 0 {
			st.links[school.SubjectTeachers][s.ID] = teacherIDs
		}
		if len(classIDs) > 0 {
			st.links[school.SubjectClasses][s.ID] = classIDs
		}
	}
	for _, err := range []error{
		putAll(st, doc.Students),
		putAll(st, doc.Attendance),
		putAll(st, doc.Grades),
		putAll(st, doc.Assignments),
		putAll(st, doc.Submissions),
		putAll(st, doc.Announcements),
		putAll(st, doc.Messages),
		putAll(st, doc.Timetable),
	} {
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (st *state) put(e school.Entity) error {
	rows := st.rows[e.EntityKind()]
	if _, exists := rows[e.EntityID()]; exists || e.EntityID() == "" {
		return errors.Errorf("invalid or duplicate id %s", school.RefOf(e))
	}
	rows[e.EntityID()] = school.Bare(e)
	return nil
}

func putAll[T school.Entity](st *state, rows []T) error {
	for _, r := range rows {
		if err := st.put(r); err != nil {
			return err
		}
	}
	return nil
}

// rowsOf returns the stored rows of kinds whose persisted shape is the domain shape.
func rowsOf[T school.Entity](st *state) []T {
	var zero T
	es := st.sorted(zero.EntityKind())
	rows := make([]T, 0, len(es))
	for _, e := range es {
		rows = append(rows, e.(T))
	}
	return rows
}
