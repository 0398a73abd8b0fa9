package school

import "time"

// Kinds
const (
	KindUser         Kind = "users"
	KindStudent      Kind = "students"
	KindTeacher      Kind = "teachers"
	KindClass        Kind = "classes"
	KindSubject      Kind = "subjects"
	KindAttendance   Kind = "attendance"
	KindGrade        Kind = "grades"
	KindAssignment   Kind = "assignments"
	KindSubmission   Kind = "submissions"
	KindAnnouncement Kind = "announcements"
	KindMessage      Kind = "messages"
	KindTimetable    Kind = "timetable"
)

// Kinds lists every entity kind, parents before children.
var Kinds = []Kind{
	KindUser, KindClass, KindSubject, KindStudent, KindTeacher, KindAttendance, KindGrade,
	KindAssignment, KindSubmission, KindAnnouncement, KindMessage, KindTimetable,
}

type Kind string

func (k Kind) String() string { return string(k) }

// Entity is a stored row of one Kind.
type Entity interface {
	EntityID() string
	EntityKind() Kind
	// WithID returns a copy of the entity carrying id.
	WithID(id string) Entity
}

// Ref points to one entity.
type Ref struct {
	Kind Kind
	ID   string
}

func RefOf(e Entity) Ref { return Ref{Kind: e.EntityKind(), ID: e.EntityID()} }

func (r Ref) String() string { return string(r.Kind) + "/" + r.ID }

func (u User) EntityID() string           { return u.ID }
func (s Student) EntityID() string        { return s.ID }
func (t Teacher) EntityID() string        { return t.ID }
func (c ClassGroup) EntityID() string     { return c.ID }
func (s Subject) EntityID() string        { return s.ID }
func (a Attendance) EntityID() string     { return a.ID }
func (g Grade) EntityID() string          { return g.ID }
func (a Assignment) EntityID() string     { return a.ID }
func (s Submission) EntityID() string     { return s.ID }
func (a Announcement) EntityID() string   { return a.ID }
func (m Message) EntityID() string        { return m.ID }
func (t TimetableEntry) EntityID() string { return t.ID }

func (User) EntityKind() Kind           { return KindUser }
func (Student) EntityKind() Kind        { return KindStudent }
func (Teacher) EntityKind() Kind        { return KindTeacher }
func (ClassGroup) EntityKind() Kind     { return KindClass }
func (Subject) EntityKind() Kind        { return KindSubject }
func (Attendance) EntityKind() Kind     { return KindAttendance }
func (Grade) EntityKind() Kind          { return KindGrade }
func (Assignment) EntityKind() Kind     { return KindAssignment }
func (Submission) EntityKind() Kind     { return KindSubmission }
func (Announcement) EntityKind() Kind   { return KindAnnouncement }
func (Message) EntityKind() Kind        { return KindMessage }
func (TimetableEntry) EntityKind() Kind { return KindTimetable }

func (u User) WithID(id string) Entity {
	u.ID = id
	return u
}
func (s Student) WithID(id string) Entity {
	s.ID = id
	return s
}
func (t Teacher) WithID(id string) Entity {
	t.ID = id
	return t
}
func (c ClassGroup) WithID(id string) Entity {
	c.ID = id
	return c
}
func (s Subject) WithID(id string) Entity {
	s.ID = id
	return s
}
func (a Attendance) WithID(id string) Entity {
	a.ID = id
	return a
}
func (g Grade) WithID(id string) Entity {
	g.ID = id
	return g
}
func (a Assignment) WithID(id string) Entity {
	a.ID = id
	return a
}
func (s Submission) WithID(id string) Entity {
	s.ID = id
	return s
}
func (a Announcement) WithID(id string) Entity {
	a.ID = id
	return a
}
func (m Message) WithID(id string) Entity {
	m.ID = id
	return m
}
func (t TimetableEntry) WithID(id string) Entity {
	t.ID = id
	return t
}

// Stamp prepares e for insertion: it assigns an id when e has none and a creation timestamp where the kind
// carries one and it is unset. Timestamps are UTC, truncated to microseconds (the relational precision).
func Stamp(e Entity, now time.Time) Entity {
	if e.EntityID() == "" {
		e = e.WithID(NewID())
	}
	now = now.UTC().Truncate(time.Microsecond)
	switch v := e.(type) {
	case User:
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		return v
	case Assignment:
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		return v
	case Submission:
		if v.SubmittedAt.IsZero() {
			v.SubmittedAt = now
		}
		return v
	case Announcement:
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		return v
	case Message:
		if v.Date.IsZero() {
			v.Date = now
		}
		return v
	}
	return e
}

// Copy returns e with its slice fields copied, so that the copy can be mutated without aliasing the original.
func Copy(e Entity) Entity {
	switch v := e.(type) {
	case User:
		v.ParentOfStudentIDs = copyStrings(v.ParentOfStudentIDs)
		if len(v.PasswordHash) == 0 {
			v.PasswordHash = nil
		} else {
			v.PasswordHash = append([]byte(nil), v.PasswordHash...)
		}
		return v
	case Teacher:
		v.SubjectIDs = copyStrings(v.SubjectIDs)
		return v
	case ClassGroup:
		v.TeacherIDs = copyStrings(v.TeacherIDs)
		v.StudentIDs = copyStrings(v.StudentIDs)
		return v
	case Subject:
		v.TeacherIDs = copyStrings(v.TeacherIDs)
		v.ClassIDs = copyStrings(v.ClassIDs)
		return v
	case Assignment:
		v.Attachments = copyStrings(v.Attachments)
		return v
	case Submission:
		if v.Grade != nil {
			g := *v.Grade
			v.Grade = &g
		}
		return v
	case Announcement:
		v.TargetIDs = copyStrings(v.TargetIDs)
		return v
	}
	return e
}

// copyStrings copies s; empty slices become nil so that both backends return the same shape.
func copyStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// Bare returns e without its derived fields, which stores never persist.
func Bare(e Entity) Entity {
	switch v := e.(type) {
	case Teacher:
		v.SubjectIDs = nil
		return v
	case ClassGroup:
		v.TeacherIDs, v.StudentIDs = nil, nil
		return v
	case Subject:
		v.TeacherID, v.TeacherIDs, v.ClassIDs = "", nil, nil
		return v
	}
	return e
}
