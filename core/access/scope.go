// Package access decides which records an actor may observe.
//
// Every rule lives in one table keyed by role then entity kind. A kind missing from a role's table is
// invisible to that role.
package access

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

type rule func(v Viewer, e school.Entity) bool

func on[T school.Entity](fn func(v Viewer, e T) bool) rule {
	return func(v Viewer, e school.Entity) bool {
		t, ok := e.(T)
		return ok && fn(v, t)
	}
}

func everyone(Viewer, school.Entity) bool { return true }

var policies = map[school.Role]map[school.Kind]rule{
	school.RoleAdmin: {
		school.KindUser:         everyone,
		school.KindStudent:      everyone,
		school.KindTeacher:      everyone,
		school.KindClass:        everyone,
		school.KindSubject:      everyone,
		school.KindAttendance:   everyone,
		school.KindGrade:        everyone,
		school.KindAssignment:   everyone,
		school.KindSubmission:   everyone,
		school.KindAnnouncement: everyone,
		school.KindMessage:      on(messageVisible),
		school.KindTimetable:    everyone,
	},
	school.RoleTeacher: {
		school.KindUser:    on(self),
		school.KindStudent: everyone,
		school.KindTeacher: everyone,
		school.KindClass:   everyone,
		school.KindSubject: everyone,
		school.KindAttendance: on(func(v Viewer, a school.Attendance) bool {
			return v.SubjectIDs.Has(a.SubjectID)
		}),
		school.KindGrade: on(func(v Viewer, g school.Grade) bool {
			return v.SubjectIDs.Has(g.SubjectID)
		}),
		school.KindAssignment: on(func(v Viewer, a school.Assignment) bool {
			return v.SubjectIDs.Has(a.SubjectID)
		}),
		school.KindSubmission: on(func(v Viewer, s school.Submission) bool {
			return v.TeacherAssignmentIDs.Has(s.AssignmentID)
		}),
		school.KindAnnouncement: on(func(v Viewer, a school.Announcement) bool {
			return announcedToAll(v, a) || (a.TargetGroup == school.TargetSubject && v.SubjectIDs.Any(a.TargetIDs))
		}),
		school.KindMessage: on(messageVisible),
		school.KindTimetable: on(func(v Viewer, t school.TimetableEntry) bool {
			return t.TeacherID != "" && t.TeacherID == v.TeacherID
		}),
	},
	school.RoleStudent: {
		school.KindUser: on(self),
		school.KindStudent: on(func(v Viewer, s school.Student) bool {
			return s.ID != "" && s.ID == v.StudentID
		}),
		school.KindTeacher: everyone,
		school.KindClass:   everyone,
		school.KindSubject: everyone,
		school.KindAttendance: on(func(v Viewer, a school.Attendance) bool {
			return a.StudentID != "" && a.StudentID == v.StudentID
		}),
		school.KindGrade: on(func(v Viewer, g school.Grade) bool {
			return g.StudentID != "" && g.StudentID == v.StudentID
		}),
		school.KindAssignment: on(func(v Viewer, a school.Assignment) bool {
			return v.ClassSubjectIDs.Has(a.SubjectID)
		}),
		school.KindSubmission: on(func(v Viewer, s school.Submission) bool {
			return s.StudentID != "" && s.StudentID == v.StudentID
		}),
		school.KindAnnouncement: on(func(v Viewer, a school.Announcement) bool {
			switch {
			case announcedToAll(v, a):
				return true
			case a.TargetGroup == school.TargetClass:
				return v.ClassID != "" && a.Targets(v.ClassID)
			case a.TargetGroup == school.TargetSubject:
				return v.ClassSubjectIDs.Any(a.TargetIDs)
			}
			return false
		}),
		school.KindMessage: on(messageVisible),
		school.KindTimetable: on(func(v Viewer, t school.TimetableEntry) bool {
			return v.ClassID != "" && t.ClassID == v.ClassID
		}),
	},
	school.RoleParent: {
		school.KindUser: on(self),
		school.KindStudent: on(func(v Viewer, s school.Student) bool {
			return v.ChildIDs.Has(s.ID)
		}),
		school.KindTeacher: everyone,
		school.KindClass:   everyone,
		school.KindSubject: everyone,
		school.KindAttendance: on(func(v Viewer, a school.Attendance) bool {
			return v.ChildIDs.Has(a.StudentID)
		}),
		school.KindGrade: on(func(v Viewer, g school.Grade) bool {
			return v.ChildIDs.Has(g.StudentID)
		}),
		school.KindAssignment: on(func(v Viewer, a school.Assignment) bool {
			return v.ChildSubjectIDs.Has(a.SubjectID)
		}),
		school.KindSubmission: on(func(v Viewer, s school.Submission) bool {
			return v.ChildIDs.Has(s.StudentID)
		}),
		school.KindAnnouncement: on(func(v Viewer, a school.Announcement) bool {
			return announcedToAll(v, a) || (a.TargetGroup == school.TargetClass && v.ChildClassIDs.Any(a.TargetIDs))
		}),
		school.KindMessage: on(messageVisible),
		school.KindTimetable: on(func(v Viewer, t school.TimetableEntry) bool {
			return v.ChildClassIDs.Has(t.ClassID)
		}),
	},
}

func self(v Viewer, u school.User) bool {
	return u.ID != "" && u.ID == v.UserID
}

// announcedToAll covers the audiences shared by every non-admin role.
func announcedToAll(v Viewer, a school.Announcement) bool {
	switch a.TargetGroup {
	case school.TargetAll:
		return true
	case school.TargetRole:
		return a.Targets(string(v.Role))
	}
	return false
}

// messageVisible is the same for every role: participants and group members.
func messageVisible(v Viewer, m school.Message) bool {
	if v.UserID != "" && (m.From == v.UserID || m.To == v.UserID) {
		return true
	}
	if m.GroupID == "" {
		return false
	}
	switch m.GroupType {
	case school.GroupClass:
		return (v.ClassID != "" && m.GroupID == v.ClassID) || v.TeacherClassIDs.Has(m.GroupID)
	case school.GroupSubject:
		return v.ClassSubjectIDs.Has(m.GroupID) || v.SubjectIDs.Has(m.GroupID)
	}
	return false
}

// Visible reports whether v may observe e.
func Visible(v Viewer, e school.Entity) bool {
	r, ok := policies[v.Role][e.EntityKind()]
	return ok && r(v, e)
}

// Authorize returns a core.ErrForbidden error when v may not observe e.
func Authorize(v Viewer, e school.Entity) error {
	if !Visible(v, e) {
		return core.Forbidden(string(v.Role) + " " + v.UserID + " may not access " + school.RefOf(e).String())
	}
	return nil
}

// Filter returns the rows visible to v. Feeds (announcements, messages) are sorted newest first and the
// timetable by day then start time; other kinds keep the input order. Sorting is stable and ties are broken
// by id, so the result does not depend on the input order for sorted kinds.
func Filter[T school.Entity](v Viewer, rows []T) []T {
	visible := make([]T, 0, len(rows))
	for _, r := range rows {
		if Visible(v, r) {
			visible = append(visible, r)
		}
	}
	var zero T
	if less, ok := orders[zero.EntityKind()]; ok {
		sort.SliceStable(visible, func(i, j int) bool { return less(visible[i], visible[j]) })
	}
	return visible
}

// FilterEntities is Filter for untyped rows.
func FilterEntities(v Viewer, rows []school.Entity) []school.Entity {
	visible := make([]school.Entity, 0, len(rows))
	for _, r := range rows {
		if Visible(v, r) {
			visible = append(visible, r)
		}
	}
	if len(visible) > 0 {
		if less, ok := orders[visible[0].EntityKind()]; ok {
			sort.SliceStable(visible, func(i, j int) bool { return less(visible[i], visible[j]) })
		}
	}
	return visible
}

var orders = map[school.Kind]func(a, b school.Entity) bool{
	school.KindAnnouncement: func(a, b school.Entity) bool {
		x, y := a.(school.Announcement), b.(school.Announcement)
		if !x.CreatedAt.Equal(y.CreatedAt) {
			return x.CreatedAt.After(y.CreatedAt)
		}
		return x.ID > y.ID
	},
	school.KindMessage: func(a, b school.Entity) bool {
		x, y := a.(school.Message), b.(school.Message)
		if !x.Date.Equal(y.Date) {
			return x.Date.After(y.Date)
		}
		return x.ID > y.ID
	},
	school.KindTimetable: func(a, b school.Entity) bool {
		x, y := a.(school.TimetableEntry), b.(school.TimetableEntry)
		if dx, dy := school.WeekdayIndex(x.Day), school.WeekdayIndex(y.Day); dx != dy {
			return dx < dy
		}
		if x.StartTime != y.StartTime {
			return x.StartTime < y.StartTime
		}
		return x.ID < y.ID
	},
}

// Require returns a core.ErrForbidden error unless the actor has one of roles.
func Require(actor school.Actor, roles ...school.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return errors.Wrapf(core.ErrForbidden, "%s role required", roles)
}
