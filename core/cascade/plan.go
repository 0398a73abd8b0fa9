// Package cascade deletes root entities together with everything that references them.
//
// A deletion is first planned (a pure read of the store) and then applied inside one store transaction:
// updates first, then junction unlinks, then row deletions ordered children first so that relational
// foreign keys hold at every step.
package cascade

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core/school"
)

// Unlink removes the junction rows matching Link.
type Unlink struct {
	Junction school.Junction
	Link     school.Link
}

// Plan is every write needed to delete Root.
type Plan struct {
	Root    school.Ref
	Updates []school.Entity // rows repaired in place (references nulled, target lists shrunk)
	Unlinks []Unlink
	Deletes []school.Ref // children first; Root is last among rows of its rank
}

// deleteRank orders deletions so that no row outlives a row it references.
var deleteRank = map[school.Kind]int{
	school.KindSubmission:   0,
	school.KindAttendance:   1,
	school.KindGrade:        2,
	school.KindTimetable:    3,
	school.KindAssignment:   4,
	school.KindMessage:      5,
	school.KindAnnouncement: 6,
	school.KindStudent:      7,
	school.KindTeacher:      8,
	school.KindClass:        9,
	school.KindSubject:      10,
	school.KindUser:         11,
}

// Empty reports whether the plan touches nothing besides its root.
func (p *Plan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Unlinks) == 0 && len(p.Deletes) <= 1
}

// Deleted returns the ids of kind the plan deletes, in plan order.
func (p *Plan) Deleted(kind school.Kind) []string {
	var ids []string
	for _, ref := range p.Deletes {
		if ref.Kind == kind {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

type planner struct {
	ctx context.Context
	tx  school.Tx

	deletes  map[school.Ref]bool
	updates  map[school.Ref]school.Entity
	order    []school.Ref // first update of each row
	unlinks  []Unlink
	unlinked map[Unlink]bool
}

// Build computes the plan deleting ref. A missing root is a core.ErrNotFound error.
func Build(ctx context.Context, tx school.Tx, ref school.Ref) (*Plan, error) {
	p := &planner{
		ctx:      ctx,
		tx:       tx,
		deletes:  make(map[school.Ref]bool),
		updates:  make(map[school.Ref]school.Entity),
		unlinked: make(map[Unlink]bool),
	}
	root, err := tx.Get(ctx, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	if err = p.remove(root); err != nil {
		return nil, errors.Wrapf(err, "planning deletion of %s", ref)
	}
	return p.plan(ref), nil
}

func (p *planner) plan(root school.Ref) *Plan {
	plan := &Plan{Root: root, Unlinks: p.unlinks}
	for _, ref := range p.order {
		if !p.deletes[ref] {
			plan.Updates = append(plan.Updates, p.updates[ref])
		}
	}
	for ref := range p.deletes {
		plan.Deletes = append(plan.Deletes, ref)
	}
	sort.Slice(plan.Deletes, func(i, j int) bool {
		a, b := plan.Deletes[i], plan.Deletes[j]
		if ra, rb := deleteRank[a.Kind], deleteRank[b.Kind]; ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	return plan
}

// remove records the deletion of e and of everything depending on it.
func (p *planner) remove(e school.Entity) error {
	ref := school.RefOf(e)
	if p.deletes[ref] {
		return nil
	}
	p.deletes[ref] = true

	switch e := e.(type) {
	case school.ClassGroup:
		return p.removeClass(e)
	case school.Subject:
		return p.removeSubject(e)
	case school.User:
		return p.removeUser(e)
	case school.Student:
		return p.removeStudent(e)
	case school.Teacher:
		return p.removeTeacher(e)
	case school.Assignment:
		return removeAll(p, func(s school.Submission) bool { return s.AssignmentID == e.ID })
	}
	return nil
}

func (p *planner) removeClass(c school.ClassGroup) error {
	p.unlink(school.SubjectClasses, school.Link{TargetID: c.ID})
	if err := removeAll(p, func(t school.TimetableEntry) bool { return t.ClassID == c.ID }); err != nil {
		return err
	}
	if err := removeAll(p, func(m school.Message) bool {
		return m.GroupType == school.GroupClass && m.GroupID == c.ID
	}); err != nil {
		return err
	}
	if err := p.untarget(school.TargetClass, c.ID); err != nil {
		return err
	}
	if err := repairAll(p, func(s school.Student) bool { return s.ClassID == c.ID }, func(s *school.Student) {
		s.ClassID = ""
	}); err != nil {
		return err
	}
	return repairAll(p, func(a school.Attendance) bool { return a.ClassID == c.ID }, func(a *school.Attendance) {
		a.ClassID = ""
	})
}

func (p *planner) removeSubject(s school.Subject) error {
	p.unlink(school.SubjectTeachers, school.Link{SubjectID: s.ID})
	p.unlink(school.SubjectClasses, school.Link{SubjectID: s.ID})
	for _, err := range []error{
		removeAll(p, func(a school.Attendance) bool { return a.SubjectID == s.ID }),
		removeAll(p, func(g school.Grade) bool { return g.SubjectID == s.ID }),
		removeAll(p, func(t school.TimetableEntry) bool { return t.SubjectID == s.ID }),
		removeAll(p, func(a school.Assignment) bool { return a.SubjectID == s.ID }),
		removeAll(p, func(m school.Message) bool { return m.GroupType == school.GroupSubject && m.GroupID == s.ID }),
	} {
		if err != nil {
			return err
		}
	}
	return p.untarget(school.TargetSubject, s.ID)
}

func (p *planner) removeUser(u school.User) error {
	for _, err := range []error{
		removeAll(p, func(s school.Student) bool { return s.UserID == u.ID }),
		removeAll(p, func(t school.Teacher) bool { return t.UserID == u.ID }),
		removeAll(p, func(a school.Announcement) bool { return a.PostedBy == u.ID }),
		removeAll(p, func(m school.Message) bool { return m.From == u.ID || m.To == u.ID }),
	} {
		if err != nil {
			return err
		}
	}
	return repairAll(p, func(s school.Student) bool { return s.ParentID == u.ID }, func(s *school.Student) {
		s.ParentID = ""
	})
}

func (p *planner) removeStudent(s school.Student) error {
	for _, err := range []error{
		removeAll(p, func(a school.Attendance) bool { return a.StudentID == s.ID }),
		removeAll(p, func(g school.Grade) bool { return g.StudentID == s.ID }),
		removeAll(p, func(sb school.Submission) bool { return sb.StudentID == s.ID }),
	} {
		if err != nil {
			return err
		}
	}
	return repairAll(p, func(u school.User) bool { return contains(u.ParentOfStudentIDs, s.ID) }, func(u *school.User) {
		u.ParentOfStudentIDs = without(u.ParentOfStudentIDs, s.ID)
	})
}

func (p *planner) removeTeacher(t school.Teacher) error {
	p.unlink(school.SubjectTeachers, school.Link{TargetID: t.ID})
	for _, err := range []error{
		removeAll(p, func(a school.Attendance) bool { return a.MarkedBy == t.ID }),
		removeAll(p, func(g school.Grade) bool { return g.TeacherID == t.ID }),
		removeAll(p, func(a school.Assignment) bool { return a.CreatedBy == t.ID }),
		removeAll(p, func(e school.TimetableEntry) bool { return e.TeacherID == t.ID }),
	} {
		if err != nil {
			return err
		}
	}
	return repairAll(p, func(s school.Submission) bool { return s.GradedBy == t.ID }, func(s *school.Submission) {
		s.GradedBy = ""
	})
}

// untarget drops id from the targets of the announcements addressed to group. Announcements left with no
// target are kept.
func (p *planner) untarget(group school.TargetGroup, id string) error {
	return repairAll(p, func(a school.Announcement) bool {
		return a.TargetGroup == group && a.Targets(id)
	}, func(a *school.Announcement) {
		a.TargetIDs = without(a.TargetIDs, id)
	})
}

func (p *planner) unlink(j school.Junction, q school.Link) {
	u := Unlink{Junction: j, Link: q}
	if !p.unlinked[u] {
		p.unlinked[u] = true
		p.unlinks = append(p.unlinks, u)
	}
}

// removeAll plans the deletion of every T matching pred.
func removeAll[T school.Entity](p *planner, pred func(T) bool) error {
	rows, err := school.List(p.ctx, p.tx, pred)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err = p.remove(r); err != nil {
			return err
		}
	}
	return nil
}

// repairAll plans fix on every T matching pred. A row updated twice keeps both fixes.
func repairAll[T school.Entity](p *planner, pred func(T) bool, fix func(*T)) error {
	rows, err := school.List(p.ctx, p.tx, pred)
	if err != nil {
		return err
	}
	for _, r := range rows {
		ref := school.RefOf(r)
		if pending, ok := p.updates[ref]; ok {
			r = pending.(T)
		} else {
			p.order = append(p.order, ref)
		}
		fix(&r)
		p.updates[ref] = r
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	var res []string
	for _, v := range ids {
		if v != id {
			res = append(res, v)
		}
	}
	return res
}
