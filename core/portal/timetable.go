package portal

import (
	"context"
	"strings"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/access"
	"github.com/trezcool/masomo-core/core/school"
)

// checkSlot validates the references and times of a timetable entry.
func (svc *Service) checkSlot(ctx context.Context, tx school.Tx, t school.TimetableEntry) error {
	if err := mustExist(ctx, tx, "classId", school.KindClass, t.ClassID); err != nil {
		return err
	}
	if err := mustExist(ctx, tx, "subjectId", school.KindSubject, t.SubjectID); err != nil {
		return err
	}
	if err := mustExist(ctx, tx, "teacherId", school.KindTeacher, t.TeacherID); err != nil {
		return err
	}
	g, err := svc.resolver.Load(ctx, tx)
	if err != nil {
		return err
	}
	if !contains(g.SubjectClasses(t.SubjectID), t.ClassID) {
		return core.NewFieldError("subjectId", "subject "+t.SubjectID+" is not taught in class "+t.ClassID)
	}
	if !contains(g.SubjectTeachers(t.SubjectID), t.TeacherID) {
		return core.NewFieldError("teacherId", "teacher "+t.TeacherID+" does not teach subject "+t.SubjectID)
	}
	// HH:MM compares lexically
	if t.EndTime <= t.StartTime {
		return core.NewFieldError("endTime", "endTime must be after startTime")
	}
	return nil
}

func (svc *Service) CreateTimetableEntry(ctx context.Context, actor school.Actor, nt NewTimetableEntry) (t school.TimetableEntry, err error) {
	if err = access.Require(actor, school.RoleAdmin); err != nil {
		return school.TimetableEntry{}, err
	}
	if err = svc.check(nt); err != nil {
		return school.TimetableEntry{}, err
	}
	t = school.TimetableEntry{
		ClassID:   nt.ClassID,
		SubjectID: nt.SubjectID,
		TeacherID: nt.TeacherID,
		Day:       strings.ToLower(nt.Day),
		StartTime: nt.StartTime,
		EndTime:   nt.EndTime,
		Room:      core.CleanString(nt.Room),
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		if err := svc.checkSlot(ctx, tx, t); err != nil {
			return err
		}
		e, err := tx.Insert(ctx, t)
		if err != nil {
			return err
		}
		t = e.(school.TimetableEntry)
		return nil
	})
	if err != nil {
		return school.TimetableEntry{}, err
	}
	return t, nil
}

func (svc *Service) UpdateTimetableEntry(ctx context.Context, actor school.Actor, id string, ute UpdateTimetableEntry) (t school.TimetableEntry, err error) {
	if err = access.Require(actor, school.RoleAdmin); err != nil {
		return school.TimetableEntry{}, err
	}
	if err = svc.check(ute); err != nil {
		return school.TimetableEntry{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		t, err = school.Patch(ctx, tx, id, func(e *school.TimetableEntry) error {
			if ute.ClassID != "" {
				e.ClassID = ute.ClassID
			}
			if ute.SubjectID != "" {
				e.SubjectID = ute.SubjectID
			}
			if ute.TeacherID != "" {
				e.TeacherID = ute.TeacherID
			}
			if ute.Day != "" {
				e.Day = strings.ToLower(ute.Day)
			}
			if ute.StartTime != "" {
				e.StartTime = ute.StartTime
			}
			if ute.EndTime != "" {
				e.EndTime = ute.EndTime
			}
			if ute.Room != nil {
				e.Room = core.CleanString(*ute.Room)
			}
			return svc.checkSlot(ctx, tx, *e)
		})
		return err
	})
	return t, err
}

func (svc *Service) DeleteTimetableEntry(ctx context.Context, actor school.Actor, id string) error {
	if err := access.Require(actor, school.RoleAdmin); err != nil {
		return err
	}
	return svc.remove(ctx, school.Ref{Kind: school.KindTimetable, ID: id}, func(school.Tx, school.Entity) error { return nil })
}

// ListTimetable returns the entries visible to the actor in weekday then start time order. A non-empty
// classID keeps only that class.
func (svc *Service) ListTimetable(ctx context.Context, actor school.Actor, classID string) ([]school.TimetableEntry, error) {
	var pred func(school.TimetableEntry) bool
	if classID != "" {
		pred = func(t school.TimetableEntry) bool { return t.ClassID == classID }
	}
	return list(ctx, svc, actor, pred)
}
