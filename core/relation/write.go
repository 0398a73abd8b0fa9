package relation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

// LinkSubject replaces the links of one subject: its teacher when teacherID is not nil ("" leaves it without
// teacher), its classes when classIDs is not nil. Both junction sides change together, so the teacher's
// subjects and the classes' teachers derived afterwards reflect the write.
//
// Dangling links of the subject are dropped on a replaced side; on a side the write does not replace they
// are reported as a validation error.
func (r *Resolver) LinkSubject(ctx context.Context, tx school.Tx, subjectID string, teacherID *string, classIDs *[]string) error {
	g, err := r.Load(ctx, tx)
	if err != nil {
		return err
	}
	if !g.subjects[subjectID] {
		return core.NotFound(school.KindSubject, subjectID)
	}

	var teachers, classes []string
	if teacherID != nil && *teacherID != "" {
		if !g.teachers[*teacherID] {
			return core.NewFieldError("teacherId", "teacher "+*teacherID+" does not exist")
		}
		teachers = []string{*teacherID}
	}
	if classIDs != nil {
		classes = dedupe(*classIDs)
		for _, id := range classes {
			if !g.classes[id] {
				return core.NewFieldError("classIds", "class "+id+" does not exist")
			}
		}
	}

	if teacherID == nil {
		if ids := g.Dangling(school.SubjectTeachers, subjectID); len(ids) > 0 {
			return danglingErr("teacherId", subjectID, ids)
		}
	} else if err = r.replace(ctx, tx, g, school.SubjectTeachers, subjectID, g.subjectTeachers[subjectID], teachers); err != nil {
		return err
	}

	if classIDs == nil {
		if ids := g.Dangling(school.SubjectClasses, subjectID); len(ids) > 0 {
			return danglingErr("classIds", subjectID, ids)
		}
	} else if err = r.replace(ctx, tx, g, school.SubjectClasses, subjectID, g.subjectClasses[subjectID], classes); err != nil {
		return err
	}
	return nil
}

// replace makes want the links of the subject, in order.
func (r *Resolver) replace(ctx context.Context, tx school.Tx, g *Graph, j school.Junction, subjectID string, current, want []string) error {
	dangling := g.Dangling(j, subjectID)
	if len(dangling) == 0 && equal(current, want) {
		return nil
	}
	if len(dangling) > 0 {
		r.log.Warn("dropping dangling junction rows", map[string]interface{}{
			"junction": j.String(),
			"subject":  subjectID,
			"targets":  dangling,
		})
	}
	if _, err := tx.Unlink(ctx, j, school.Link{SubjectID: subjectID}); err != nil {
		return errors.Wrapf(err, "unlinking %s of subject %s", j, subjectID)
	}
	links := make([]school.Link, 0, len(want))
	for _, id := range want {
		links = append(links, school.Link{SubjectID: subjectID, TargetID: id})
	}
	if err := tx.Link(ctx, j, links...); err != nil {
		return errors.Wrapf(err, "linking %s of subject %s", j, subjectID)
	}
	return nil
}

// SetTeacherSubjects makes subjectIDs the teacher's subjects. Links to subjects the teacher keeps are left
// untouched, so the teacher keeps its rank among each subject's teachers.
func (r *Resolver) SetTeacherSubjects(ctx context.Context, tx school.Tx, teacherID string, subjectIDs []string) error {
	g, err := r.Load(ctx, tx)
	if err != nil {
		return err
	}
	if !g.teachers[teacherID] {
		return core.NotFound(school.KindTeacher, teacherID)
	}
	want := dedupe(subjectIDs)
	for _, id := range want {
		if !g.subjects[id] {
			return core.NewFieldError("subjectIds", "subject "+id+" does not exist")
		}
	}

	current := g.teacherSubjects[teacherID]
	for _, id := range current {
		if !contains(want, id) {
			if _, err = tx.Unlink(ctx, school.SubjectTeachers, school.Link{SubjectID: id, TargetID: teacherID}); err != nil {
				return errors.Wrapf(err, "unlinking subject %s", id)
			}
		}
	}
	var added []school.Link
	for _, id := range want {
		if !contains(current, id) {
			added = append(added, school.Link{SubjectID: id, TargetID: teacherID})
		}
	}
	if len(added) > 0 {
		if err = tx.Link(ctx, school.SubjectTeachers, added...); err != nil {
			return errors.Wrapf(err, "linking teacher %s", teacherID)
		}
	}
	return nil
}

func danglingErr(field, subjectID string, targetIDs []string) error {
	return core.NewValidationError(
		errors.Errorf("subject %s is linked to missing rows %v", subjectID, targetIDs),
		core.FieldError{Field: field, Error: "linked to missing rows; replace this relationship to repair it"},
	)
}

func dedupe(ids []string) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !contains(res, id) {
			res = append(res, id)
		}
	}
	return res
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
