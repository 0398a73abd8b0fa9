package portal

import (
	"context"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

// Attendance

// MarkAttendance records the attendance of a student in a subject the actor teaches. A second mark for the
// same student, subject and date replaces the first.
func (svc *Service) MarkAttendance(ctx context.Context, actor school.Actor, ma MarkAttendance) (a school.Attendance, err error) {
	if err = svc.check(ma); err != nil {
		return school.Attendance{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		tch, err := svc.teacherOf(ctx, tx, actor, ma.SubjectID)
		if err != nil {
			return err
		}
		a, err = svc.mark(ctx, tx, tch, ma)
		return err
	})
	return a, err
}

// BulkMarkAttendance marks every record in one transaction: either all records are written or none is.
func (svc *Service) BulkMarkAttendance(ctx context.Context, actor school.Actor, ba BulkAttendance) (rows []school.Attendance, err error) {
	if err = svc.check(ba); err != nil {
		return nil, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		tch, err := svc.teacherOf(ctx, tx, actor, ba.SubjectID)
		if err != nil {
			return err
		}
		rows = make([]school.Attendance, 0, len(ba.Records))
		for _, r := range ba.Records {
			a, err := svc.mark(ctx, tx, tch, MarkAttendance{
				StudentID: r.StudentID,
				SubjectID: ba.SubjectID,
				ClassID:   ba.ClassID,
				Date:      ba.Date,
				Status:    r.Status,
			})
			if err != nil {
				return err
			}
			rows = append(rows, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *Service) mark(ctx context.Context, tx school.Tx, tch school.Teacher, ma MarkAttendance) (school.Attendance, error) {
	st, err := school.Get[school.Student](ctx, tx, ma.StudentID)
	if core.IsNotFound(err) {
		return school.Attendance{}, core.NewFieldError("studentId", "student "+ma.StudentID+" does not exist")
	} else if err != nil {
		return school.Attendance{}, err
	}
	if ma.ClassID == "" {
		ma.ClassID = st.ClassID
	} else if err = mustExist(ctx, tx, "classId", school.KindClass, ma.ClassID); err != nil {
		return school.Attendance{}, err
	}
	if ma.Status == "" {
		ma.Status = school.StatusPresent
	}
	return tx.UpsertAttendance(ctx, school.Attendance{
		StudentID: ma.StudentID,
		SubjectID: ma.SubjectID,
		ClassID:   ma.ClassID,
		Date:      ma.Date,
		Status:    ma.Status,
		MarkedBy:  tch.ID,
	})
}

// ListAttendance returns the attendance rows the actor may see, optionally only those of one student.
func (svc *Service) ListAttendance(ctx context.Context, actor school.Actor, studentID string) ([]school.Attendance, error) {
	return list(ctx, svc, actor, func(a school.Attendance) bool {
		return studentID == "" || a.StudentID == studentID
	})
}

// Grades

// AddGrade records a grade in a subject the actor teaches. MaxScore defaults to 100.
func (svc *Service) AddGrade(ctx context.Context, actor school.Actor, ng NewGrade) (g school.Grade, err error) {
	ng.ExamType = core.CleanString(ng.ExamType)
	if err = svc.check(ng); err != nil {
		return school.Grade{}, err
	}
	if ng.MaxScore == 0 {
		ng.MaxScore = 100
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		tch, err := svc.teacherOf(ctx, tx, actor, ng.SubjectID)
		if err != nil {
			return err
		}
		if err = mustExist(ctx, tx, "studentId", school.KindStudent, ng.StudentID); err != nil {
			return err
		}
		e, err := tx.Insert(ctx, school.Grade{
			StudentID: ng.StudentID,
			SubjectID: ng.SubjectID,
			ExamType:  ng.ExamType,
			Score:     *ng.Score,
			MaxScore:  ng.MaxScore,
			Date:      svc.now().Format(dateLayout),
			TeacherID: tch.ID,
			Comments:  ng.Comments,
		})
		if err != nil {
			return err
		}
		g = e.(school.Grade)
		return nil
	})
	return g, err
}

// gradeAuthor allows admins and the teacher who authored g.
func (svc *Service) gradeAuthor(ctx context.Context, tx school.Tx, actor school.Actor, g school.Grade) error {
	if actor.IsAdmin() {
		return nil
	}
	tch, err := svc.teacherByUser(ctx, tx, actor.UserID)
	if err != nil {
		return err
	}
	if g.TeacherID != tch.ID {
		return core.Forbidden("grade " + g.ID + " was given by another teacher")
	}
	return nil
}

// UpdateGrade changes the score, maximum score or comments of a grade (author or admin).
func (svc *Service) UpdateGrade(ctx context.Context, actor school.Actor, id string, ug UpdateGrade) (g school.Grade, err error) {
	if err = svc.check(ug); err != nil {
		return school.Grade{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		g, err = school.Patch(ctx, tx, id, func(g *school.Grade) error {
			if err := svc.gradeAuthor(ctx, tx, actor, *g); err != nil {
				return err
			}
			if ug.Score != nil {
				g.Score = *ug.Score
			}
			if ug.MaxScore != nil {
				g.MaxScore = *ug.MaxScore
			}
			if ug.Comments != nil {
				g.Comments = *ug.Comments
			}
			return nil
		})
		return err
	})
	return g, err
}

func (svc *Service) DeleteGrade(ctx context.Context, actor school.Actor, id string) error {
	return svc.remove(ctx, school.Ref{Kind: school.KindGrade, ID: id}, func(tx school.Tx, e school.Entity) error {
		return svc.gradeAuthor(ctx, tx, actor, e.(school.Grade))
	})
}

// ListGrades returns the grades the actor may see, optionally only those of one student.
func (svc *Service) ListGrades(ctx context.Context, actor school.Actor, studentID string) ([]school.Grade, error) {
	return list(ctx, svc, actor, func(g school.Grade) bool {
		return studentID == "" || g.StudentID == studentID
	})
}
