package portal

import (
	"context"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/access"
	"github.com/trezcool/masomo-core/core/school"
)

// CreateAssignment creates an assignment in a subject the actor teaches.
func (svc *Service) CreateAssignment(ctx context.Context, actor school.Actor, na NewAssignment) (a school.Assignment, err error) {
	na.Title = core.CleanString(na.Title)
	if err = svc.check(na); err != nil {
		return school.Assignment{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		tch, err := svc.teacherOf(ctx, tx, actor, na.SubjectID)
		if err != nil {
			return err
		}
		e, err := tx.Insert(ctx, school.Assignment{
			SubjectID:   na.SubjectID,
			Title:       na.Title,
			Description: na.Description,
			DueDate:     na.DueDate,
			CreatedBy:   tch.ID,
			Attachments: na.Attachments,
		})
		if err != nil {
			return err
		}
		a = e.(school.Assignment)
		return nil
	})
	return a, err
}

func (svc *Service) GetAssignment(ctx context.Context, actor school.Actor, id string) (school.Assignment, error) {
	return get[school.Assignment](ctx, svc, actor, id)
}

func (svc *Service) ListAssignments(ctx context.Context, actor school.Actor) ([]school.Assignment, error) {
	return list[school.Assignment](ctx, svc, actor, nil)
}

// DeleteAssignment deletes an assignment and its submissions (creator or admin).
func (svc *Service) DeleteAssignment(ctx context.Context, actor school.Actor, id string) error {
	return svc.remove(ctx, school.Ref{Kind: school.KindAssignment, ID: id}, func(tx school.Tx, e school.Entity) error {
		if actor.IsAdmin() {
			return nil
		}
		tch, err := svc.teacherByUser(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		if e.(school.Assignment).CreatedBy != tch.ID {
			return core.Forbidden("assignment " + id + " was created by another teacher")
		}
		return nil
	})
}

// Submit hands in the actor's work for an assignment of one of the subjects of the actor's class.
func (svc *Service) Submit(ctx context.Context, actor school.Actor, assignmentID string, ns NewSubmission) (sb school.Submission, err error) {
	if err = access.Require(actor, school.RoleStudent); err != nil {
		return school.Submission{}, err
	}
	if err = svc.check(ns); err != nil {
		return school.Submission{}, err
	}
	err = svc.view(ctx, actor, func(tx school.Tx, v access.Viewer) error {
		a, err := school.Get[school.Assignment](ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if err = access.Authorize(v, a); err != nil {
			return err
		}
		st, err := svc.studentByUser(ctx, tx, actor.UserID)
		if err != nil {
			return err
		}
		e, err := tx.Insert(ctx, school.Submission{AssignmentID: a.ID, StudentID: st.ID, FileURL: ns.FileURL})
		if err != nil {
			return err
		}
		sb = e.(school.Submission)
		return nil
	})
	return sb, err
}

// ListSubmissions returns the submissions of an assignment visible to the actor.
func (svc *Service) ListSubmissions(ctx context.Context, actor school.Actor, assignmentID string) (rows []school.Submission, err error) {
	err = svc.view(ctx, actor, func(tx school.Tx, v access.Viewer) error {
		a, err := school.Get[school.Assignment](ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if err = access.Authorize(v, a); err != nil {
			return err
		}
		all, err := school.List(ctx, tx, func(s school.Submission) bool { return s.AssignmentID == a.ID })
		if err != nil {
			return err
		}
		rows = access.Filter(v, all)
		return nil
	})
	return rows, err
}

// GradeSubmission grades a submission to an assignment of a subject the actor teaches.
func (svc *Service) GradeSubmission(ctx context.Context, actor school.Actor, id string, gs GradeSubmission) (sb school.Submission, err error) {
	if err = svc.check(gs); err != nil {
		return school.Submission{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		cur, err := school.Get[school.Submission](ctx, tx, id)
		if err != nil {
			return err
		}
		a, err := school.Get[school.Assignment](ctx, tx, cur.AssignmentID)
		if err != nil {
			return err
		}
		tch, err := svc.teacherOf(ctx, tx, actor, a.SubjectID)
		if err != nil {
			return err
		}
		sb, err = school.Patch(ctx, tx, id, func(s *school.Submission) error {
			if gs.Grade != nil {
				grade := *gs.Grade
				s.Grade = &grade
			}
			if gs.Feedback != nil {
				s.Feedback = *gs.Feedback
			}
			s.GradedBy = tch.ID
			return nil
		})
		return err
	})
	return sb, err
}
