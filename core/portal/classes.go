package portal

import (
	"context"
	"strings"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/access"
	"github.com/trezcool/masomo-core/core/school"
)

// Classes

func (svc *Service) CreateClass(ctx context.Context, actor school.Actor, nc NewClass) (school.ClassGroup, error) {
	if err := access.Require(actor, school.RoleAdmin); err != nil {
		return school.ClassGroup{}, err
	}
	nc.Name = core.CleanString(nc.Name)
	if err := svc.check(nc); err != nil {
		return school.ClassGroup{}, err
	}
	e, err := svc.store.Insert(ctx, school.ClassGroup{Name: nc.Name, Level: core.CleanString(nc.Level)})
	if err != nil {
		return school.ClassGroup{}, err
	}
	c := e.(school.ClassGroup)
	c.TeacherIDs, c.StudentIDs = []string{}, []string{}
	return c, nil
}

func (svc *Service) UpdateClass(ctx context.Context, actor school.Actor, id string, uc UpdateClass) (c school.ClassGroup, err error) {
	if err = access.Require(actor, school.RoleAdmin); err != nil {
		return school.ClassGroup{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		c, err = school.Patch(ctx, tx, id, func(c *school.ClassGroup) error {
			if name := core.CleanString(uc.Name); name != "" {
				c.Name = name
			}
			if level := core.CleanString(uc.Level); level != "" {
				c.Level = level
			}
			return nil
		})
		if err != nil {
			return err
		}
		c, err = hydrate(ctx, svc, tx, c)
		return err
	})
	return c, err
}

func (svc *Service) ListClasses(ctx context.Context, actor school.Actor) ([]school.ClassGroup, error) {
	return hydrated[school.ClassGroup](ctx, svc, actor, nil)
}

func (svc *Service) GetClass(ctx context.Context, actor school.Actor, id string) (school.ClassGroup, error) {
	return hydratedOne[school.ClassGroup](ctx, svc, actor, id)
}

// DeleteClass deletes a class (admin only): its subject links, timetable and group messages go with it,
// its students and attendance rows lose their class, and announcements stop targeting it.
func (svc *Service) DeleteClass(ctx context.Context, actor school.Actor, id string) error {
	if err := access.Require(actor, school.RoleAdmin); err != nil {
		return err
	}
	_, err := svc.cascade.Delete(ctx, svc.store, school.Ref{Kind: school.KindClass, ID: id})
	return err
}

// Subjects

// subjectCode is the default code of a subject: the first three letters of its name, upper-cased.
func subjectCode(name string) string {
	r := []rune(name)
	if len(r) > 3 {
		r = r[:3]
	}
	return strings.ToUpper(string(r))
}

func (svc *Service) CreateSubject(ctx context.Context, actor school.Actor, ns NewSubject) (s school.Subject, err error) {
	if err = access.Require(actor, school.RoleAdmin); err != nil {
		return school.Subject{}, err
	}
	ns.Name = core.CleanString(ns.Name)
	if err = svc.check(ns); err != nil {
		return school.Subject{}, err
	}
	code := core.CleanString(ns.Code)
	if code == "" {
		code = subjectCode(ns.Name)
	}

	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		e, err := tx.Insert(ctx, school.Subject{Name: ns.Name, Code: code})
		if err != nil {
			return err
		}
		s = e.(school.Subject)

		var teacherID *string
		if ns.TeacherID != "" {
			teacherID = &ns.TeacherID
		}
		var classIDs *[]string
		if ns.ClassIDs != nil {
			classIDs = &ns.ClassIDs
		}
		if err = svc.resolver.LinkSubject(ctx, tx, s.ID, teacherID, classIDs); err != nil {
			return err
		}
		s, err = hydrate(ctx, svc, tx, s)
		return err
	})
	return s, err
}

// UpdateSubject renames a subject and replaces its teacher and classes (admin only).
func (svc *Service) UpdateSubject(ctx context.Context, actor school.Actor, id string, us UpdateSubject) (s school.Subject, err error) {
	if err = access.Require(actor, school.RoleAdmin); err != nil {
		return school.Subject{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		s, err = school.Patch(ctx, tx, id, func(s *school.Subject) error {
			if name := core.CleanString(us.Name); name != "" {
				s.Name = name
			}
			if code := core.CleanString(us.Code); code != "" {
				s.Code = code
			}
			return nil
		})
		if err != nil {
			return err
		}
		if us.TeacherID != nil || us.ClassIDs != nil {
			if err = svc.resolver.LinkSubject(ctx, tx, id, us.TeacherID, us.ClassIDs); err != nil {
				return err
			}
		}
		s, err = hydrate(ctx, svc, tx, s)
		return err
	})
	return s, err
}

func (svc *Service) ListSubjects(ctx context.Context, actor school.Actor) ([]school.Subject, error) {
	return hydrated[school.Subject](ctx, svc, actor, nil)
}

func (svc *Service) GetSubject(ctx context.Context, actor school.Actor, id string) (school.Subject, error) {
	return hydratedOne[school.Subject](ctx, svc, actor, id)
}

// DeleteSubject deletes a subject and its academic records (admin only).
func (svc *Service) DeleteSubject(ctx context.Context, actor school.Actor, id string) error {
	if err := access.Require(actor, school.RoleAdmin); err != nil {
		return err
	}
	_, err := svc.cascade.Delete(ctx, svc.store, school.Ref{Kind: school.KindSubject, ID: id})
	return err
}
