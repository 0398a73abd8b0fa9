package portal

import (
	"context"
	"strconv"
	"strings"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/access"
	"github.com/trezcool/masomo-core/core/school"
)

// checkEmail returns a core.ErrConflict error when another user already has email.
func checkEmail(ctx context.Context, tx school.Tx, email, excludedID string) error {
	users, err := school.List(ctx, tx, func(u school.User) bool {
		return u.ID != excludedID && strings.EqualFold(u.Email, email)
	})
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return core.Conflict("a user with email " + email + " already exists")
	}
	return nil
}

// RegisterUser creates a user (admin only) together with its Student or Teacher record.
func (svc *Service) RegisterUser(ctx context.Context, actor school.Actor, nu NewUser) (usr school.User, err error) {
	if err = access.Require(actor, school.RoleAdmin); err != nil {
		return school.User{}, err
	}
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	if err = svc.check(nu); err != nil {
		return school.User{}, err
	}
	if nu.Password == "" {
		nu.Password = DefaultPassword
	}

	usr = school.User{Name: nu.Name, Email: nu.Email, Role: nu.Role}
	if err = usr.SetPassword(nu.Password); err != nil {
		return school.User{}, err
	}

	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		if err := checkEmail(ctx, tx, nu.Email, ""); err != nil {
			return err
		}
		switch nu.Role {
		case school.RoleStudent:
			if err := svc.checkStudentRefs(ctx, tx, nu); err != nil {
				return err
			}
		case school.RoleParent:
			for _, id := range nu.ParentOfStudentIDs {
				if err := mustExist(ctx, tx, "parentOfStudentIds", school.KindStudent, id); err != nil {
					return err
				}
			}
			usr.ParentOfStudentIDs = nu.ParentOfStudentIDs
		}

		e, err := tx.Insert(ctx, usr)
		if err != nil {
			return err
		}
		usr = e.(school.User)

		switch nu.Role {
		case school.RoleStudent:
			return svc.createStudent(ctx, tx, usr, nu)
		case school.RoleTeacher:
			tch, err := tx.Insert(ctx, school.Teacher{UserID: usr.ID, Name: usr.Name})
			if err != nil {
				return err
			}
			return svc.resolver.SetTeacherSubjects(ctx, tx, tch.EntityID(), nu.SubjectIDs)
		case school.RoleParent:
			for _, id := range usr.ParentOfStudentIDs {
				if _, err := school.Patch(ctx, tx, id, func(s *school.Student) error {
					s.ParentID = usr.ID
					return nil
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return school.User{}, err
	}
	return usr, nil
}

func (svc *Service) checkStudentRefs(ctx context.Context, tx school.Tx, nu NewUser) error {
	if nu.ClassID != "" {
		if err := mustExist(ctx, tx, "classId", school.KindClass, nu.ClassID); err != nil {
			return err
		}
	}
	if nu.ParentID != "" {
		parent, err := school.Get[school.User](ctx, tx, nu.ParentID)
		if core.IsNotFound(err) || (err == nil && parent.Role != school.RoleParent) {
			return core.NewFieldError("parentId", "user "+nu.ParentID+" is not a parent")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (svc *Service) createStudent(ctx context.Context, tx school.Tx, usr school.User, nu NewUser) error {
	code := nu.StudentCode
	if code == "" {
		code = "STU-" + strconv.FormatInt(svc.now().UnixMilli(), 10)
	}
	st, err := tx.Insert(ctx, school.Student{
		UserID:      usr.ID,
		Name:        usr.Name,
		ClassID:     nu.ClassID,
		ParentID:    nu.ParentID,
		StudentCode: code,
	})
	if err != nil {
		return err
	}
	if nu.ParentID == "" {
		return nil
	}
	_, err = school.Patch(ctx, tx, nu.ParentID, func(p *school.User) error {
		if !contains(p.ParentOfStudentIDs, st.EntityID()) {
			p.ParentOfStudentIDs = append(p.ParentOfStudentIDs, st.EntityID())
		}
		return nil
	})
	return err
}

func (svc *Service) GetUser(ctx context.Context, actor school.Actor, id string) (school.User, error) {
	return get[school.User](ctx, svc, actor, id)
}

// ListUsers returns every user to admins and the actor's own user to everyone else.
func (svc *Service) ListUsers(ctx context.Context, actor school.Actor) ([]school.User, error) {
	return list[school.User](ctx, svc, actor, nil)
}

// UpdateUser changes the name or email of a user (owner or admin).
func (svc *Service) UpdateUser(ctx context.Context, actor school.Actor, id string, uu UpdateUser) (usr school.User, err error) {
	uu.Name = core.CleanString(uu.Name)
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	if err = svc.check(uu); err != nil {
		return school.User{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		if _, err := school.Get[school.User](ctx, tx, id); err != nil {
			return err
		}
		if err := ownerOrAdmin(actor, id); err != nil {
			return err
		}
		if uu.Email != "" {
			if err := checkEmail(ctx, tx, uu.Email, id); err != nil {
				return err
			}
		}
		usr, err = school.Patch(ctx, tx, id, func(u *school.User) error {
			if uu.Name != "" {
				u.Name = uu.Name
			}
			if uu.Email != "" {
				u.Email = uu.Email
			}
			return nil
		})
		if err != nil || uu.Name == "" {
			return err
		}
		return syncRecordNames(ctx, tx, usr)
	})
	return usr, err
}

// syncRecordNames copies the user's name to its role records.
func syncRecordNames(ctx context.Context, tx school.Tx, usr school.User) error {
	students, err := school.List(ctx, tx, func(s school.Student) bool { return s.UserID == usr.ID })
	if err != nil {
		return err
	}
	for _, s := range students {
		s.Name = usr.Name
		if _, err = tx.Update(ctx, s); err != nil {
			return err
		}
	}
	teachers, err := school.List(ctx, tx, func(t school.Teacher) bool { return t.UserID == usr.ID })
	if err != nil {
		return err
	}
	for _, t := range teachers {
		t.Name = usr.Name
		if _, err = tx.Update(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// SetPassword replaces the password of a user (owner or admin).
func (svc *Service) SetPassword(ctx context.Context, actor school.Actor, id, pwd string) error {
	if err := ownerOrAdmin(actor, id); err != nil {
		return err
	}
	if len(pwd) < 6 {
		return core.NewFieldError("password", "must be at least 6 characters long")
	}
	return svc.store.RunInTx(ctx, func(tx school.Tx) error {
		_, err := school.Patch(ctx, tx, id, func(u *school.User) error {
			return u.SetPassword(pwd)
		})
		return err
	})
}

// DeleteUser deletes a user and everything depending on it (admin only).
func (svc *Service) DeleteUser(ctx context.Context, actor school.Actor, id string) error {
	if err := access.Require(actor, school.RoleAdmin); err != nil {
		return err
	}
	if id == actor.UserID {
		return core.Forbidden("admins may not delete themselves")
	}
	_, err := svc.cascade.Delete(ctx, svc.store, school.Ref{Kind: school.KindUser, ID: id})
	return err
}

// Students & Teachers

func (svc *Service) ListStudents(ctx context.Context, actor school.Actor) ([]school.Student, error) {
	return list[school.Student](ctx, svc, actor, nil)
}

func (svc *Service) GetStudent(ctx context.Context, actor school.Actor, id string) (school.Student, error) {
	return get[school.Student](ctx, svc, actor, id)
}

func (svc *Service) ListTeachers(ctx context.Context, actor school.Actor) ([]school.Teacher, error) {
	return hydrated[school.Teacher](ctx, svc, actor, nil)
}

func (svc *Service) GetTeacher(ctx context.Context, actor school.Actor, id string) (school.Teacher, error) {
	return hydratedOne[school.Teacher](ctx, svc, actor, id)
}

// UpdateTeacherSubjects makes subjectIDs the subjects of a teacher (admin only).
func (svc *Service) UpdateTeacherSubjects(ctx context.Context, actor school.Actor, id string, subjectIDs []string) (tch school.Teacher, err error) {
	if err = access.Require(actor, school.RoleAdmin); err != nil {
		return school.Teacher{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		if err := svc.resolver.SetTeacherSubjects(ctx, tx, id, subjectIDs); err != nil {
			return err
		}
		if tch, err = school.Get[school.Teacher](ctx, tx, id); err != nil {
			return err
		}
		tch, err = hydrate(ctx, svc, tx, tch)
		return err
	})
	return tch, err
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
