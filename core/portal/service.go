// Package portal implements the request-level operations of the school portal. Every operation runs on
// behalf of an actor: writes check the actor's role and ownership, reads return only what the actor may see.
package portal

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/access"
	"github.com/trezcool/masomo-core/core/cascade"
	"github.com/trezcool/masomo-core/core/relation"
	"github.com/trezcool/masomo-core/core/school"
)

const dateLayout = "2006-01-02"

type Service struct {
	store      school.Store
	resolver   *relation.Resolver
	cascade    *cascade.Manager
	validate   *validator.Validate
	translator ut.Translator
	mailer     core.EmailService
	conf       *core.Config
	log        core.Logger
	nowFunc    func() time.Time
}

func NewService(
	store school.Store,
	validate *validator.Validate,
	translator ut.Translator,
	mailer core.EmailService,
	conf *core.Config,
	log core.Logger,
) *Service {
	return &Service{
		store:      store,
		resolver:   relation.NewResolver(log),
		cascade:    cascade.NewManager(log),
		validate:   validate,
		translator: translator,
		mailer:     mailer,
		conf:       conf,
		log:        log,
		nowFunc:    time.Now,
	}
}

func (svc *Service) now() time.Time { return svc.nowFunc().UTC() }

func (svc *Service) check(input interface{}) error {
	if err := svc.validate.Struct(input); err != nil {
		return core.TranslateErrors(err, svc.translator)
	}
	return nil
}

// view runs fn in one transaction with the actor's viewer.
func (svc *Service) view(ctx context.Context, actor school.Actor, fn func(tx school.Tx, v access.Viewer) error) error {
	return svc.store.RunInTx(ctx, func(tx school.Tx) error {
		v, err := svc.resolver.Viewer(ctx, tx, actor)
		if err != nil {
			return err
		}
		return fn(tx, v)
	})
}

// list returns the rows of T accepted by pred that the actor may see.
func list[T school.Entity](ctx context.Context, svc *Service, actor school.Actor, pred func(T) bool) (rows []T, err error) {
	err = svc.view(ctx, actor, func(tx school.Tx, v access.Viewer) error {
		all, err := school.List(ctx, tx, pred)
		if err != nil {
			return err
		}
		rows = access.Filter(v, all)
		return nil
	})
	return rows, err
}

// get returns the row of T with id, or a core.ErrForbidden error when the actor may not see it.
func get[T school.Entity](ctx context.Context, svc *Service, actor school.Actor, id string) (row T, err error) {
	err = svc.view(ctx, actor, func(tx school.Tx, v access.Viewer) error {
		if row, err = school.Get[T](ctx, tx, id); err != nil {
			return err
		}
		return access.Authorize(v, row)
	})
	return row, err
}

// hydrated is list for kinds with derived fields.
func hydrated[T school.Entity](ctx context.Context, svc *Service, actor school.Actor, pred func(T) bool) (rows []T, err error) {
	err = svc.view(ctx, actor, func(tx school.Tx, v access.Viewer) error {
		g, err := svc.resolver.Load(ctx, tx)
		if err != nil {
			return err
		}
		all, err := school.List(ctx, tx, pred)
		if err != nil {
			return err
		}
		rows = relation.Hydrate(g, access.Filter(v, all))
		return nil
	})
	return rows, err
}

func hydratedOne[T school.Entity](ctx context.Context, svc *Service, actor school.Actor, id string) (row T, err error) {
	err = svc.view(ctx, actor, func(tx school.Tx, v access.Viewer) error {
		if row, err = school.Get[T](ctx, tx, id); err != nil {
			return err
		}
		if err = access.Authorize(v, row); err != nil {
			return err
		}
		row, err = hydrate(ctx, svc, tx, row)
		return err
	})
	return row, err
}

func hydrate[T school.Entity](ctx context.Context, svc *Service, tx school.Tx, row T) (T, error) {
	g, err := svc.resolver.Load(ctx, tx)
	if err != nil {
		return row, err
	}
	return g.Hydrate(row).(T), nil
}

// remove deletes ref and its dependents once allowed approves the stored row.
func (svc *Service) remove(ctx context.Context, ref school.Ref, allowed func(tx school.Tx, e school.Entity) error) error {
	return svc.store.RunInTx(ctx, func(tx school.Tx) error {
		e, err := tx.Get(ctx, ref.Kind, ref.ID)
		if err != nil {
			return err
		}
		if err = allowed(tx, e); err != nil {
			return err
		}
		_, err = svc.cascade.DeleteTx(ctx, tx, ref)
		return err
	})
}

// teacherOf returns the actor's teacher record, which must teach subjectID.
func (svc *Service) teacherOf(ctx context.Context, tx school.Tx, actor school.Actor, subjectID string) (school.Teacher, error) {
	if err := access.Require(actor, school.RoleTeacher); err != nil {
		return school.Teacher{}, err
	}
	tch, err := svc.teacherByUser(ctx, tx, actor.UserID)
	if err != nil {
		return school.Teacher{}, err
	}
	g, err := svc.resolver.Load(ctx, tx)
	if err != nil {
		return school.Teacher{}, err
	}
	for _, id := range g.TeacherSubjects(tch.ID) {
		if id == subjectID {
			return tch, nil
		}
	}
	return school.Teacher{}, core.Forbidden("teacher " + tch.ID + " does not teach subject " + subjectID)
}

func (svc *Service) teacherByUser(ctx context.Context, tx school.Tx, userID string) (school.Teacher, error) {
	tch, err := school.Find(ctx, tx, func(t school.Teacher) bool { return t.UserID == userID })
	if core.IsNotFound(err) {
		return school.Teacher{}, core.Forbidden("user " + userID + " has no teacher record")
	}
	return tch, err
}

func (svc *Service) studentByUser(ctx context.Context, tx school.Tx, userID string) (school.Student, error) {
	st, err := school.Find(ctx, tx, func(s school.Student) bool { return s.UserID == userID })
	if core.IsNotFound(err) {
		return school.Student{}, core.Forbidden("user " + userID + " has no student record")
	}
	return st, err
}

// mustExist returns a validation error on field when kind has no row id.
func mustExist(ctx context.Context, tx school.Tx, field string, kind school.Kind, id string) error {
	_, err := tx.Get(ctx, kind, id)
	if core.IsNotFound(err) {
		return core.NewFieldError(field, string(kind)+" "+id+" does not exist")
	}
	return err
}

// ownerOrAdmin allows admins and the actor owning the row.
func ownerOrAdmin(actor school.Actor, ownerID string) error {
	if actor.IsAdmin() || (ownerID != "" && ownerID == actor.UserID) {
		return nil
	}
	return core.Forbidden(string(actor.Role) + " " + actor.UserID + " is not the owner")
}
