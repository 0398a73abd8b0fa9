package portal

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/access"
	"github.com/trezcool/masomo-core/core/school"
)

// checkTargets validates the audience of an announcement posted by actor.
func checkTargets(ctx context.Context, tx school.Tx, actor school.Actor, group school.TargetGroup, ids []string) error {
	if group == school.TargetAll {
		if !actor.IsAdmin() {
			return core.Forbidden("only admins may address everyone")
		}
		return nil
	}
	if len(ids) == 0 {
		return core.NewFieldError("targetIds", "at least one target is required")
	}
	for _, id := range ids {
		var err error
		switch group {
		case school.TargetRole:
			if !school.Role(id).Valid() {
				err = core.NewFieldError("targetIds", id+" is not a role")
			}
		case school.TargetClass:
			err = mustExist(ctx, tx, "targetIds", school.KindClass, id)
		case school.TargetSubject:
			err = mustExist(ctx, tx, "targetIds", school.KindSubject, id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PostAnnouncement publishes an announcement (admins and teachers). When notifications are enabled, its
// audience is emailed once it is stored.
func (svc *Service) PostAnnouncement(ctx context.Context, actor school.Actor, na NewAnnouncement) (an school.Announcement, err error) {
	if err = access.Require(actor, school.RoleAdmin, school.RoleTeacher); err != nil {
		return school.Announcement{}, err
	}
	na.Title = core.CleanString(na.Title)
	if err = svc.check(na); err != nil {
		return school.Announcement{}, err
	}
	if na.TargetGroup == "" {
		na.TargetGroup = school.TargetAll
	}
	if na.TargetGroup == school.TargetAll {
		na.TargetIDs = nil
	}

	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		if err := checkTargets(ctx, tx, actor, na.TargetGroup, na.TargetIDs); err != nil {
			return err
		}
		e, err := tx.Insert(ctx, school.Announcement{
			PostedBy:    actor.UserID,
			Title:       na.Title,
			Body:        na.Body,
			TargetGroup: na.TargetGroup,
			TargetIDs:   na.TargetIDs,
		})
		if err != nil {
			return err
		}
		an = e.(school.Announcement)
		return nil
	})
	if err != nil {
		return school.Announcement{}, err
	}

	if svc.conf.NotifyAnnouncements {
		if err := svc.notify(ctx, an); err != nil {
			svc.log.Error("notifying announcement audience", err, actor)
		}
	}
	return an, nil
}

func (svc *Service) GetAnnouncement(ctx context.Context, actor school.Actor, id string) (school.Announcement, error) {
	return get[school.Announcement](ctx, svc, actor, id)
}

// ListAnnouncements returns the announcements addressed to the actor, newest first.
func (svc *Service) ListAnnouncements(ctx context.Context, actor school.Actor) ([]school.Announcement, error) {
	return list[school.Announcement](ctx, svc, actor, nil)
}

// UpdateAnnouncement edits an announcement (author or admin).
func (svc *Service) UpdateAnnouncement(ctx context.Context, actor school.Actor, id string, ua UpdateAnnouncement) (an school.Announcement, err error) {
	if err = svc.check(ua); err != nil {
		return school.Announcement{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		an, err = school.Patch(ctx, tx, id, func(a *school.Announcement) error {
			if err := ownerOrAdmin(actor, a.PostedBy); err != nil {
				return err
			}
			if title := core.CleanString(ua.Title); title != "" {
				a.Title = title
			}
			if ua.Body != "" {
				a.Body = ua.Body
			}
			if ua.TargetGroup != "" {
				a.TargetGroup = ua.TargetGroup
			}
			if ua.TargetIDs != nil {
				a.TargetIDs = *ua.TargetIDs
			}
			if a.TargetGroup == school.TargetAll {
				a.TargetIDs = nil
			}
			if ua.TargetGroup != "" || ua.TargetIDs != nil {
				return checkTargets(ctx, tx, actor, a.TargetGroup, a.TargetIDs)
			}
			return nil
		})
		return err
	})
	return an, err
}

func (svc *Service) DeleteAnnouncement(ctx context.Context, actor school.Actor, id string) error {
	return svc.remove(ctx, school.Ref{Kind: school.KindAnnouncement, ID: id}, func(_ school.Tx, e school.Entity) error {
		return ownerOrAdmin(actor, e.(school.Announcement).PostedBy)
	})
}

type announcementEmail struct {
	RecipientName string
	PosterName    string
	Title         string
	Body          string
}

// Audience returns the users, other than its author, who may see an.
func (svc *Service) Audience(ctx context.Context, an school.Announcement) (users []school.User, err error) {
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		all, err := school.List(ctx, tx, func(u school.User) bool { return u.ID != an.PostedBy })
		if err != nil {
			return err
		}
		viewers, err := svc.resolver.Viewers(ctx, tx, all)
		if err != nil {
			return err
		}
		for i, v := range viewers {
			if access.Visible(v, an) {
				users = append(users, all[i])
			}
		}
		return nil
	})
	return users, err
}

// notify emails the audience of an, one message per recipient.
func (svc *Service) notify(ctx context.Context, an school.Announcement) error {
	users, err := svc.Audience(ctx, an)
	if err != nil {
		return errors.Wrap(err, "computing audience")
	}
	poster := "The administration"
	if usr, err := school.Get[school.User](ctx, svc.store, an.PostedBy); err == nil {
		poster = usr.Name
	}

	messages := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      an.Title,
			TemplateName: "announcement",
			TemplateData: announcementEmail{
				RecipientName: usr.Name,
				PosterName:    poster,
				Title:         an.Title,
				Body:          an.Body,
			},
		})
	}
	if len(messages) > 0 {
		svc.mailer.SendMessages(messages...)
	}
	return nil
}
