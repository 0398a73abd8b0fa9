package portal

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

// groupKind resolves the kind of a message group, inferring it from the stored rows when typ is empty.
func groupKind(ctx context.Context, tx school.Tx, id string, typ school.GroupType) (school.GroupType, error) {
	candidates := []school.GroupType{school.GroupClass, school.GroupSubject}
	if typ != "" {
		candidates = []school.GroupType{typ}
	}
	kinds := map[school.GroupType]school.Kind{
		school.GroupClass:   school.KindClass,
		school.GroupSubject: school.KindSubject,
	}
	for _, c := range candidates {
		_, err := tx.Get(ctx, kinds[c], id)
		if err == nil {
			return c, nil
		}
		if !core.IsNotFound(err) {
			return "", err
		}
	}
	return "", core.NewFieldError("groupId", "group "+id+" does not exist")
}

// SendMessage sends a direct message (ToUser) or a message to a class or subject group.
func (svc *Service) SendMessage(ctx context.Context, actor school.Actor, nm NewMessage) (m school.Message, err error) {
	if err = svc.check(nm); err != nil {
		return school.Message{}, err
	}
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		msg := school.Message{From: actor.UserID, Body: nm.Body}
		if nm.ToUser != "" {
			if err := mustExist(ctx, tx, "toUser", school.KindUser, nm.ToUser); err != nil {
				return err
			}
			msg.To = nm.ToUser
		} else {
			typ, err := groupKind(ctx, tx, nm.GroupID, nm.GroupType)
			if err != nil {
				return err
			}
			msg.GroupID, msg.GroupType = nm.GroupID, typ
		}
		e, err := tx.Insert(ctx, msg)
		if err != nil {
			return err
		}
		m = e.(school.Message)
		return nil
	})
	return m, err
}

// ListMessages returns the messages the actor sent, received or may read through a group, newest first.
func (svc *Service) ListMessages(ctx context.Context, actor school.Actor) ([]school.Message, error) {
	return list[school.Message](ctx, svc, actor, nil)
}

// Conversation returns the direct messages between the actor and userID, oldest first.
func (svc *Service) Conversation(ctx context.Context, actor school.Actor, userID string) ([]school.Message, error) {
	msgs, err := list(ctx, svc, actor, func(m school.Message) bool {
		return (m.From == actor.UserID && m.To == userID) || (m.From == userID && m.To == actor.UserID)
	})
	if err != nil {
		return nil, err
	}
	return chronological(msgs), nil
}

// GroupMessages returns the messages posted to a class or subject group the actor may read, oldest first.
func (svc *Service) GroupMessages(ctx context.Context, actor school.Actor, groupID string) ([]school.Message, error) {
	msgs, err := list(ctx, svc, actor, func(m school.Message) bool {
		return m.GroupID != "" && m.GroupID == groupID
	})
	if err != nil {
		return nil, err
	}
	return chronological(msgs), nil
}

func chronological(msgs []school.Message) []school.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].Date.Before(msgs[j].Date)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

// MarkRead marks a direct message as read. Only its recipient may do so.
func (svc *Service) MarkRead(ctx context.Context, actor school.Actor, id string) (m school.Message, err error) {
	err = svc.store.RunInTx(ctx, func(tx school.Tx) error {
		m, err = school.Patch(ctx, tx, id, func(msg *school.Message) error {
			if msg.To == "" || msg.To != actor.UserID {
				return core.Forbidden("only the recipient may mark message " + id + " as read")
			}
			msg.Read = true
			return nil
		})
		return err
	})
	return m, err
}
