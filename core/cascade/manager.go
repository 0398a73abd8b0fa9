package cascade

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

type Manager struct {
	log core.Logger
}

func NewManager(log core.Logger) *Manager {
	return &Manager{log: log}
}

// Delete deletes ref and its dependents in one transaction of store and returns the applied plan.
// Nothing is written unless every step succeeds.
func (m *Manager) Delete(ctx context.Context, store school.Store, ref school.Ref) (plan *Plan, err error) {
	err = store.RunInTx(ctx, func(tx school.Tx) error {
		plan, err = m.DeleteTx(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// DeleteTx plans and applies the deletion of ref inside the caller's transaction.
func (m *Manager) DeleteTx(ctx context.Context, tx school.Tx, ref school.Ref) (*Plan, error) {
	plan, err := Build(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if err = Apply(ctx, tx, plan); err != nil {
		return nil, err
	}
	if !plan.Empty() {
		m.log.Info("cascade deletion", map[string]interface{}{
			"root":    ref.String(),
			"updates": len(plan.Updates),
			"unlinks": len(plan.Unlinks),
			"deletes": len(plan.Deletes),
		})
	}
	return plan, nil
}

// Apply writes plan through tx: updates, then unlinks, then deletions in plan order.
func Apply(ctx context.Context, tx school.Tx, plan *Plan) error {
	for _, e := range plan.Updates {
		if _, err := tx.Update(ctx, e); err != nil {
			return errors.Wrapf(err, "updating %s", school.RefOf(e))
		}
	}
	for _, u := range plan.Unlinks {
		if _, err := tx.Unlink(ctx, u.Junction, u.Link); err != nil {
			return errors.Wrapf(err, "unlinking %s", u.Junction)
		}
	}
	for _, ref := range plan.Deletes {
		if err := tx.Delete(ctx, ref.Kind, ref.ID); err != nil {
			return errors.Wrapf(err, "deleting %s", ref)
		}
	}
	return nil
}
