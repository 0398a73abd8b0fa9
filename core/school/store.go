package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
)

// Junctions
const (
	SubjectTeachers Junction = "teacher_subjects" // teacher <-> subject
	SubjectClasses  Junction = "subject_classes"  // subject <-> class
)

type (
	// Junction names a many-to-many relation owned by subjects.
	Junction string

	// Link is one junction row: a subject and the teacher or class it is linked to.
	// In queries, empty fields match anything.
	Link struct {
		SubjectID string `json:"subjectId" yaml:"subject"`
		TargetID  string `json:"targetId" yaml:"target"`
	}

	// Filter is an optional List predicate.
	Filter func(Entity) bool

	// Tx is the row-level EntityStore contract. It knows nothing about roles or business rules.
	Tx interface {
		// Get returns the entity or a core.ErrNotFound error.
		Get(ctx context.Context, kind Kind, id string) (Entity, error)
		// List returns the entities of kind accepted by filter (nil accepts all), in ascending id order.
		List(ctx context.Context, kind Kind, filter Filter) ([]Entity, error)
		// Insert stores e, assigning an id and creation timestamp when missing (see Stamp).
		// A duplicate id is a core.ErrConflict error.
		Insert(ctx context.Context, e Entity) (Entity, error)
		// Update replaces the stored row with the same kind and id, or returns a core.ErrNotFound error.
		Update(ctx context.Context, e Entity) (Entity, error)
		// Delete removes the row or returns a core.ErrNotFound error.
		Delete(ctx context.Context, kind Kind, id string) error

		// Links returns the junction rows matching q, ordered by subject id then link order.
		Links(ctx context.Context, j Junction, q Link) ([]Link, error)
		// Link adds junction rows; existing rows are left untouched.
		Link(ctx context.Context, j Junction, links ...Link) error
		// Unlink removes the junction rows matching q and returns how many were removed.
		Unlink(ctx context.Context, j Junction, q Link) (int, error)

		// UpsertAttendance writes a keyed by (StudentID, SubjectID, Date). An existing row keeps its id and is
		// updated in place.
		UpsertAttendance(ctx context.Context, a Attendance) (Attendance, error)
	}

	// Store is a Tx whose operations each commit on their own, plus explicit transactions.
	Store interface {
		Tx
		// RunInTx runs fn in one transaction: either every write made through tx is committed or none is.
		RunInTx(ctx context.Context, fn func(tx Tx) error) error
		Close() error
	}
)

func (j Junction) String() string { return string(j) }

// Matches reports whether l satisfies the query q.
func (l Link) Matches(q Link) bool {
	return (q.SubjectID == "" || q.SubjectID == l.SubjectID) && (q.TargetID == "" || q.TargetID == l.TargetID)
}

// Get returns the entity of type T with id.
func Get[T Entity](ctx context.Context, tx Tx, id string) (T, error) {
	var zero T
	e, err := tx.Get(ctx, zero.EntityKind(), id)
	if err != nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, errors.Errorf("%s %q: unexpected type %T", zero.EntityKind(), id, e)
	}
	return t, nil
}

// List returns the entities of type T accepted by pred (nil accepts all).
func List[T Entity](ctx context.Context, tx Tx, pred func(T) bool) ([]T, error) {
	var zero T
	var filter Filter
	if pred != nil {
		filter = func(e Entity) bool {
			t, ok := e.(T)
			return ok && pred(t)
		}
	}
	es, err := tx.List(ctx, zero.EntityKind(), filter)
	if err != nil {
		return nil, err
	}
	ts := make([]T, 0, len(es))
	for _, e := range es {
		if t, ok := e.(T); ok {
			ts = append(ts, t)
		}
	}
	return ts, nil
}

// Find returns the first entity of type T accepted by pred, or a core.ErrNotFound error.
func Find[T Entity](ctx context.Context, tx Tx, pred func(T) bool) (T, error) {
	var zero T
	ts, err := List(ctx, tx, pred)
	if err != nil {
		return zero, err
	}
	if len(ts) == 0 {
		return zero, errors.Wrapf(core.ErrNotFound, "%s matching filter", zero.EntityKind())
	}
	return ts[0], nil
}

// Patch applies fn to the stored entity of type T with id and writes the result back.
func Patch[T Entity](ctx context.Context, tx Tx, id string, fn func(*T) error) (T, error) {
	var zero T
	t, err := Get[T](ctx, tx, id)
	if err != nil {
		return zero, err
	}
	if err = fn(&t); err != nil {
		return zero, err
	}
	e, err := tx.Update(ctx, t)
	if err != nil {
		return zero, err
	}
	return e.(T), nil
}

// IDs returns the ids of es.
func IDs[T Entity](es []T) []string {
	ids := make([]string, 0, len(es))
	for _, e := range es {
		ids = append(ids, e.EntityID())
	}
	return ids
}
