package filestore

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

type (
	// state is the whole dataset. Stored entities are never mutated in place, so clones may share them.
	state struct {
		rows  map[school.Kind]map[string]school.Entity
		links map[school.Junction]map[string][]string // subject id -> linked ids, in link order
	}

	tx struct {
		state *state
		now   func() time.Time
		dirty bool
	}
)

var (
	junctionTargets = map[school.Junction]school.Kind{
		school.SubjectTeachers: school.KindTeacher,
		school.SubjectClasses:  school.KindClass,
	}

	_ school.Tx = (*tx)(nil)
)

func newState() *state {
	st := &state{
		rows:  make(map[school.Kind]map[string]school.Entity, len(school.Kinds)),
		links: make(map[school.Junction]map[string][]string, len(junctionTargets)),
	}
	for _, k := range school.Kinds {
		st.rows[k] = make(map[string]school.Entity)
	}
	for j := range junctionTargets {
		st.links[j] = make(map[string][]string)
	}
	return st
}

func (st *state) clone() *state {
	c := newState()
	for k, rows := range st.rows {
		for id, e := range rows {
			c.rows[k][id] = e
		}
	}
	for j, links := range st.links {
		for subjectID, ids := range links {
			c.links[j][subjectID] = append([]string(nil), ids...)
		}
	}
	return c
}

// sorted returns the rows of kind in ascending id order.
func (st *state) sorted(kind school.Kind) []school.Entity {
	rows := st.rows[kind]
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	es := make([]school.Entity, 0, len(ids))
	for _, id := range ids {
		es = append(es, rows[id])
	}
	return es
}

func (t *tx) table(kind school.Kind) (map[string]school.Entity, error) {
	rows, ok := t.state.rows[kind]
	if !ok {
		return nil, errors.Errorf("unknown kind %q", kind)
	}
	return rows, nil
}

func (t *tx) Get(_ context.Context, kind school.Kind, id string) (school.Entity, error) {
	rows, err := t.table(kind)
	if err != nil {
		return nil, err
	}
	e, ok := rows[id]
	if !ok {
		return nil, core.NotFound(kind, id)
	}
	return school.Copy(e), nil
}

func (t *tx) List(_ context.Context, kind school.Kind, filter school.Filter) ([]school.Entity, error) {
	if _, err := t.table(kind); err != nil {
		return nil, err
	}
	rows := t.state.sorted(kind)
	es := make([]school.Entity, 0, len(rows))
	for _, e := range rows {
		if filter == nil || filter(e) {
			es = append(es, school.Copy(e))
		}
	}
	return es, nil
}

func (t *tx) Insert(_ context.Context, e school.Entity) (school.Entity, error) {
	rows, err := t.table(e.EntityKind())
	if err != nil {
		return nil, err
	}
	e = school.Stamp(school.Bare(school.Copy(e)), t.now())
	if _, exists := rows[e.EntityID()]; exists {
		return nil, core.Conflict(school.RefOf(e).String())
	}
	rows[e.EntityID()] = e
	t.dirty = true
	return school.Copy(e), nil
}

func (t *tx) Update(_ context.Context, e school.Entity) (school.Entity, error) {
	rows, err := t.table(e.EntityKind())
	if err != nil {
		return nil, err
	}
	if _, exists := rows[e.EntityID()]; !exists {
		return nil, core.NotFound(e.EntityKind(), e.EntityID())
	}
	e = school.Bare(school.Copy(e))
	rows[e.EntityID()] = e
	t.dirty = true
	return school.Copy(e), nil
}

func (t *tx) Delete(_ context.Context, kind school.Kind, id string) error {
	rows, err := t.table(kind)
	if err != nil {
		return err
	}
	if _, exists := rows[id]; !exists {
		return core.NotFound(kind, id)
	}
	delete(rows, id)
	for j, links := range t.state.links {
		switch {
		case kind == school.KindSubject:
			// junction rows are inline on the subject row
			delete(links, id)
		case junctionTargets[j] == kind:
			t.unlinkTarget(links, id)
		}
	}
	t.dirty = true
	return nil
}

// unlinkTarget drops the junction rows pointing at the deleted target id, like ON DELETE CASCADE.
func (t *tx) unlinkTarget(links map[string][]string, id string) {
	for subjectID, targetIDs := range links {
		if !containsString(targetIDs, id) {
			continue
		}
		kept := make([]string, 0, len(targetIDs)-1)
		for _, targetID := range targetIDs {
			if targetID != id {
				kept = append(kept, targetID)
			}
		}
		if len(kept) == 0 {
			delete(links, subjectID)
		} else {
			links[subjectID] = kept
		}
	}
}

func (t *tx) junction(j school.Junction) (map[string][]string, error) {
	links, ok := t.state.links[j]
	if !ok {
		return nil, errors.Errorf("unknown junction %q", j)
	}
	return links, nil
}

func (t *tx) Links(_ context.Context, j school.Junction, q school.Link) ([]school.Link, error) {
	links, err := t.junction(j)
	if err != nil {
		return nil, err
	}
	subjectIDs := make([]string, 0, len(links))
	for id := range links {
		subjectIDs = append(subjectIDs, id)
	}
	sort.Strings(subjectIDs)

	res := make([]school.Link, 0)
	for _, subjectID := range subjectIDs {
		for _, targetID := range links[subjectID] {
			if l := (school.Link{SubjectID: subjectID, TargetID: targetID}); l.Matches(q) {
				res = append(res, l)
			}
		}
	}
	return res, nil
}

func (t *tx) Link(_ context.Context, j school.Junction, links ...school.Link) error {
	jLinks, err := t.junction(j)
	if err != nil {
		return err
	}
	for _, l := range links {
		if _, ok := t.state.rows[school.KindSubject][l.SubjectID]; !ok {
			return core.NewFieldError("subjectId", "subject "+l.SubjectID+" does not exist")
		}
		targetKind := junctionTargets[j]
		if _, ok := t.state.rows[targetKind][l.TargetID]; !ok {
			return core.NewFieldError("targetId", string(targetKind)+" "+l.TargetID+" does not exist")
		}
		if !containsString(jLinks[l.SubjectID], l.TargetID) {
			jLinks[l.SubjectID] = append(jLinks[l.SubjectID], l.TargetID)
			t.dirty = true
		}
	}
	return nil
}

func (t *tx) Unlink(_ context.Context, j school.Junction, q school.Link) (int, error) {
	jLinks, err := t.junction(j)
	if err != nil {
		return 0, err
	}
	var n int
	for subjectID, targetIDs := range jLinks {
		kept := targetIDs[:0:0]
		for _, targetID := range targetIDs {
			if (school.Link{SubjectID: subjectID, TargetID: targetID}).Matches(q) {
				n++
				continue
			}
			kept = append(kept, targetID)
		}
		if len(kept) == 0 {
			delete(jLinks, subjectID)
		} else {
			jLinks[subjectID] = kept
		}
	}
	if n > 0 {
		t.dirty = true
	}
	return n, nil
}

func (t *tx) UpsertAttendance(ctx context.Context, a school.Attendance) (school.Attendance, error) {
	for _, e := range t.state.sorted(school.KindAttendance) {
		old := e.(school.Attendance)
		if old.StudentID == a.StudentID && old.SubjectID == a.SubjectID && old.Date == a.Date {
			a.ID = old.ID
			e, err := t.Update(ctx, a)
			if err != nil {
				return school.Attendance{}, err
			}
			return e.(school.Attendance), nil
		}
	}
	a.ID = ""
	e, err := t.Insert(ctx, a)
	if err != nil {
		return school.Attendance{}, err
	}
	return e.(school.Attendance), nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
