package access

import (
	"sort"

	"github.com/trezcool/masomo-core/core/school"
)

// IDSet is a set of entity ids. The zero value is an empty set.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	s.Add(ids...)
	return s
}

func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Any reports whether at least one of ids is in s.
func (s IDSet) Any(ids []string) bool {
	for _, id := range ids {
		if s.Has(id) {
			return true
		}
	}
	return false
}

func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Viewer is an actor together with the relationships its visibility depends on. Viewers are built by the
// relation resolver; only the fields relevant to the actor's role are set.
type Viewer struct {
	school.Actor

	// student
	StudentID       string
	ClassID         string
	ClassSubjectIDs IDSet // subjects linked to the student's class

	// teacher
	TeacherID            string
	SubjectIDs           IDSet
	TeacherClassIDs      IDSet // classes linked to any of the teacher's subjects
	TeacherAssignmentIDs IDSet // assignments of the teacher's subjects

	// parent
	ChildIDs        IDSet
	ChildClassIDs   IDSet
	ChildSubjectIDs IDSet // subjects linked to the children's classes
}

// AdminViewer is the viewer of an admin actor, which needs no relationship.
func AdminViewer(actor school.Actor) Viewer {
	return Viewer{Actor: actor}
}
