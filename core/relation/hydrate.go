package relation

import "github.com/trezcool/masomo-core/core/school"

// Teacher fills the teacher's subjects.
func (g *Graph) Teacher(t school.Teacher) school.Teacher {
	t.SubjectIDs = orEmpty(g.TeacherSubjects(t.ID))
	return t
}

// Class fills the class's teachers and roster.
func (g *Graph) Class(c school.ClassGroup) school.ClassGroup {
	c.TeacherIDs = orEmpty(g.ClassTeachers(c.ID))
	c.StudentIDs = orEmpty(g.ClassRoster(c.ID))
	return c
}

// Subject fills the subject's teachers (the first one being its teacher) and classes.
func (g *Graph) Subject(s school.Subject) school.Subject {
	s.TeacherIDs = orEmpty(g.SubjectTeachers(s.ID))
	s.TeacherID = g.SubjectTeacher(s.ID)
	s.ClassIDs = orEmpty(g.SubjectClasses(s.ID))
	return s
}

// Hydrate fills the derived fields of e; kinds without derived fields are returned unchanged.
func (g *Graph) Hydrate(e school.Entity) school.Entity {
	switch v := e.(type) {
	case school.Teacher:
		return g.Teacher(v)
	case school.ClassGroup:
		return g.Class(v)
	case school.Subject:
		return g.Subject(v)
	}
	return e
}

// Hydrate fills the derived fields of every row.
func Hydrate[T school.Entity](g *Graph, rows []T) []T {
	res := make([]T, 0, len(rows))
	for _, r := range rows {
		res = append(res, g.Hydrate(r).(T))
	}
	return res
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
