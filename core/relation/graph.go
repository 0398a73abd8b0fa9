// Package relation derives the relationship fields that stores never persist (a teacher's subjects, a
// class's roster and teachers, a subject's teachers and classes) from the junction rows, writes those
// junction rows, and builds access viewers.
package relation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

// Resolver loads relationship graphs. Dangling junction rows are logged and left out.
type Resolver struct {
	log core.Logger
}

func NewResolver(log core.Logger) *Resolver {
	return &Resolver{log: log}
}

// Graph is a snapshot of every relationship, read in one transaction. Its derivations are pure.
type Graph struct {
	subjects map[string]bool
	teachers map[string]bool
	classes  map[string]bool

	subjectTeachers map[string][]string // link order
	teacherSubjects map[string][]string // subject id order
	subjectClasses  map[string][]string // link order
	classSubjects   map[string][]string // subject id order
	classStudents   map[string][]string // store order
	students        map[string]school.Student

	// dangling junction rows, per subject
	dangling map[school.Junction]map[string][]string
}

// Load reads the relationships visible through tx.
func (r *Resolver) Load(ctx context.Context, tx school.Tx) (*Graph, error) {
	g := &Graph{
		subjects:        make(map[string]bool),
		teachers:        make(map[string]bool),
		classes:         make(map[string]bool),
		subjectTeachers: make(map[string][]string),
		teacherSubjects: make(map[string][]string),
		subjectClasses:  make(map[string][]string),
		classSubjects:   make(map[string][]string),
		classStudents:   make(map[string][]string),
		students:        make(map[string]school.Student),
		dangling:        make(map[school.Junction]map[string][]string),
	}
	for kind, ids := range map[school.Kind]map[string]bool{
		school.KindSubject: g.subjects,
		school.KindTeacher: g.teachers,
		school.KindClass:   g.classes,
	} {
		es, err := tx.List(ctx, kind, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", kind)
		}
		for _, e := range es {
			ids[e.EntityID()] = true
		}
	}

	students, err := school.List[school.Student](ctx, tx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "loading students")
	}
	for _, st := range students {
		g.students[st.ID] = st
		if st.ClassID != "" {
			g.classStudents[st.ClassID] = append(g.classStudents[st.ClassID], st.ID)
		}
	}

	for _, j := range []struct {
		junction school.Junction
		targets  map[string]bool
		bySubj   map[string][]string
		byTarget map[string][]string
	}{
		{school.SubjectTeachers, g.teachers, g.subjectTeachers, g.teacherSubjects},
		{school.SubjectClasses, g.classes, g.subjectClasses, g.classSubjects},
	} {
		links, err := tx.Links(ctx, j.junction, school.Link{})
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", j.junction)
		}
		for _, l := range links {
			if !g.subjects[l.SubjectID] || !j.targets[l.TargetID] {
				r.log.Warn("dangling junction row", map[string]interface{}{
					"junction": j.junction.String(),
					"subject":  l.SubjectID,
					"target":   l.TargetID,
				})
				if g.dangling[j.junction] == nil {
					g.dangling[j.junction] = make(map[string][]string)
				}
				g.dangling[j.junction][l.SubjectID] = append(g.dangling[j.junction][l.SubjectID], l.TargetID)
				continue
			}
			j.bySubj[l.SubjectID] = append(j.bySubj[l.SubjectID], l.TargetID)
			j.byTarget[l.TargetID] = append(j.byTarget[l.TargetID], l.SubjectID)
		}
	}
	return g, nil
}

// TeacherSubjects returns the subjects linked to the teacher.
func (g *Graph) TeacherSubjects(teacherID string) []string {
	return clone(g.teacherSubjects[teacherID])
}

// SubjectTeachers returns every teacher linked to the subject, in link order.
func (g *Graph) SubjectTeachers(subjectID string) []string {
	return clone(g.subjectTeachers[subjectID])
}

// SubjectTeacher returns the first teacher linked to the subject, the one shown as "the" teacher.
func (g *Graph) SubjectTeacher(subjectID string) string {
	if ts := g.subjectTeachers[subjectID]; len(ts) > 0 {
		return ts[0]
	}
	return ""
}

// SubjectClasses returns the classes linked to the subject, in link order.
func (g *Graph) SubjectClasses(subjectID string) []string {
	return clone(g.subjectClasses[subjectID])
}

// ClassSubjects returns the subjects linked to the class.
func (g *Graph) ClassSubjects(classID string) []string {
	return clone(g.classSubjects[classID])
}

// ClassRoster returns the students whose class is classID.
func (g *Graph) ClassRoster(classID string) []string {
	return clone(g.classStudents[classID])
}

// ClassTeachers returns the teachers of any subject linked to the class (teacher -> subject -> class),
// without duplicates. It is computed from the current links on every call.
func (g *Graph) ClassTeachers(classID string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, subjectID := range g.classSubjects[classID] {
		for _, teacherID := range g.subjectTeachers[subjectID] {
			if !seen[teacherID] {
				seen[teacherID] = true
				ids = append(ids, teacherID)
			}
		}
	}
	return ids
}

// TeacherClasses returns the classes reachable through the teacher's subjects, without duplicates.
func (g *Graph) TeacherClasses(teacherID string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, subjectID := range g.teacherSubjects[teacherID] {
		for _, classID := range g.subjectClasses[subjectID] {
			if !seen[classID] {
				seen[classID] = true
				ids = append(ids, classID)
			}
		}
	}
	return ids
}

// Student returns the stored student with id.
func (g *Graph) Student(id string) (school.Student, bool) {
	st, ok := g.students[id]
	return st, ok
}

// Dangling returns the junction rows of the subject whose target no longer exists.
func (g *Graph) Dangling(j school.Junction, subjectID string) []string {
	return clone(g.dangling[j][subjectID])
}

func clone(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return append(make([]string, 0, len(ids)), ids...)
}
