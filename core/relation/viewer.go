package relation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/access"
	"github.com/trezcool/masomo-core/core/school"
)

type viewerBuilder struct {
	g               *Graph
	studentByUser   map[string]school.Student
	teacherByUser   map[string]school.Teacher
	subjAssignments map[string][]string
}

func (r *Resolver) newViewerBuilder(ctx context.Context, tx school.Tx) (*viewerBuilder, error) {
	g, err := r.Load(ctx, tx)
	if err != nil {
		return nil, err
	}
	b := &viewerBuilder{
		g:               g,
		studentByUser:   make(map[string]school.Student),
		teacherByUser:   make(map[string]school.Teacher),
		subjAssignments: make(map[string][]string),
	}
	for _, st := range g.students {
		if cur, ok := b.studentByUser[st.UserID]; !ok || st.ID < cur.ID {
			b.studentByUser[st.UserID] = st
		}
	}
	teachers, err := school.List[school.Teacher](ctx, tx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "loading teachers")
	}
	for _, t := range teachers {
		if _, ok := b.teacherByUser[t.UserID]; !ok {
			b.teacherByUser[t.UserID] = t
		}
	}
	assignments, err := school.List[school.Assignment](ctx, tx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "loading assignments")
	}
	for _, a := range assignments {
		b.subjAssignments[a.SubjectID] = append(b.subjAssignments[a.SubjectID], a.ID)
	}
	return b, nil
}

func (b *viewerBuilder) viewer(usr school.User) access.Viewer {
	v := access.Viewer{Actor: usr.Actor()}
	switch usr.Role {
	case school.RoleStudent:
		v.ClassSubjectIDs = access.NewIDSet()
		if st, ok := b.studentByUser[usr.ID]; ok {
			v.StudentID = st.ID
			v.ClassID = st.ClassID
			v.ClassSubjectIDs.Add(b.g.ClassSubjects(st.ClassID)...)
		}
	case school.RoleTeacher:
		v.SubjectIDs = access.NewIDSet()
		v.TeacherClassIDs = access.NewIDSet()
		v.TeacherAssignmentIDs = access.NewIDSet()
		if t, ok := b.teacherByUser[usr.ID]; ok {
			v.TeacherID = t.ID
			for _, subjectID := range b.g.TeacherSubjects(t.ID) {
				v.SubjectIDs.Add(subjectID)
				v.TeacherAssignmentIDs.Add(b.subjAssignments[subjectID]...)
			}
			v.TeacherClassIDs.Add(b.g.TeacherClasses(t.ID)...)
		}
	case school.RoleParent:
		v.ChildIDs = access.NewIDSet(usr.ParentOfStudentIDs...)
		v.ChildClassIDs = access.NewIDSet()
		v.ChildSubjectIDs = access.NewIDSet()
		for _, id := range usr.ParentOfStudentIDs {
			if st, ok := b.g.Student(id); ok && st.ClassID != "" {
				v.ChildClassIDs.Add(st.ClassID)
				v.ChildSubjectIDs.Add(b.g.ClassSubjects(st.ClassID)...)
			}
		}
	}
	return v
}

// Viewer builds the viewer of actor from the data visible through tx. An actor without a user row (such as
// school.System) gets a viewer without relationships.
func (r *Resolver) Viewer(ctx context.Context, tx school.Tx, actor school.Actor) (access.Viewer, error) {
	if actor.IsAdmin() {
		return access.AdminViewer(actor), nil
	}
	usr, err := school.Get[school.User](ctx, tx, actor.UserID)
	switch {
	case core.IsNotFound(err):
		usr = school.User{ID: actor.UserID}
	case err != nil:
		return access.Viewer{}, err
	}
	usr.Role = actor.Role

	b, err := r.newViewerBuilder(ctx, tx)
	if err != nil {
		return access.Viewer{}, err
	}
	return b.viewer(usr), nil
}

// Viewers builds the viewers of users from one read of the relationships.
func (r *Resolver) Viewers(ctx context.Context, tx school.Tx, users []school.User) ([]access.Viewer, error) {
	b, err := r.newViewerBuilder(ctx, tx)
	if err != nil {
		return nil, err
	}
	viewers := make([]access.Viewer, 0, len(users))
	for _, usr := range users {
		viewers = append(viewers, b.viewer(usr))
	}
	return viewers, nil
}
