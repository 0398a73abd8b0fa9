package portal_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/portal"
	"github.com/trezcool/masomo-core/core/school"
)

func TestService_RegisterUser(t *testing.T) {
	each(t, func(t *testing.T, h harness) {
		t.Run("student", func(t *testing.T) {
			usr, err := h.svc.RegisterUser(ctx, admin, portal.NewUser{
				Name: " Kid ", Email: "KID@test.cd", Role: school.RoleStudent, ClassID: "c-2", ParentID: "u-parent",
			})
			require.NoError(t, err)
			assert.Equal(t, "Kid", usr.Name)
			assert.Equal(t, "kid@test.cd", usr.Email)
			assert.NoError(t, usr.CheckPassword(portal.DefaultPassword))

			st, err := school.Find(ctx, h.store, func(s school.Student) bool { return s.UserID == usr.ID })
			require.NoError(t, err)
			assert.Equal(t, "c-2", st.ClassID)
			assert.Equal(t, "u-parent", st.ParentID)
			assert.True(t, strings.HasPrefix(st.StudentCode, "STU-"), st.StudentCode)

			p, err := school.Get[school.User](ctx, h.store, "u-parent")
			require.NoError(t, err)
			assert.Equal(t, []string{"st-1", st.ID}, p.ParentOfStudentIDs)
		})

		t.Run("teacher", func(t *testing.T) {
			usr, err := h.svc.RegisterUser(ctx, admin, portal.NewUser{
				Name: "Physicist", Email: "phy@test.cd", Password: "secret1", Role: school.RoleTeacher, SubjectIDs: []string{"s-2"},
			})
			require.NoError(t, err)
			assert.NoError(t, usr.CheckPassword("secret1"))

			tch, err := school.Find(ctx, h.store, func(x school.Teacher) bool { return x.UserID == usr.ID })
			require.NoError(t, err)
			tch, err = h.svc.GetTeacher(ctx, admin, tch.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"s-2"}, tch.SubjectIDs)
		})

		t.Run("parent", func(t *testing.T) {
			usr, err := h.svc.RegisterUser(ctx, admin, portal.NewUser{
				Name: "Guardian", Email: "guardian@test.cd", Role: school.RoleParent, ParentOfStudentIDs: []string{"st-1"},
			})
			require.NoError(t, err)
			st, err := school.Get[school.Student](ctx, h.store, "st-1")
			require.NoError(t, err)
			assert.Equal(t, usr.ID, st.ParentID)
		})

		tests := []struct {
			name  string
			actor school.Actor
			nu    portal.NewUser
			check func(error) bool
		}{
			{"not admin", teacher, portal.NewUser{Name: "X", Email: "x@test.cd", Role: school.RoleStudent}, core.IsForbidden},
			{"duplicate email", admin, portal.NewUser{Name: "X", Email: " ADMIN@test.cd", Role: school.RoleAdmin}, core.IsConflict},
			{"bad role", admin, portal.NewUser{Name: "X", Email: "x@test.cd", Role: "janitor"}, core.IsValidation},
			{"bad email", admin, portal.NewUser{Name: "X", Email: "x", Role: school.RoleAdmin}, core.IsValidation},
			{"short password", admin, portal.NewUser{Name: "X", Email: "x@test.cd", Password: "123", Role: school.RoleAdmin}, core.IsValidation},
			{"unknown class", admin, portal.NewUser{Name: "X", Email: "x@test.cd", Role: school.RoleStudent, ClassID: "c-9"}, core.IsValidation},
			{"parent is not a parent", admin, portal.NewUser{Name: "X", Email: "x@test.cd", Role: school.RoleStudent, ParentID: "u-teacher"}, core.IsValidation},
			{"unknown child", admin, portal.NewUser{Name: "X", Email: "x@test.cd", Role: school.RoleParent, ParentOfStudentIDs: []string{"st-9"}}, core.IsValidation},
			{"unknown subject", admin, portal.NewUser{Name: "X", Email: "x@test.cd", Role: school.RoleTeacher, SubjectIDs: []string{"s-9"}}, core.IsValidation},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := h.svc.RegisterUser(ctx, tt.actor, tt.nu)
				assert.True(t, tt.check(err), "err = %v", err)
			})
		}

		_, err := school.Find(ctx, h.store, func(u school.User) bool { return u.Email == "x@test.cd" })
		assert.True(t, core.IsNotFound(err), "failed registrations leave no user behind")
	})
}

func TestService_UpdateUser(t *testing.T) {
	each(t, func(t *testing.T, h harness) {
		usr, err := h.svc.UpdateUser(ctx, teacher, "u-teacher", portal.UpdateUser{Name: "Mr Teacher"})
		require.NoError(t, err)
		assert.Equal(t, "Mr Teacher", usr.Name)
		tch, err := school.Get[school.Teacher](ctx, h.store, "t-1")
		require.NoError(t, err)
		assert.Equal(t, "Mr Teacher", tch.Name, "role record follows the user name")

		_, err = h.svc.UpdateUser(ctx, student, "u-teacher", portal.UpdateUser{Name: "Hacked"})
		assert.True(t, core.IsForbidden(err), "err = %v", err)
		_, err = h.svc.UpdateUser(ctx, admin, "u-teacher", portal.UpdateUser{Email: "Parent@test.cd"})
		assert.True(t, core.IsConflict(err), "err = %v", err)
		_, err = h.svc.UpdateUser(ctx, admin, "u-ghost", portal.UpdateUser{Name: "Ghost"})
		assert.True(t, core.IsNotFound(err), "err = %v", err)

		require.NoError(t, h.svc.SetPassword(ctx, student, "u-student", "new-secret"))
		usr, err = school.Get[school.User](ctx, h.store, "u-student")
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword("new-secret"))

		assert.True(t, core.IsValidation(h.svc.SetPassword(ctx, admin, "u-student", "short")))
		assert.True(t, core.IsForbidden(h.svc.SetPassword(ctx, parent, "u-student", "new-secret")))
	})
}

func TestService_usersVisibility(t *testing.T) {
	each(t, func(t *testing.T, h harness) {
		users, err := h.svc.ListUsers(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, []string{"u-admin", "u-parent", "u-student", "u-teacher"}, ids(users))

		users, err = h.svc.ListUsers(ctx, parent)
		require.NoError(t, err)
		assert.Equal(t, []string{"u-parent"}, ids(users))

		_, err = h.svc.GetUser(ctx, student, "u-teacher")
		assert.True(t, core.IsForbidden(err), "err = %v", err)

		students, err := h.svc.ListStudents(ctx, parent)
		require.NoError(t, err)
		assert.Equal(t, []string{"st-1"}, ids(students))

		teachers, err := h.svc.ListTeachers(ctx, student)
		require.NoError(t, err)
		require.Len(t, teachers, 1)
		assert.Equal(t, []string{"s-1", "s-2"}, teachers[0].SubjectIDs)
	})
}

func TestService_DeleteUser(t *testing.T) {
	each(t, func(t *testing.T, h harness) {
		assert.True(t, core.IsForbidden(h.svc.DeleteUser(ctx, teacher, "u-student")))
		assert.True(t, core.IsForbidden(h.svc.DeleteUser(ctx, admin, "u-admin")))
		assert.True(t, core.IsNotFound(h.svc.DeleteUser(ctx, admin, "u-ghost")))

		require.NoError(t, h.svc.DeleteUser(ctx, admin, "u-teacher"))
		_, err := school.Get[school.Teacher](ctx, h.store, "t-1")
		assert.True(t, core.IsNotFound(err), "err = %v", err)

		subject, err := h.svc.GetSubject(ctx, admin, "s-1")
		require.NoError(t, err)
		assert.Empty(t, subject.TeacherID)
		assert.Equal(t, []string{"c-2", "c-1"}, subject.ClassIDs, "class links survive")
	})
}

func TestService_UpdateTeacherSubjects(t *testing.T) {
	each(t, func(t *testing.T, h harness) {
		_, err := h.svc.UpdateTeacherSubjects(ctx, teacher, "t-1", nil)
		assert.True(t, core.IsForbidden(err), "err = %v", err)

		tch, err := h.svc.UpdateTeacherSubjects(ctx, admin, "t-1", []string{"s-2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"s-2"}, tch.SubjectIDs)
	})
}
