package portal_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/portal"
	"github.com/trezcool/masomo-core/core/school"
	emailsvc "github.com/trezcool/masomo-core/services/email"
	"github.com/trezcool/masomo-core/storage/storetest"
	testutil "github.com/trezcool/masomo-core/tests"
)

var (
	ctx = context.Background()

	admin   = school.Actor{UserID: "u-admin", Role: school.RoleAdmin}
	teacher = school.Actor{UserID: "u-teacher", Role: school.RoleTeacher}
	student = school.Actor{UserID: "u-student", Role: school.RoleStudent}
	parent  = school.Actor{UserID: "u-parent", Role: school.RoleParent}
)

type harness struct {
	svc    *portal.Service
	store  school.Store
	mailer *emailsvc.Mock
}

// newHarness returns a service over a store seeded with storetest.Fixture.
func newHarness(t *testing.T, open func(t *testing.T) school.Store, notify bool) harness {
	t.Helper()
	store := open(t)
	require.NoError(t, store.RunInTx(ctx, func(tx school.Tx) error { return storetest.Seed(ctx, tx) }))

	conf := &core.Config{AppName: "Masomo", FrontendBaseURL: "http://school.test", TestMode: true, NotifyAnnouncements: notify}
	tmpls, err := core.ParseEmailTemplates(conf)
	require.NoError(t, err)
	mailer := emailsvc.NewConsoleServiceMock(conf, tmpls, testutil.NewLogger(t))

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	svc := portal.NewService(store, validate, translator, mailer, conf, testutil.NewLogger(t))
	return harness{svc: svc, store: store, mailer: mailer}
}

// each runs fn against a freshly seeded harness of every backend.
func each(t *testing.T, fn func(t *testing.T, h harness)) {
	for _, b := range testutil.Backends {
		t.Run(b.Name, func(t *testing.T) {
			fn(t, newHarness(t, b.Open, false))
		})
	}
}

func ids[T school.Entity](rows []T) []string { return school.IDs(rows) }

func TestService_messages(t *testing.T) {
	each(t, func(t *testing.T, h harness) {
		direct, err := h.svc.SendMessage(ctx, parent, portal.NewMessage{ToUser: "u-teacher", Body: "Thanks"})
		require.NoError(t, err)
		assert.Equal(t, "u-parent", direct.From)
		assert.False(t, direct.Read)

		group, err := h.svc.SendMessage(ctx, teacher, portal.NewMessage{GroupID: "s-2", Body: "Lab on friday"})
		require.NoError(t, err)
		assert.Equal(t, school.GroupSubject, group.GroupType, "group type is inferred")

		_, err = h.svc.SendMessage(ctx, teacher, portal.NewMessage{GroupID: "nope", Body: "?"})
		assert.True(t, core.IsValidation(err), "unknown group: err = %v", err)
		_, err = h.svc.SendMessage(ctx, teacher, portal.NewMessage{ToUser: "u-ghost", Body: "?"})
		assert.True(t, core.IsValidation(err), "unknown recipient: err = %v", err)
		_, err = h.svc.SendMessage(ctx, teacher, portal.NewMessage{Body: "nobody"})
		assert.True(t, core.IsValidation(err), "no recipient: err = %v", err)

		msgs, err := h.svc.ListMessages(ctx, student)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"m-2", group.ID}, ids(msgs), "class and subject groups of the student")

		msgs, err = h.svc.ListMessages(ctx, admin)
		require.NoError(t, err)
		assert.Empty(t, msgs, "admins only see their own conversations")

		tests := []struct {
			name    string
			actor   school.Actor
			groupID string
			want    []string
		}{
			{"class member", student, "c-1", []string{"m-2"}},
			{"subject member", student, "s-2", []string{group.ID}},
			{"subject teacher", teacher, "s-2", []string{group.ID}},
			{"outsider", admin, "c-1", []string{}},
			{"not a group", teacher, "u-parent", []string{}},
		}
		for _, tt := range tests {
			t.Run("group "+tt.name, func(t *testing.T) {
				msgs, err := h.svc.GroupMessages(ctx, tt.actor, tt.groupID)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(msgs))
			})
		}

		conv, err := h.svc.Conversation(ctx, teacher, "u-parent")
		require.NoError(t, err)
		assert.Equal(t, []string{"m-1", direct.ID}, ids(conv), "oldest first")

		_, err = h.svc.MarkRead(ctx, parent, direct.ID)
		assert.True(t, core.IsForbidden(err), "sender: err = %v", err)
		_, err = h.svc.MarkRead(ctx, teacher, "m-2")
		assert.True(t, core.IsForbidden(err), "group message: err = %v", err)
		read, err := h.svc.MarkRead(ctx, teacher, direct.ID)
		require.NoError(t, err)
		assert.True(t, read.Read)
	})
}

func TestService_timetable(t *testing.T) {
	each(t, func(t *testing.T, h harness) {
		slot := portal.NewTimetableEntry{ClassID: "c-1", SubjectID: "s-2", TeacherID: "t-1", Day: "Tuesday", StartTime: "10:00", EndTime: "11:00"}

		_, err := h.svc.CreateTimetableEntry(ctx, teacher, slot)
		assert.True(t, core.IsForbidden(err), "err = %v", err)

		entry, err := h.svc.CreateTimetableEntry(ctx, admin, slot)
		require.NoError(t, err)
		assert.Equal(t, "tuesday", entry.Day)

		tests := []struct {
			name string
			edit func(e *portal.NewTimetableEntry)
		}{
			{name: "subject not in class", edit: func(e *portal.NewTimetableEntry) { e.ClassID = "c-2"; e.SubjectID = "s-2" }},
			{name: "unknown teacher", edit: func(e *portal.NewTimetableEntry) { e.TeacherID = "t-9" }},
			{name: "end before start", edit: func(e *portal.NewTimetableEntry) { e.EndTime = "09:30" }},
			{name: "bad day", edit: func(e *portal.NewTimetableEntry) { e.Day = "someday" }},
			{name: "bad time", edit: func(e *portal.NewTimetableEntry) { e.StartTime = "25:00" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				e := slot
				tt.edit(&e)
				_, err := h.svc.CreateTimetableEntry(ctx, admin, e)
				assert.True(t, core.IsValidation(err), "err = %v", err)
			})
		}

		room := " A1 "
		entry, err = h.svc.UpdateTimetableEntry(ctx, admin, entry.ID, portal.UpdateTimetableEntry{Day: "MONDAY", Room: &room})
		require.NoError(t, err)
		assert.Equal(t, "monday", entry.Day)
		assert.Equal(t, "A1", entry.Room)

		_, err = h.svc.UpdateTimetableEntry(ctx, admin, entry.ID, portal.UpdateTimetableEntry{EndTime: "09:00"})
		assert.True(t, core.IsValidation(err), "err = %v", err)

		rows, err := h.svc.ListTimetable(ctx, student, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"tt-1", entry.ID}, ids(rows), "monday 08:00 then monday 10:00")

		rows, err = h.svc.ListTimetable(ctx, admin, "c-2")
		require.NoError(t, err)
		assert.Empty(t, rows)

		require.NoError(t, h.svc.DeleteTimetableEntry(ctx, admin, entry.ID))
		err = h.svc.DeleteTimetableEntry(ctx, admin, entry.ID)
		assert.True(t, core.IsNotFound(err), "err = %v", err)
	})
}
