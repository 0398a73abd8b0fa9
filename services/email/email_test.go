package emailsvc

import (
	"context"
	"encoding/json"
	"net/mail"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-core/core"
	testutil "github.com/trezcool/masomo-core/tests"
)

var conf = &core.Config{AppName: "Masomo", FrontendBaseURL: "http://school.test", TestMode: true}

type announcementData struct {
	RecipientName, PosterName, Title, Body string
}

func newMessage(to string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: to, Address: to + "@test.cd"}},
		Subject:      "Holiday",
		TemplateName: "announcement",
		TemplateData: announcementData{RecipientName: to, PosterName: "Admin", Title: "Holiday", Body: "No school"},
	}
}

func templates(t *testing.T) *core.EmailTemplates {
	t.Helper()
	tmpls, err := core.ParseEmailTemplates(conf)
	require.NoError(t, err)
	return tmpls
}

func TestMock_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(conf, templates(t), testutil.NewLogger(t))

	svc.SendMessages(newMessage("alice"), &core.EmailMessage{Subject: "nobody"}, newMessage("bob"))

	sent := svc.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "alice@test.cd", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Hello alice,")
	assert.Contains(t, sent[0].TextContent, "Admin posted a new announcement: Holiday")
	assert.Contains(t, sent[0].TextContent, "http://school.test/announcements")
	assert.Contains(t, sent[1].HTMLContent, "bob")

	svc.Reset()
	assert.Empty(t, svc.Sent())
}

func TestConsoleService_format(t *testing.T) {
	svc := NewConsoleServiceMock(conf, templates(t), testutil.NewLogger(t))
	msg := newMessage("alice")
	require.NoError(t, svc.prepare(msg))

	out := svc.format(*msg)
	assert.Contains(t, out, "Subject: [Masomo] Holiday\r\n")
	assert.Contains(t, out, `To: "alice" <alice@test.cd>`)
	assert.Contains(t, out, "multipart/alternative")
	assert.Contains(t, out, "text/html")
}

func TestSendgridService_sendAll(t *testing.T) {
	var (
		mu       sync.Mutex
		subjects []string
	)
	svc := NewSendgridService(conf, templates(t), testutil.NewLogger(t)).(*sendgridService)
	svc.api = func(r sendgridRequest) (int, string, error) {
		var body struct {
			Personalizations []struct {
				To []struct {
					Email string `json:"email"`
				} `json:"to"`
				Subject string `json:"subject"`
			} `json:"personalizations"`
		}
		if err := json.Unmarshal(r.body, &body); err != nil {
			return 0, "", err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, p := range body.Personalizations {
			subjects = append(subjects, p.To[0].Email+" "+p.Subject)
		}
		return 202, "", nil
	}

	msgs := make([]*core.EmailMessage, 0, 20)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		msgs = append(msgs, newMessage(name))
	}
	require.NoError(t, svc.sendAll(context.Background(), msgs))
	assert.Len(t, subjects, 12)
	assert.Contains(t, subjects, "a@test.cd [Masomo] Holiday")
}

func TestSendgridService_sendAllFailure(t *testing.T) {
	tests := []struct {
		name string
		api  func(r sendgridRequest) (int, string, error)
	}{
		{name: "transport", api: func(sendgridRequest) (int, string, error) { return 0, "", errors.New("dial tcp") }},
		{name: "status", api: func(sendgridRequest) (int, string, error) { return 400, "bad request", nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSendgridService(conf, templates(t), testutil.NewLogger(t)).(*sendgridService)
			svc.api = tt.api
			err := svc.sendAll(context.Background(), []*core.EmailMessage{newMessage("alice")})
			assert.Error(t, err)
		})
	}
}
