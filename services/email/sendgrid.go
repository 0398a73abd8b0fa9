package emailsvc

import (
	"context"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-core/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// maxInFlight bounds the concurrent requests of one SendMessages call.
const maxInFlight = 8

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	templates  *core.EmailTemplates
	logger     core.Logger
	api        func(req sendgridRequest) (int, string, error)
}

type sendgridRequest struct {
	key  string
	body []byte
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, templates *core.EmailTemplates, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		templates:  templates,
		logger:     logger,
		api:        callSendgrid,
	}
}

// SendMessages renders and sends messages in the background; failures are logged.
func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	go func() {
		if err := svc.sendAll(context.Background(), messages); err != nil {
			svc.logger.Error("sending emails", err)
		}
	}()
}

func (svc *sendgridService) sendAll(ctx context.Context, messages []*core.EmailMessage) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := svc.templates.Render(msg); err != nil {
				return errors.Wrapf(err, "rendering email to %s", joinAddresses(msg.To))
			}
			if !deliverable(msg) {
				return nil
			}
			return svc.send(*msg)
		})
	}
	return g.Wait()
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     a.Content.String(),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc *sendgridService) send(msg core.EmailMessage) error {
	status, body, err := svc.api(sendgridRequest{key: svc.key, body: sgmail.GetRequestBody(svc.prepare(msg))})
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if status >= http.StatusBadRequest {
		return errors.Errorf("sending email - status: %d - body: %s", status, body)
	}
	return nil
}

func callSendgrid(r sendgridRequest) (int, string, error) {
	req := sendgrid.GetRequest(r.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = r.body
	res, err := sendgrid.API(req)
	if err != nil {
		return 0, "", err
	}
	return res.StatusCode, res.Body, nil
}
