package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/config"
)

const subjectPrefix = "[Campus] "

// Message is a plain-text email.
type Message struct {
	To      mail.Address
	ReplyTo *mail.Address
	Subject string
	Text    string
}

// Mailer delivers messages synchronously.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid mailer when an API key is configured, otherwise a console mailer.
func New(cfg *config.Config, logger *logrus.Logger) Mailer {
	from := mail.Address{Name: "Campus", Address: cfg.MailFrom}
	if cfg.SendgridAPIKey == "" {
		return NewConsoleMailer(from, logger)
	}
	return NewSendgridMailer(cfg.SendgridAPIKey, from)
}

// SendgridMailer posts to the SendGrid v3 API.
type SendgridMailer struct {
	key      string
	from     *sgmail.Email
	Host     string
	Endpoint string
}

func NewSendgridMailer(key string, from mail.Address) *SendgridMailer {
	return &SendgridMailer{
		key:      key,
		from:     sgmail.NewEmail(from.Name, from.Address),
		Host:     "https://api.sendgrid.com",
		Endpoint: "/v3/mail/send",
	}
}

func (s *SendgridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = subjectPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	if msg.ReplyTo != nil {
		m.SetReplyTo(sgmail.NewEmail(msg.ReplyTo.Name, msg.ReplyTo.Address))
	}
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

func (s *SendgridMailer) Send(ctx context.Context, msg Message) error {
	req := sendgrid.GetRequest(s.key, s.Endpoint, s.Host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email - status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleMailer logs messages instead of sending them and keeps them for inspection.
type ConsoleMailer struct {
	from   mail.Address
	logger *logrus.Logger

	mu   sync.Mutex
	sent []Message
}

func NewConsoleMailer(from mail.Address, logger *logrus.Logger) *ConsoleMailer {
	return &ConsoleMailer{from: from, logger: logger}
}

func (c *ConsoleMailer) Send(_ context.Context, msg Message) error {
	body := new(strings.Builder)
	fmt.Fprintf(body, "From: %s\r\n", c.from.String())
	fmt.Fprintf(body, "To: %s\r\n", msg.To.String())
	if msg.ReplyTo != nil {
		fmt.Fprintf(body, "Reply-To: %s\r\n", msg.ReplyTo.String())
	}
	fmt.Fprintf(body, "Subject: %s\r\n\r\n%s\r\n", subjectPrefix+msg.Subject, msg.Text)
	c.logger.WithField("to", msg.To.Address).Info(body.String())

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

// Sent returns a copy of the delivered messages.
func (c *ConsoleMailer) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}
