package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/and161185/accounts/internal/errs"
)

// SMTPConfig addresses the outbound relay.
type SMTPConfig struct {
	Relay    string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends confirmation codes over SMTP.
type Mailer struct {
	client sender
	from   string
	body   *Body
}

// NewMailer builds an SMTP client with PLAIN auth over mandatory TLS.
func NewMailer(cfg SMTPConfig, body *Body) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	c, err := mail.NewClient(cfg.Relay, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return newMailer(c, cfg.From, body), nil
}

var _ Notifier = (*Mailer)(nil)

func newMailer(c sender, from string, body *Body) *Mailer {
	return &Mailer{client: c, from: from, body: body}
}

// Send renders the body and delivers it. Every failure wraps errs.ErrDelivery.
func (m *Mailer) Send(ctx context.Context, address, subject, title, code string) error {
	html, err := m.body.Render(title, code)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDelivery, err)
	}
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("%w: from: %v", errs.ErrDelivery, err)
	}
	if err := msg.To(address); err != nil {
		return fmt.Errorf("%w: to: %v", errs.ErrDelivery, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, title+"\n\n"+code+"\n")
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDelivery, err)
	}
	return nil
}
