// Package notify delivers confirmation codes to account owners.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/and161185/accounts/internal/errs"
)

// Notifier sends a confirmation code to an address.
type Notifier interface {
	Send(ctx context.Context, address, subject, title, code string) error
}

// DefaultBody is the confirmation email used when no template file is configured.
const DefaultBody = `<!doctype html>
<html>
<body style="font-family:sans-serif">
<h2>{{.Name}}</h2>
<p>{{.Title}}</p>
<p style="font-size:28px;letter-spacing:6px"><b>{{.Code}}</b></p>
<p>If you did not request this, ignore this email.</p>
</body>
</html>
`

// Body fills the confirmation email template.
type Body struct {
	tpl  *template.Template
	name string
}

// NewBody parses src as an html/template with Name, Title and Code fields.
func NewBody(name, src string) (*Body, error) {
	tpl, err := template.New("confirmation").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	return &Body{tpl: tpl, name: name}, nil
}

// Render returns the HTML body for title and code.
func (b *Body) Render(title, code string) (string, error) {
	var buf bytes.Buffer
	err := b.tpl.Execute(&buf, struct{ Name, Title, Code string }{b.name, title, code})
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

// Log writes codes to the logger instead of sending them. Local development only.
type Log struct {
	log *zap.Logger
}

// NewLog constructs a logging notifier.
func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

var _ Notifier = (*Log)(nil)

// Send logs the code at debug level.
func (l *Log) Send(_ context.Context, address, subject, _, code string) error {
	if address == "" {
		return fmt.Errorf("%w: empty address", errs.ErrDelivery)
	}
	l.log.Debug("confirmation code",
		zap.String("to", address),
		zap.String("subject", subject),
		zap.String("code", code),
	)
	return nil
}
