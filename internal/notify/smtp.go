package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/noivosapp/go-wedding-backend/internal/sysutil"
)

// SMTPConfig carries the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPProvider sends mail through a plain SMTP relay.
type SMTPProvider struct {
	cfg SMTPConfig
}

// NewSMTP builds an SMTPProvider from cfg.
func NewSMTP(cfg SMTPConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

// Send implements Provider. The sender falls back to the SMTP username when
// no explicit From address is configured.
func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	from := sysutil.FirstNonEmpty(p.cfg.From, p.cfg.Username)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s", to[0], subject, mime, htmlBody))

	return smtp.SendMail(addr, auth, from, to, msg)
}
