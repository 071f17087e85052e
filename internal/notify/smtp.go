package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
)

// SMTPConfig carries connection and addressing settings for SMTPSink.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

var bodyTemplate = template.Must(template.New("notify").Parse(
	`Job {{.JobName}} run {{.RunID}}: {{.Status}} at {{.At}}
{{.Message}}
`))

// SMTPSink sends one Event per email via stdlib net/smtp. It holds no
// connection open between sends; batching and retry are BatchSink's job.
type SMTPSink struct {
	cfg SMTPConfig
}

// NewSMTPSink builds an SMTPSink from cfg.
func NewSMTPSink(cfg SMTPConfig) *SMTPSink {
	return &SMTPSink{cfg: cfg}
}

// Notify renders e and sends it to every configured recipient.
func (s *SMTPSink) Notify(e Event) error {
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, e); err != nil {
		return fmt.Errorf("notify: render template: %w", err)
	}

	subject := fmt.Sprintf("Subject: kip backup %s: job %s run %d\r\n", e.Status, e.JobName, e.RunID)
	msg := []byte(subject + "\r\n" + body.String())

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, s.cfg.To, msg); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}

// Close is a no-op; SMTPSink holds no persistent resources.
func (s *SMTPSink) Close() error { return nil }
