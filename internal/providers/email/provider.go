package email

import "context"

// Account is the SMTP identity a message is sent through. Organizations with
// their own SMTP settings get their mail sent from their own domain; others
// fall back to the platform account.
type Account struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

func (a Account) Configured() bool { return a.Host != "" && a.From != "" }

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Provider interface {
	Send(ctx context.Context, acct Account, to []string, subject, htmlBody string, attachments ...Attachment) error
}

// NoOpProvider drops messages; used in tests and when SMTP is not configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, acct Account, to []string, subject, htmlBody string, attachments ...Attachment) error {
	return nil
}
