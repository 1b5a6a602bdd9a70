package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

type SMTPProvider struct {
	fallback Account
}

// NewSMTP builds a provider that sends through the given platform account
// whenever the caller's account is not configured.
func NewSMTP(fallback Account) *SMTPProvider {
	return &SMTPProvider{fallback: fallback}
}

func (p *SMTPProvider) Send(ctx context.Context, acct Account, to []string, subject, htmlBody string, attachments ...Attachment) error {
	if !acct.Configured() {
		acct = p.fallback
	}
	if !acct.Configured() {
		return fmt.Errorf("smtp not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := buildMessage(acct, to, subject, htmlBody, attachments)

	var auth smtp.Auth
	if acct.Username != "" {
		auth = smtp.PlainAuth("", acct.Username, acct.Password, acct.Host)
	}
	addr := fmt.Sprintf("%s:%d", acct.Host, acct.Port)
	return smtp.SendMail(addr, auth, acct.From, to, msg)
}

const boundary = "quotedesk-mime-boundary"

func buildMessage(acct Account, to []string, subject, htmlBody string, attachments []Attachment) []byte {
	var buf bytes.Buffer

	from := acct.From
	if acct.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", acct.FromName), acct.From)
	}
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		buf.WriteString(htmlBody)
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(htmlBody)
	buf.WriteString("\r\n")

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; name=%q\r\n", contentType, att.Filename)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", att.Filename)

		encoded := base64.StdEncoding.EncodeToString(att.Content)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}
