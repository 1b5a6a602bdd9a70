package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	cudomain "github.com/quotedesk/quotedesk/internal/clientuser/domain"
	orgdomain "github.com/quotedesk/quotedesk/internal/organization/domain"
	"github.com/quotedesk/quotedesk/internal/providers/email"
	"github.com/quotedesk/quotedesk/internal/quotation/domain"
)

// smtpAccount prefers the organization's own SMTP settings; an empty account
// makes the provider fall back to the platform SMTP.
func smtpAccount(org orgdomain.Organization) email.Account {
	if org.SMTPHost == "" {
		return email.Account{}
	}
	fromName := org.EmailFromName
	if fromName == "" {
		fromName = org.Name
	}
	return email.Account{
		Host:     org.SMTPHost,
		Port:     org.SMTPPort,
		Username: org.SMTPUser,
		Password: org.SMTPPass,
		From:     org.SMTPFrom,
		FromName: fromName,
	}
}

func (s *service) quoteURL(token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/quote/" + token
}

func (s *service) portalURL(org orgdomain.Organization) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/portal/" + org.Slug
}

func (s *service) sendQuoteEmail(ctx context.Context, org orgdomain.Organization, q *domain.Quotation) error {
	subject := fmt.Sprintf("Your quote from %s", org.Name)
	body := fmt.Sprintf(`
<p>Dear %s,</p>
<p>%s has prepared a quote for you. You can review it, adjust the options and
accept or decline it online:</p>
<p><a href="%s">View your quote</a></p>
<p>Kind regards,<br>%s</p>`,
		html.EscapeString(q.CustomerName),
		html.EscapeString(org.Name),
		s.quoteURL(q.Token),
		html.EscapeString(org.Name),
	)
	return s.email.Send(ctx, smtpAccount(org), []string{q.CustomerEmail}, subject, body)
}

func (s *service) sendInvoiceEmail(ctx context.Context, org orgdomain.Organization, q *domain.Quotation, pdfBytes []byte, ensured cudomain.EnsureResult) error {
	subject := fmt.Sprintf("Invoice %s from %s", q.InvoiceNumber, org.Name)

	var credentials string
	if ensured.Created {
		credentials = fmt.Sprintf(`
<p>A client portal account has been created for you. Log in at
<a href="%s">%s</a> with:</p>
<p>Email: %s<br>Password: %s</p>
<p>Please change the password after your first login.</p>`,
			s.portalURL(org), s.portalURL(org),
			html.EscapeString(ensured.User.Email),
			html.EscapeString(ensured.PlainPassword),
		)
	}

	body := fmt.Sprintf(`
<p>Dear %s,</p>
<p>Please find invoice %s attached. You can also find it in your client
portal, together with the job file.</p>%s
<p>Kind regards,<br>%s</p>`,
		html.EscapeString(q.CustomerName),
		html.EscapeString(q.InvoiceNumber),
		credentials,
		html.EscapeString(org.Name),
	)

	return s.email.Send(ctx, smtpAccount(org), []string{q.CustomerEmail}, subject, body,
		email.Attachment{
			Filename:    invoiceFilename(q.InvoiceNumber),
			ContentType: "application/pdf",
			Content:     pdfBytes,
		},
	)
}
