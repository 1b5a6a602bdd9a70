package pdf

import "context"

type InvoiceItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

type InvoiceData struct {
	OrgName    string
	OrgAddress string
	OrgEmail   string
	OrgPhone   string
	VatNumber  string
	KvkNumber  string
	IBAN       string

	InvoiceNumber string
	InvoiceDate   string
	QuoteFooter   string
	Notes         string

	BillToName    string
	BillToAddress string
	BillToEmail   string

	Items []InvoiceItem

	Subtotal  string
	Discount  string
	VatRate   string
	VatAmount string
	Total     string
}

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	return nil, nil
}
