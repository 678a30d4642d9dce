package pdf

import (
	"context"
	"io"
)

type ReceiptItem struct {
	Description string
	Qty         int
	UnitPrice   string
	Amount      string
}

type ReceiptData struct {
	InvoiceNumber  string
	DatePaid       string
	BuyerName      string
	BuyerEmail     string
	PaymentMethod  string
	PaymentChannel string
	Items          []ReceiptItem
	Subtotal       string
	Discount       string
	AdminFee       string
	Total          string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}
