package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrUnknownTransaction = errors.New("unknown_transaction")
	ErrGatewayRejected    = errors.New("gateway_rejected")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
)

// OrderItem is a single line of a gateway order. Checkout always sends
// exactly one: the course being bought.
type OrderItem struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Quantity   int    `json:"quantity"`
	ProductURL string `json:"product_url,omitempty"`
}

type CreateTransactionRequest struct {
	Method        string      `json:"method"`
	MerchantRef   string      `json:"merchant_ref"`
	Amount        int64       `json:"amount"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	OrderItems    []OrderItem `json:"order_items"`
	ReturnURL     string      `json:"return_url,omitempty"`
}

// GatewayTransaction is the gateway's view of a created transaction. Amount
// is the gateway-confirmed figure and is authoritative over the locally
// computed total when present. ExpiredTime is unix seconds.
type GatewayTransaction struct {
	Reference     string         `json:"reference"`
	MerchantRef   string         `json:"merchant_ref"`
	PaymentMethod string         `json:"payment_method"`
	CheckoutURL   string         `json:"checkout_url"`
	Instructions  []Instruction  `json:"instructions"`
	ExpiredTime   int64          `json:"expired_time"`
	Amount        int64          `json:"amount"`
	Raw           map[string]any `json:"-"`
}

type Instruction struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

type Channel struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Group       string `json:"group"`
	Active      bool   `json:"active"`
	FeeCustomer int64  `json:"fee_customer"`
	FeeMerchant int64  `json:"fee_merchant"`
	IconURL     string `json:"icon_url"`
}

// CallbackEvent is the canonical payment-status callback parsed from a
// gateway webhook after its signature has been verified.
type CallbackEvent struct {
	Reference   string
	MerchantRef string
	Status      string
	TotalAmount int64
	PaidAt      int64
	RawPayload  []byte
}

// Gateway is the outbound payment-provider boundary.
type Gateway interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*GatewayTransaction, error)
	GetPaymentChannels(ctx context.Context) ([]Channel, error)
	// VerifyCallbackSignature checks the webhook body against the shared
	// private key. It never inspects the payload beyond the raw bytes.
	VerifyCallbackSignature(payload []byte, signature string) error
	ParseCallback(payload []byte) (*CallbackEvent, error)
}
