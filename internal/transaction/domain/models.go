package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodGateway PaymentMethod = "gateway"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCash || m == PaymentMethodGateway
}

// Transaction is one purchase attempt for a (user, course) pair. Monetary
// fields are integer rupiah; total always reconciles to
// amount - discount + admin_fee at creation, and to the gateway-confirmed
// amount after a gateway create succeeds.
type Transaction struct {
	ID                  snowflake.ID      `json:"id" gorm:"primaryKey"`
	InvoiceNumber       string            `json:"invoice_number" gorm:"type:text;not null;uniqueIndex"`
	UserID              snowflake.ID      `json:"user_id" gorm:"not null;index"`
	CourseID            snowflake.ID      `json:"course_id" gorm:"not null;index"`
	PromoCodeID         *snowflake.ID     `json:"promo_code_id"`
	Amount              int64             `json:"amount" gorm:"not null"`
	Discount            int64             `json:"discount" gorm:"not null"`
	AdminFee            int64             `json:"admin_fee" gorm:"not null"`
	Total               int64             `json:"total" gorm:"not null"`
	PaymentMethod       PaymentMethod     `json:"payment_method" gorm:"type:text;not null"`
	PaymentChannel      string            `json:"payment_channel" gorm:"type:text"`
	GatewayReference    string            `json:"gateway_reference" gorm:"type:text;index"`
	MerchantRef         string            `json:"merchant_ref" gorm:"type:text;index"`
	PaymentURL          string            `json:"payment_url" gorm:"type:text"`
	PaymentInstructions datatypes.JSON    `json:"payment_instructions" gorm:"type:jsonb"`
	Status              TransactionStatus `json:"status" gorm:"type:text;not null;index"`
	Metadata            datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	ExpiredAt           *time.Time        `json:"expired_at"`
	PaidAt              *time.Time        `json:"paid_at"`
	CreatedAt           time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time         `json:"updated_at" gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

// MergeMetadata copies keys into the metadata bag without discarding what is
// already there.
func (t *Transaction) MergeMetadata(extra map[string]any) {
	if len(extra) == 0 {
		return
	}
	if t.Metadata == nil {
		t.Metadata = datatypes.JSONMap{}
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		t.Metadata[key] = value
	}
}
