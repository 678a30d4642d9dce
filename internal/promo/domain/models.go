package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PromoCode is a flat-amount discount voucher. Codes are stored uppercase and
// matched exactly; the discount is rupiah, not a percentage.
type PromoCode struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Discount  int64        `json:"discount" gorm:"not null"`
	IsActive  bool         `json:"is_active" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (PromoCode) TableName() string { return "promo_codes" }

var ErrInvalidPromoCode = errors.New("invalid_promo_code")

type Repository interface {
	FindActiveByCode(ctx context.Context, db *gorm.DB, code string) (*PromoCode, error)
}

type Service interface {
	// Resolve returns nil for an empty code (no promo is not an error) and
	// ErrInvalidPromoCode when the code is unknown or inactive.
	Resolve(ctx context.Context, code string) (*PromoCode, error)
}
