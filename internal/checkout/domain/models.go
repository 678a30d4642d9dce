package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
)

var (
	ErrAlreadyEnrolled      = errors.New("already_enrolled")
	ErrChannelRequired      = errors.New("payment_channel_required")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
)

type InitiateRequest struct {
	UserID         snowflake.ID
	CourseID       snowflake.ID
	PaymentMethod  txndomain.PaymentMethod
	PaymentChannel string
	PromoCode      string
}

type Service interface {
	// Initiate runs the full checkout: validation, promo resolution, money
	// arithmetic, persistence and, for gateway payments, remote transaction
	// creation. Cash settles in the same request.
	Initiate(ctx context.Context, req InitiateRequest) (*txndomain.Transaction, error)
}
