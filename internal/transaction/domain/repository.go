package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("transaction_not_found")
	ErrInvalidStatus  = errors.New("invalid_transaction_status")
	ErrAlreadySettled = errors.New("transaction_already_settled")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByInvoiceNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*Transaction, error)
	FindByMerchantRef(ctx context.Context, db *gorm.DB, merchantRef string) (*Transaction, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]Transaction, pagination.PageInfo, error)
	UpdateGatewayResult(ctx context.Context, db *gorm.DB, txn *Transaction) error
	UpdateMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSONMap, now time.Time) error

	// SettleIfPending moves the row into a terminal status only when it is
	// still pending, reporting whether this call won the transition. The
	// guard makes concurrent callback deliveries race-safe without
	// read-then-write.
	SettleIfPending(ctx context.Context, db *gorm.DB, id snowflake.ID, status TransactionStatus, paidAt *time.Time, now time.Time) (bool, error)
}
