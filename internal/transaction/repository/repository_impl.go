package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/transaction/domain"
	"github.com/kelaspay/kelaspay/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, invoice_number, user_id, course_id, promo_code_id,
			amount, discount, admin_fee, total,
			payment_method, payment_channel, gateway_reference, merchant_ref,
			payment_url, payment_instructions, status, metadata,
			expired_at, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.InvoiceNumber,
		txn.UserID,
		txn.CourseID,
		txn.PromoCodeID,
		txn.Amount,
		txn.Discount,
		txn.AdminFee,
		txn.Total,
		txn.PaymentMethod,
		txn.PaymentChannel,
		txn.GatewayReference,
		txn.MerchantRef,
		txn.PaymentURL,
		txn.PaymentInstructions,
		txn.Status,
		txn.Metadata,
		txn.ExpiredAt,
		txn.PaidAt,
		txn.CreatedAt,
		txn.UpdatedAt,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM transactions WHERE id = ?`,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByInvoiceNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*domain.Transaction, error) {
	return r.findOne(ctx, db, `invoice_number = ?`, invoiceNumber)
}

func (r *repo) FindByMerchantRef(ctx context.Context, db *gorm.DB, merchantRef string) (*domain.Transaction, error) {
	return r.findOne(ctx, db, `merchant_ref = ?`, merchantRef)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, arg any) (*domain.Transaction, error) {
	var item domain.Transaction
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM transactions WHERE `+cond+` LIMIT 1`, arg).
		Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]domain.Transaction, pagination.PageInfo, error) {
	size := page.PageSize
	if size <= 0 {
		size = 10
	}

	query := `SELECT * FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		query += ` AND (created_at, id) < (?, ?)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, size+1)

	var items []domain.Transaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, pagination.PageInfo{}, err
	}

	var info pagination.PageInfo
	if len(items) > size {
		items = items[:size]
		last := items[len(items)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		info.NextPageToken = token
		info.HasMore = true
	}
	return items, info, nil
}

func (r *repo) UpdateGatewayResult(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	// A callback can land between the insert and this write; fold the stored
	// metadata back in so its keys survive the stale in-memory copy.
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.findOne(ctx, tx, `id = ?`, txn.ID)
		if err != nil {
			return err
		}
		if current != nil && len(current.Metadata) > 0 {
			merged := datatypes.JSONMap{}
			for k, v := range current.Metadata {
				merged[k] = v
			}
			for k, v := range txn.Metadata {
				merged[k] = v
			}
			txn.Metadata = merged
		}
		return tx.Exec(
			`UPDATE transactions
			 SET payment_channel = ?, gateway_reference = ?, merchant_ref = ?,
				 payment_url = ?, payment_instructions = ?, total = ?,
				 metadata = ?, expired_at = ?, updated_at = ?
			 WHERE id = ?`,
			txn.PaymentChannel,
			txn.GatewayReference,
			txn.MerchantRef,
			txn.PaymentURL,
			txn.PaymentInstructions,
			txn.Total,
			txn.Metadata,
			txn.ExpiredAt,
			txn.UpdatedAt,
			txn.ID,
		).Error
	})
}

func (r *repo) UpdateMetadata(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSONMap, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transactions SET metadata = ?, updated_at = ? WHERE id = ?`,
		metadata, now, id,
	).Error
}

func (r *repo) SettleIfPending(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.TransactionStatus, paidAt *time.Time, now time.Time) (bool, error) {
	if !domain.StatusPending.CanTransitionTo(status) {
		return false, domain.ErrInvalidStatus
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE transactions
		 SET status = ?, paid_at = COALESCE(?, paid_at), updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		paidAt,
		now,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
