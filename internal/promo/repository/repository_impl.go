package repository

import (
	"context"

	"github.com/kelaspay/kelaspay/internal/promo/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindActiveByCode(ctx context.Context, db *gorm.DB, code string) (*domain.PromoCode, error) {
	var item domain.PromoCode
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, discount, is_active, created_at, updated_at
		 FROM promo_codes
		 WHERE code = ? AND is_active = ?
		 LIMIT 1`,
		code,
		true,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
