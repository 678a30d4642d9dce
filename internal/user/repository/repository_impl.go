package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, phone, created_at, updated_at
		 FROM users
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
