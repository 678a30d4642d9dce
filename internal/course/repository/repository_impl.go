package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/course/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Course, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Course, error) {
	return r.findOne(ctx, db, `slug = ?`, slug)
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Course, error) {
	var items []domain.Course
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, title, price, is_active, created_at, updated_at
		 FROM courses
		 WHERE is_active = ?
		 ORDER BY created_at DESC, id DESC`,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, arg any) (*domain.Course, error) {
	var item domain.Course
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, title, price, is_active, created_at, updated_at
		 FROM courses
		 WHERE `+cond+`
		 LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
