package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, user_id, type, title, body, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		notification.ID,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Body,
		notification.Metadata,
		notification.CreatedAt,
	).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Notification, error) {
	var items []domain.Notification
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
