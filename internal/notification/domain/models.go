package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	TypePaymentSuccess NotificationType = "payment_success"
	TypePaymentFailed  NotificationType = "payment_failed"
	TypePaymentExpired NotificationType = "payment_expired"
)

type Notification struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID      `json:"user_id" gorm:"not null;index"`
	Type      NotificationType  `json:"type" gorm:"type:text;not null"`
	Title     string            `json:"title" gorm:"type:text;not null"`
	Body      string            `json:"body" gorm:"type:text"`
	Metadata  datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	ReadAt    *time.Time        `json:"read_at"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, notification *Notification) error
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Notification, error)
}

// Dispatch describes one notification to persist and, when the recipient
// has an email address, mirror to their inbox.
type Dispatch struct {
	UserID   snowflake.ID
	Email    string
	Type     NotificationType
	Title    string
	Body     string
	Metadata map[string]any
}

type Service interface {
	Dispatch(ctx context.Context, d Dispatch) error
}
