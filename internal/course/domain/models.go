package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Course is the catalog read model consumed by checkout: the price snapshot,
// the SKU-ish slug sent to the gateway, and nothing of the catalog itself.
type Course struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Slug      string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Title     string       `json:"title" gorm:"type:text;not null"`
	Price     int64        `json:"price" gorm:"not null"`
	IsActive  bool         `json:"is_active" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Course) TableName() string { return "courses" }

var ErrNotFound = errors.New("course_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Course, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Course, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Course, error)
}
