package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// User is the buyer-identity read model. Authentication and profile management
// live elsewhere; checkout only needs who to bill and how to reach them.
type User struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Email     string       `json:"email" gorm:"type:text;not null;uniqueIndex"`
	Phone     string       `json:"phone" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

var ErrNotFound = errors.New("user_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
}
