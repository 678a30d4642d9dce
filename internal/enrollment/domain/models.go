package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type EnrollmentStatus string

const (
	StatusActive    EnrollmentStatus = "active"
	StatusCompleted EnrollmentStatus = "completed"
	StatusExpired   EnrollmentStatus = "expired"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusExpired:
		return true
	default:
		return false
	}
}

// Enrollment grants a user access to a course. It is correlated with the
// transaction that paid for it by (user_id, course_id) but owned by neither;
// completion and expiry are driven by collaborators outside this service.
type Enrollment struct {
	ID          snowflake.ID     `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID     `json:"user_id" gorm:"not null;uniqueIndex:ux_enrollments_user_course"`
	CourseID    snowflake.ID     `json:"course_id" gorm:"not null;uniqueIndex:ux_enrollments_user_course"`
	Status      EnrollmentStatus `json:"status" gorm:"type:text;not null"`
	EnrolledAt  time.Time        `json:"enrolled_at" gorm:"not null"`
	CompletedAt *time.Time       `json:"completed_at"`
	ExpiresAt   *time.Time       `json:"expires_at"`
}

func (Enrollment) TableName() string { return "enrollments" }

var (
	ErrInvalidStatus = errors.New("invalid_enrollment_status")
	ErrNotFound      = errors.New("enrollment_not_found")
)

type Repository interface {
	FindByUserAndCourse(ctx context.Context, db *gorm.DB, userID, courseID snowflake.ID) (*Enrollment, error)
	// InsertIgnore inserts the row unless the (user, course) pair already
	// exists, reporting whether a new row was written.
	InsertIgnore(ctx context.Context, db *gorm.DB, enrollment *Enrollment) (bool, error)
}

type Service interface {
	// Activate grants access exactly once: an existing enrollment is
	// returned unchanged, concurrent calls for the same pair converge on a
	// single row.
	Activate(ctx context.Context, userID, courseID snowflake.ID) (*Enrollment, error)
	Find(ctx context.Context, userID, courseID snowflake.ID) (*Enrollment, error)
}
