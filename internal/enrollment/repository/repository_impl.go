package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/enrollment/domain"
	"github.com/kelaspay/kelaspay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByUserAndCourse(ctx context.Context, gdb *gorm.DB, userID, courseID snowflake.ID) (*domain.Enrollment, error) {
	var item domain.Enrollment
	err := gdb.WithContext(ctx).Raw(
		`SELECT id, user_id, course_id, status, enrolled_at, completed_at, expires_at
		 FROM enrollments
		 WHERE user_id = ? AND course_id = ?
		 LIMIT 1`,
		userID,
		courseID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// insertIgnoreSQL picks the duplicate-tolerant insert form for the dialect.
// MySQL has no ON CONFLICT clause; postgres and sqlite share one.
func insertIgnoreSQL(dialect string) string {
	if dialect == "mysql" {
		return `INSERT IGNORE INTO enrollments (id, user_id, course_id, status, enrolled_at, completed_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`
	}
	return `INSERT INTO enrollments (id, user_id, course_id, status, enrolled_at, completed_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, course_id) DO NOTHING`
}

func (r *repo) InsertIgnore(ctx context.Context, gdb *gorm.DB, enrollment *domain.Enrollment) (bool, error) {
	res := gdb.WithContext(ctx).Exec(
		insertIgnoreSQL(gdb.Dialector.Name()),
		enrollment.ID,
		enrollment.UserID,
		enrollment.CourseID,
		enrollment.Status,
		enrollment.EnrolledAt,
		enrollment.CompletedAt,
		enrollment.ExpiresAt,
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
