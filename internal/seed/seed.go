package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/kelaspay/kelaspay/internal/config"
	coursedomain "github.com/kelaspay/kelaspay/internal/course/domain"
	enrollmentdomain "github.com/kelaspay/kelaspay/internal/enrollment/domain"
	notificationdomain "github.com/kelaspay/kelaspay/internal/notification/domain"
	promodomain "github.com/kelaspay/kelaspay/internal/promo/domain"
	txndomain "github.com/kelaspay/kelaspay/internal/transaction/domain"
	userdomain "github.com/kelaspay/kelaspay/internal/user/domain"
	"gorm.io/gorm"
)

type demoCourse struct {
	title string
	price int64
}

var demoCourses = []demoCourse{
	{title: "Belajar Golang untuk Pemula", price: 300_000},
	{title: "REST API dengan Gin dan GORM", price: 450_000},
	{title: "Dasar-Dasar SQL dan PostgreSQL", price: 250_000},
}

const (
	demoPromoCode = "BELAJAR50"
	demoUserEmail = "budi@example.com"
)

// AutoMigrate builds the schema from the models for dialects the versioned
// migrations do not cover.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	return db.AutoMigrate(
		&userdomain.User{},
		&coursedomain.Course{},
		&promodomain.PromoCode{},
		&txndomain.Transaction{},
		&enrollmentdomain.Enrollment{},
		&notificationdomain.Notification{},
	)
}

// EnsureDemoCatalog seeds a small catalog and promo code so a fresh install
// has something to check out against. Production databases are left alone.
func EnsureDemoCatalog(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if strings.EqualFold(cfg.Environment, "production") {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, c := range demoCourses {
			if err := ensureCourse(ctx, tx, node, c, now); err != nil {
				return err
			}
		}
		if err := ensurePromo(ctx, tx, node, now); err != nil {
			return err
		}
		return ensureUser(ctx, tx, node, now)
	})
}

func ensureUser(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&userdomain.User{}).
		Where("email = ?", demoUserEmail).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Create(&userdomain.User{
		ID:        node.Generate(),
		Name:      "Budi Santoso",
		Email:     demoUserEmail,
		Phone:     "+6281234567890",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func ensureCourse(ctx context.Context, tx *gorm.DB, node *snowflake.Node, c demoCourse, now time.Time) error {
	courseSlug := slug.Make(c.title)

	var count int64
	if err := tx.WithContext(ctx).
		Model(&coursedomain.Course{}).
		Where("slug = ?", courseSlug).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Create(&coursedomain.Course{
		ID:        node.Generate(),
		Slug:      courseSlug,
		Title:     c.title,
		Price:     c.price,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func ensurePromo(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&promodomain.PromoCode{}).
		Where("code = ?", demoPromoCode).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Create(&promodomain.PromoCode{
		ID:        node.Generate(),
		Code:      demoPromoCode,
		Discount:  50_000,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}
