package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/enrollment/domain"
	"github.com/kelaspay/kelaspay/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keyEnrollLock = "enroll:lock:%s:%s"
	enrollLockTTL = 10 * time.Second
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Locker *ratelimit.Locker `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	locker *ratelimit.Locker
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("enrollment.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		locker: p.Locker,
	}
}

func (s *Service) Find(ctx context.Context, userID, courseID snowflake.ID) (*domain.Enrollment, error) {
	return s.repo.FindByUserAndCourse(ctx, s.db, userID, courseID)
}

func (s *Service) Activate(ctx context.Context, userID, courseID snowflake.ID) (*domain.Enrollment, error) {
	if userID == 0 || courseID == 0 {
		return nil, errors.New("enrollment requires user and course")
	}

	// The unique index on (user_id, course_id) is the real guard; the Redis
	// lock only shortens the window in which two workers both attempt the
	// insert.
	if s.locker != nil {
		key := fmt.Sprintf(keyEnrollLock, userID.String(), courseID.String())
		token, acquired, err := s.locker.TryLock(ctx, key, enrollLockTTL)
		if err != nil {
			s.log.Warn("enrollment lock unavailable, relying on unique index", zap.Error(err))
		} else if acquired {
			defer func() {
				if err := s.locker.Release(ctx, key, token); err != nil {
					s.log.Warn("failed to release enrollment lock", zap.Error(err))
				}
			}()
		}
	}

	existing, err := s.repo.FindByUserAndCourse(ctx, s.db, userID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	enrollment := domain.Enrollment{
		ID:         s.genID.Generate(),
		UserID:     userID,
		CourseID:   courseID,
		Status:     domain.StatusActive,
		EnrolledAt: time.Now().UTC(),
	}

	inserted, err := s.repo.InsertIgnore(ctx, s.db, &enrollment)
	if err != nil {
		return nil, err
	}
	if inserted {
		return &enrollment, nil
	}

	// Lost the race to a concurrent activation; the winner's row is
	// canonical.
	existing, err = s.repo.FindByUserAndCourse(ctx, s.db, userID, courseID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	return existing, nil
}
