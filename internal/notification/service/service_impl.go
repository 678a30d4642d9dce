package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kelaspay/kelaspay/internal/notification/domain"
	obsmetrics "github.com/kelaspay/kelaspay/internal/observability/metrics"
	"github.com/kelaspay/kelaspay/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Email   email.Provider
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	email   email.Provider
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("notification.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		email:   p.Email,
		metrics: p.Metrics,
	}
}

func (s *Service) Dispatch(ctx context.Context, d domain.Dispatch) error {
	if d.UserID == 0 || !validType(d.Type) {
		return errors.New("invalid_notification")
	}

	notification := domain.Notification{
		ID:        s.genID.Generate(),
		UserID:    d.UserID,
		Type:      d.Type,
		Title:     d.Title,
		Body:      d.Body,
		Metadata:  d.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &notification); err != nil {
		return err
	}
	s.metrics.RecordNotification(ctx, string(d.Type))

	// Mail delivery is best effort; the persisted row is the source of
	// truth for the in-app inbox.
	if d.Email != "" {
		if err := s.email.Send(ctx, []string{d.Email}, d.Title, d.Body); err != nil {
			s.log.Warn("failed to send notification email",
				zap.String("type", string(d.Type)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func validType(t domain.NotificationType) bool {
	switch t {
	case domain.TypePaymentSuccess, domain.TypePaymentFailed, domain.TypePaymentExpired:
		return true
	default:
		return false
	}
}
