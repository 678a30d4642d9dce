package service

import (
	"context"
	"strings"

	"github.com/kelaspay/kelaspay/internal/promo/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("promo.service"),
		repo: p.Repo,
	}
}

func (s *Service) Resolve(ctx context.Context, code string) (*domain.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}

	promo, err := s.repo.FindActiveByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, domain.ErrInvalidPromoCode
	}
	return promo, nil
}
