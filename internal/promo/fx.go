package promo

import (
	"github.com/kelaspay/kelaspay/internal/promo/repository"
	"github.com/kelaspay/kelaspay/internal/promo/service"
	"go.uber.org/fx"
)

var Module = fx.Module("promo.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
