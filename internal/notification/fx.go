package notification

import (
	"github.com/kelaspay/kelaspay/internal/notification/repository"
	"github.com/kelaspay/kelaspay/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
