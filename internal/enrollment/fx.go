package enrollment

import (
	"github.com/kelaspay/kelaspay/internal/enrollment/repository"
	"github.com/kelaspay/kelaspay/internal/enrollment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("enrollment",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
