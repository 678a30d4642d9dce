package course

import (
	"github.com/kelaspay/kelaspay/internal/course/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("course",
	fx.Provide(repository.Provide),
)
