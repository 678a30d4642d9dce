package payment

import (
	"github.com/kelaspay/kelaspay/internal/payment/domain"
	"github.com/kelaspay/kelaspay/internal/payment/tripay"
	"github.com/kelaspay/kelaspay/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		tripay.New,
		func(c *tripay.Client) domain.Gateway { return c },
		webhook.New,
	),
)
