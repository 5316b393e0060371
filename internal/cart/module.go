package cart

import (
	"emart_admin/internal/api"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"cart",
		fx.Provide(
			NewSettings,
			NewOrderIDs,
			NewBuilder,
			func(client *api.Client, logger *zap.Logger) *Checkout {
				return NewCheckout(client, logger)
			},
			func(client *api.Client) *OrderItems {
				return NewOrderItems(client)
			},
		),
	)
}
