package catalog

import (
	"emart_admin/internal/api"
	"emart_admin/internal/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"catalog",
		fx.Provide(func(client *api.Client, m *metrics.Metrics, logger *zap.Logger) *VendorProducts {
			return NewVendorProducts(client, m, logger)
		}),
	)
}
