package ledger

import (
	"emart_admin/internal/api"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"ledger",
		fx.Provide(func(client *api.Client, logger *zap.Logger) *Reconciler {
			return NewReconciler(client, logger)
		}),
	)
}
