package insights

import (
	"emart_admin/internal/api"
	"emart_admin/internal/ledger"
	"emart_admin/internal/llm"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"insights",
		fx.Provide(func(client *api.Client, reconciler *ledger.Reconciler, chat *llm.Client, logger *zap.Logger) *Service {
			return NewService(client, reconciler, chat, logger)
		}),
	)
}
