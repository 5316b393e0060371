package auth

import (
	"time"

	"emart_admin/internal/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"auth",
		fx.Provide(func(cfg config.Config) *Store {
			store := NewStore()
			if cfg.APIToken != "" {
				store.Set(NewSession(cfg.APIToken, cfg.Email, time.Now(), cfg.SessionTTL))
			}
			return store
		}),
	)
}
