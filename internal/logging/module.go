package logging

import (
	"context"
	"os"

	"emart_admin/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module is a plain option set: the decorated *zap.Logger must reach every
// other module.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(func(cfg config.Config) (*os.File, error) {
			return OpenLogFile(cfg.LogFile)
		}),
		fx.Decorate(func(base *zap.Logger, cfg config.Config, file *os.File) *zap.Logger {
			return AttachFileLogger(base, file, cfg.Debug)
		}),
		fx.Invoke(func(lc fx.Lifecycle, logger *zap.Logger, file *os.File) {
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					_ = logger.Sync()
					if file == nil {
						return nil
					}
					return file.Close()
				},
			})
		}),
	)
}
