package internal

import (
	"context"
	"errors"
	"flag"
	"os"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/cart"
	"emart_admin/internal/catalog"
	"emart_admin/internal/cli"
	"emart_admin/internal/config"
	"emart_admin/internal/insights"
	"emart_admin/internal/ledger"
	"emart_admin/internal/llm"
	"emart_admin/internal/logging"
	"emart_admin/internal/metrics"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Run() error {
	opts, err := cli.ParseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	var runner *cli.Runner

	app := fx.New(
		logger.Module(),
		logger.WithFxDefaultLogger(),
		config.Module(),
		fx.Supply(opts),
		fx.Decorate(opts.Apply),
		logging.Module(),
		metrics.Module(),
		auth.Module(),
		api.Module(),
		catalog.Module(),
		cart.Module(),
		ledger.Module(),
		llm.Module(),
		insights.Module(),
		cli.Module(),
		fx.Populate(&runner),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	return runner.Execute()
}
