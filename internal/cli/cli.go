package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/cart"
	"emart_admin/internal/catalog"
	"emart_admin/internal/config"
	"emart_admin/internal/insights"
	"emart_admin/internal/ledger"
	"emart_admin/internal/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrUsage = errors.New("usage")

type Params struct {
	fx.In

	Options        Options
	Config         config.Config
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Client         *api.Client
	Store          *auth.Store
	VendorProducts *catalog.VendorProducts
	Builder        *cart.Builder
	Checkout       *cart.Checkout
	OrderItems     *cart.OrderItems
	Reconciler     *ledger.Reconciler
	Insights       *insights.Service
}

type Runner struct {
	options        Options
	cfg            config.Config
	logger         *zap.Logger
	metrics        *metrics.Metrics
	client         *api.Client
	store          *auth.Store
	vendorProducts *catalog.VendorProducts
	builder        *cart.Builder
	checkout       *cart.Checkout
	orderItems     *cart.OrderItems
	reconciler     *ledger.Reconciler
	insights       *insights.Service

	in  io.Reader
	out io.Writer
}

func NewRunner(p Params) *Runner {
	return &Runner{
		options:        p.Options,
		cfg:            p.Config,
		logger:         p.Logger.Named("cli"),
		metrics:        p.Metrics,
		client:         p.Client,
		store:          p.Store,
		vendorProducts: p.VendorProducts,
		builder:        p.Builder,
		checkout:       p.Checkout,
		orderItems:     p.OrderItems,
		reconciler:     p.Reconciler,
		insights:       p.Insights,
		in:             os.Stdin,
		out:            os.Stdout,
	}
}

// Execute runs the command until it finishes or SIGINT/SIGTERM arrives.
func (r *Runner) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := r.run(ctx, r.options.Command, r.options.Args)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if errors.Is(err, ErrUsage) {
		return err
	}
	r.logger.Error("command failed", zap.String("command", r.options.Command), zap.Error(err))
	return errors.New(friendlyError(err))
}

func (r *Runner) run(ctx context.Context, command string, args []string) error {
	r.logger.Info("command received",
		zap.String("command", command),
		zap.Strings("args", args),
		zap.Bool("json", r.options.JSON),
	)

	switch command {
	case "login":
		return r.runLogin(ctx)
	case "signup":
		return r.runSignup(ctx, args)
	case "orders":
		return r.runOrders(ctx, args)
	case "order-status":
		return r.runOrderStatus(ctx, args)
	case "order-items":
		return r.runOrderItems(ctx, args)
	case "users":
		return r.runUsers(ctx, args)
	case "vendors":
		return r.runVendors(ctx, args)
	case "vendor-add":
		return r.runVendorAdd(ctx, args)
	case "vendor-products":
		return r.runVendorProducts(ctx, args)
	case "map":
		return r.runMap(ctx, args)
	case "unmap":
		return r.runUnmap(ctx, args)
	case "vendor-price":
		return r.runVendorPrice(ctx, args)
	case "products":
		return r.runProducts(ctx, args)
	case "stock":
		return r.runStock(ctx, args)
	case "ledger":
		return r.runLedger(ctx, args)
	case "pay":
		return r.runPay(ctx, args)
	case "bill":
		return r.runBill(ctx)
	case "insights":
		return r.runInsights(ctx)
	case "ask":
		return r.runAsk(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
}

// session returns the stored session, logging in with the configured
// credentials when there is none.
func (r *Runner) session(ctx context.Context) (auth.Session, error) {
	s, err := r.store.Current()
	if err == nil {
		return s, nil
	}
	if strings.TrimSpace(r.cfg.Email) == "" || r.cfg.Password == "" {
		return auth.Session{}, err
	}
	return r.login(ctx)
}

func (r *Runner) login(ctx context.Context) (auth.Session, error) {
	email := strings.TrimSpace(r.cfg.Email)
	if email == "" || r.cfg.Password == "" {
		return auth.Session{}, fmt.Errorf("%w: email and password are required", ErrUsage)
	}
	res, err := r.client.Login(ctx, email, r.cfg.Password)
	if err != nil {
		return auth.Session{}, err
	}
	s := auth.NewSession(res.Token, email, time.Now(), r.cfg.SessionTTL)
	r.store.Set(s)
	r.logger.Info("logged in", zap.String("email", email), zap.Time("expires_at", s.ExpiresAt))
	return s, nil
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Runner) println(args ...any) {
	fmt.Fprintln(r.out, args...)
}

func (r *Runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUsage}, args...)...)
}
