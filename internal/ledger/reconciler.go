package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/money"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingVendor      = errors.New("vendor id is required")
	ErrMissingTransaction = errors.New("transaction id is required")
	ErrNothingPayable     = errors.New("nothing payable for this vendor")
)

type Backend interface {
	PaidTransactions(ctx context.Context, session auth.Session, vendorID string) (api.PaidTransactions, error)
	PendingTransactions(ctx context.Context, session auth.Session, vendorID string) (api.PendingTransactions, error)
	ClearPayment(ctx context.Context, session auth.Session, vendorID, transactionID, description string) error
}

type Reconciler struct {
	backend Backend
	logger  *zap.Logger
}

func NewReconciler(backend Backend, logger *zap.Logger) *Reconciler {
	return &Reconciler{backend: backend, logger: logger.Named("ledger")}
}

// LoadLedger fetches the paid and pending sets side by side and normalizes them.
// A set whose payload cannot be decoded counts as empty.
func (r *Reconciler) LoadLedger(ctx context.Context, session auth.Session, vendorID string) (Ledger, error) {
	if strings.TrimSpace(vendorID) == "" {
		return Ledger{}, ErrMissingVendor
	}

	var (
		paid    api.PaidTransactions
		pending api.PendingTransactions
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		paid, err = r.backend.PaidTransactions(gctx, session, vendorID)
		if errors.Is(err, api.ErrMalformedPayload) {
			r.logger.Warn("malformed paid transactions, treating as empty", zap.String("vendor", vendorID), zap.Error(err))
			paid = api.PaidTransactions{}
			return nil
		}
		if err != nil {
			return fmt.Errorf("paid transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pending, err = r.backend.PendingTransactions(gctx, session, vendorID)
		if errors.Is(err, api.ErrMalformedPayload) {
			r.logger.Warn("malformed pending transactions, treating as empty", zap.String("vendor", vendorID), zap.Error(err))
			pending = api.PendingTransactions{}
			return nil
		}
		if err != nil {
			return fmt.Errorf("pending transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Ledger{}, err
	}

	l := Normalize(vendorID, paid, pending)
	r.logger.Debug("ledger loaded",
		zap.String("vendor", vendorID),
		zap.Stringer("shape", l.Shape),
		zap.Int("paid", len(l.Paid)),
		zap.Int("pending_margin", len(l.Margin.Entries)),
		zap.Int("pending_percentage", len(l.Percentage.Entries)),
	)
	return l, nil
}

// ClearPayment records a payout against everything pending and returns the
// ledger as it stands afterwards.
func (r *Reconciler) ClearPayment(ctx context.Context, session auth.Session, vendorID, transactionID, note string) (Ledger, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Ledger{}, ErrMissingTransaction
	}

	current, err := r.LoadLedger(ctx, session, vendorID)
	if err != nil {
		return Ledger{}, err
	}
	if !current.TotalPayable().IsPositive() {
		return current, ErrNothingPayable
	}

	if err := r.backend.ClearPayment(ctx, session, vendorID, strings.TrimSpace(transactionID), note); err != nil {
		return current, fmt.Errorf("clear payment: %w", err)
	}
	r.logger.Info("payment cleared",
		zap.String("vendor", vendorID),
		zap.String("transaction", transactionID),
		zap.String("amount", current.TotalPayable().StringFixed(money.Places)),
	)

	return r.LoadLedger(ctx, session, vendorID)
}
