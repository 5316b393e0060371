package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/cache"
	"emart_admin/internal/metrics"
	"emart_admin/internal/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultCategory is what the backend files uncategorized mappings under.
const defaultCategory = "gr"

var (
	ErrMissingVendor       = errors.New("vendor id is required")
	ErrMissingProduct      = errors.New("product id is required")
	ErrVendorPriceRequired = errors.New("vendor price is required for margin products")
)

// Backend is the slice of the API the vendor product service talks to.
type Backend interface {
	VendorProducts(ctx context.Context, session auth.Session, vendorID string) ([]api.Product, error)
	MapProduct(ctx context.Context, session auth.Session, req api.MapProductRequest) error
	UnmapProduct(ctx context.Context, session auth.Session, vendorID, retailerID string) error
	UpdateVendorPrice(ctx context.Context, session auth.Session, req api.VendorPriceUpdate) error
	UpdateProductMeta(ctx context.Context, session auth.Session, req api.ProductMetaUpdate) error
}

// ProductEdit changes how a mapped product is priced for the vendor. A nil
// VendorPrice with IsPercentage set moves the product to commission pricing.
type ProductEdit struct {
	ProductID    string
	RetailerID   string
	VendorPrice  *decimal.Decimal
	IsPercentage bool
	Availability string
	Price        string
	SalePrice    string
}

// VendorProducts serves each vendor's product list from a cache and refreshes
// the vendor's entry after every successful write.
type VendorProducts struct {
	backend Backend
	cache   *cache.Keyed[[]api.Product]
	logger  *zap.Logger
}

func NewVendorProducts(backend Backend, m *metrics.Metrics, logger *zap.Logger) *VendorProducts {
	return &VendorProducts{
		backend: backend,
		cache:   cache.NewKeyed[[]api.Product]("vendor_products", m, logger),
		logger:  logger.Named("catalog"),
	}
}

func (s *VendorProducts) Products(ctx context.Context, session auth.Session, vendorID string) ([]api.Product, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrMissingVendor
	}
	return s.cache.GetOrFetch(ctx, vendorID, s.fetcher(session, vendorID))
}

// Map attaches a catalog product to the vendor with category commission.
func (s *VendorProducts) Map(ctx context.Context, session auth.Session, vendorID string, product api.Product) ([]api.Product, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrMissingVendor
	}
	if product.RetailerID == "" && product.ID == "" {
		return nil, ErrMissingProduct
	}

	category := product.Category
	if category == "" {
		category = defaultCategory
	}
	productID := product.ID.String()
	if productID == "" {
		productID = product.RetailerID.String()
	}

	err := s.backend.MapProduct(ctx, session, api.MapProductRequest{
		Name:                 product.Name,
		VendorID:             vendorID,
		Category:             category,
		PercentageOnCategory: true,
		RetailerID:           product.RetailerID.String(),
		ProductID:            productID,
	})
	if err != nil {
		return nil, fmt.Errorf("map product %s: %w", productID, err)
	}
	return s.refresh(ctx, session, vendorID)
}

func (s *VendorProducts) Unmap(ctx context.Context, session auth.Session, vendorID, retailerID string) ([]api.Product, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrMissingVendor
	}
	if strings.TrimSpace(retailerID) == "" {
		return nil, ErrMissingProduct
	}

	if err := s.backend.UnmapProduct(ctx, session, vendorID, retailerID); err != nil {
		return nil, fmt.Errorf("unmap product %s: %w", retailerID, err)
	}
	return s.refresh(ctx, session, vendorID)
}

// Update writes the vendor price first and the product meta second. The meta
// call is made only when availability or a price is being changed.
func (s *VendorProducts) Update(ctx context.Context, session auth.Session, vendorID string, edit ProductEdit) ([]api.Product, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, ErrMissingVendor
	}
	if edit.RetailerID == "" {
		return nil, ErrMissingProduct
	}
	if !edit.IsPercentage && edit.VendorPrice == nil {
		return nil, ErrVendorPriceRequired
	}

	meta := api.ProductMetaUpdate{
		ProductID:    edit.ProductID,
		Availability: strings.TrimSpace(edit.Availability),
	}
	if edit.Price != "" {
		price, err := money.ParsePrice(edit.Price)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		meta.Price = price.String()
	}
	if edit.SalePrice != "" {
		sale, err := money.ParsePrice(edit.SalePrice)
		if err != nil {
			return nil, fmt.Errorf("sale price: %w", err)
		}
		meta.SalePrice = sale.String()
	}
	withMeta := meta.Availability != "" || meta.Price != "" || meta.SalePrice != ""
	if withMeta && meta.ProductID == "" {
		return nil, ErrMissingProduct
	}

	priceUpdate := api.VendorPriceUpdate{
		RetailerID:   edit.RetailerID,
		IsPercentage: edit.IsPercentage,
		VendorID:     vendorID,
	}
	if !edit.IsPercentage {
		n := api.NewNumber(edit.VendorPrice.Round(money.Places))
		priceUpdate.VendorPrice = &n
	}
	if err := s.backend.UpdateVendorPrice(ctx, session, priceUpdate); err != nil {
		return nil, fmt.Errorf("update vendor price: %w", err)
	}
	// The price is already written; the cached list is stale from here on.
	s.cache.Invalidate(vendorID)

	if withMeta {
		if err := s.backend.UpdateProductMeta(ctx, session, meta); err != nil {
			return nil, fmt.Errorf("update product meta: %w", err)
		}
	}
	return s.refresh(ctx, session, vendorID)
}

func (s *VendorProducts) refresh(ctx context.Context, session auth.Session, vendorID string) ([]api.Product, error) {
	products, err := s.cache.Refresh(ctx, vendorID, s.fetcher(session, vendorID))
	if err != nil {
		return nil, fmt.Errorf("reload vendor products: %w", err)
	}
	s.logger.Debug("vendor products refreshed", zap.String("vendor", vendorID), zap.Int("count", len(products)))
	return products, nil
}

func (s *VendorProducts) fetcher(session auth.Session, vendorID string) cache.Fetcher[[]api.Product] {
	return func(ctx context.Context) ([]api.Product, error) {
		return s.backend.VendorProducts(ctx, session, vendorID)
	}
}
