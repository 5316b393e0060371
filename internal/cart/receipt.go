package cart

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"emart_admin/internal/config"
	"emart_admin/internal/money"

	"github.com/shopspring/decimal"
)

const nameWidth = 22

type Settings struct {
	StoreName      string
	PhonePrefix    string
	CurrencySymbol string
	DeliveryCharge decimal.Decimal
}

func DefaultSettings() Settings {
	return Settings{
		StoreName:      "eMart - PO",
		PhonePrefix:    "91",
		CurrencySymbol: "₹",
		DeliveryCharge: money.FromInt(30),
	}
}

func NewSettings(cfg config.Config) (Settings, error) {
	s := DefaultSettings()
	if cfg.StoreName != "" {
		s.StoreName = cfg.StoreName
	}
	if cfg.PhonePrefix != "" {
		s.PhonePrefix = cfg.PhonePrefix
	}
	if cfg.CurrencySymbol != "" {
		s.CurrencySymbol = cfg.CurrencySymbol
	}
	if cfg.DeliveryCharge != "" {
		charge, err := money.ParsePrice(cfg.DeliveryCharge)
		if err != nil {
			return Settings{}, fmt.Errorf("delivery_charge: %w", err)
		}
		s.DeliveryCharge = charge
	}
	return s, nil
}

// Metadata is the customer side of the bill.
type Metadata struct {
	Phone   string
	MapLink string
	Notes   string
}

// Receipt is derived from a cart and its metadata and never edited directly.
type Receipt struct {
	OrderID        string
	Items          []Item
	DeliveryCharge decimal.Decimal
	Subtotal       decimal.Decimal
	GrandTotal     decimal.Decimal
	Phone          string
	MapLink        string
	Notes          string
	Text           string
}

// OrderIDs hands out ORDER-<unix millis> ids, strictly increasing within the
// process even when called twice in the same millisecond.
type OrderIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewOrderIDs() *OrderIDs {
	return &OrderIDs{now: time.Now}
}

func (g *OrderIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("ORDER-%d", ms)
}

type Builder struct {
	settings Settings
	ids      *OrderIDs
}

func NewBuilder(settings Settings, ids *OrderIDs) *Builder {
	if ids == nil {
		ids = NewOrderIDs()
	}
	return &Builder{settings: settings, ids: ids}
}

func (b *Builder) Settings() Settings {
	return b.settings
}

var defaultBuilder = NewBuilder(DefaultSettings(), nil)

// BuildReceipt builds with the default store settings.
func BuildReceipt(c Cart, meta Metadata) (Receipt, error) {
	return defaultBuilder.Build(c, meta)
}

// Build validates the bill and renders its receipt under a fresh order id.
func (b *Builder) Build(c Cart, meta Metadata) (Receipt, error) {
	if c.IsEmpty() {
		return Receipt{}, &ValidationError{Err: ErrEmptyCart}
	}
	phone := FormatPhone(b.settings.PhonePrefix, meta.Phone)
	if phone == "" {
		return Receipt{}, invalid(ErrMissingField, "phone number is required")
	}

	subtotal := c.Subtotal()
	r := Receipt{
		OrderID:        b.ids.Next(),
		Items:          c.Items(),
		DeliveryCharge: b.settings.DeliveryCharge,
		Subtotal:       subtotal,
		GrandTotal:     subtotal.Add(b.settings.DeliveryCharge),
		Phone:          phone,
		MapLink:        strings.TrimSpace(meta.MapLink),
		Notes:          strings.TrimSpace(meta.Notes),
	}
	r.Text = b.Render(r)
	return r, nil
}

// Render lays the receipt out as the text sent to the customer. The output
// depends only on its input.
func (b *Builder) Render(r Receipt) string {
	sym := b.settings.CurrencySymbol
	amount := func(d decimal.Decimal) string {
		return money.Format(sym, d)
	}

	unitWidth, totalWidth := len("Unit"), len("Total")
	for _, item := range r.Items {
		unitWidth = max(unitWidth, utf8.RuneCountInString(amount(item.UnitPrice)))
		totalWidth = max(totalWidth, utf8.RuneCountInString(amount(item.LineTotal)))
	}

	var sb strings.Builder
	sb.WriteString("Receipt Text\n")
	fmt.Fprintf(&sb, "Order No: %s\n", r.OrderID)
	fmt.Fprintf(&sb, "🛒 *%s*\n\n", b.settings.StoreName)
	fmt.Fprintf(&sb, "No  %s %s  %s  %s\n",
		padRight("Item", nameWidth), "Qty", padLeft("Unit", unitWidth), padLeft("Total", totalWidth))
	for i, item := range r.Items {
		fmt.Fprintf(&sb, "%2d  %s %3d  %s  %s\n",
			i+1,
			padRight(truncate(item.Name, nameWidth), nameWidth),
			item.Quantity,
			padLeft(amount(item.UnitPrice), unitWidth),
			padLeft(amount(item.LineTotal), totalWidth),
		)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "🛵 Delivery Charge: %s\n", amount(r.DeliveryCharge))
	fmt.Fprintf(&sb, "🧾 Grand Total: %s\n", amount(r.GrandTotal))
	sb.WriteString("📍 *Location Links:*\n")
	fmt.Fprintf(&sb, "🔗 [Google Maps](%s)\n", r.MapLink)
	fmt.Fprintf(&sb, "Phone number: %s\n", r.Phone)
	fmt.Fprintf(&sb, "Special Notes: %s", r.Notes)
	return sb.String()
}

// FormatPhone keeps the digits of phone and puts the country prefix in front
// unless the number already carries it.
func FormatPhone(prefix, phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	if prefix != "" && len(digits) > 10 && strings.HasPrefix(digits, prefix) {
		return digits
	}
	return prefix + digits
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}
