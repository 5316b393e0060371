package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Text accepts a JSON string or a bare scalar; the backend is not consistent
// about quoting ids and prices.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*t = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(raw)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Number sends an amount as a bare JSON number rather than decimal's quoted form.
type Number struct {
	decimal.Decimal
}

func NewNumber(d decimal.Decimal) Number {
	return Number{Decimal: d}
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	"2006-01-02",
}

// ParseTime reads the timestamp formats the backend emits. Unparseable values
// give the zero time.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

type Order struct {
	ID         Text                `json:"id"`
	User       Text                `json:"user"`
	BillAmount decimal.NullDecimal `json:"bill_amount"`
	CreatedAt  string              `json:"created_at"`
	Feedback   Text                `json:"feedback"`
	Status     string              `json:"status"`
	Receipt    string              `json:"receipt"`
	IsOffline  bool                `json:"is_offline,omitempty"`
}

func (o Order) RecordID() string    { return string(o.ID) }
func (o Order) SortTime() time.Time { return ParseTime(o.CreatedAt) }

// ReceiptText undoes the escaped newlines stored with the order.
func (o Order) ReceiptText() string {
	return strings.ReplaceAll(o.Receipt, `\n`, "\n")
}

type User struct {
	ID        Text   `json:"id"`
	Name      string `json:"name"`
	Phone     Text   `json:"phone"`
	Language  string `json:"language"`
	CreatedAt string `json:"created_at"`
	LastLogin string `json:"lastlogin"`
}

func (u User) RecordID() string { return string(u.ID) }

// Vendors are addressed by phone number everywhere in the backend.
type Vendor struct {
	ID          Text                `json:"id"`
	Phone       Text                `json:"phone"`
	Name        string              `json:"name"`
	ShopName    string              `json:"shop_name"`
	ProductType string              `json:"product_type"`
	Commission  decimal.NullDecimal `json:"commission"`
}

func (v Vendor) RecordID() string {
	if v.Phone != "" {
		return string(v.Phone)
	}
	return string(v.ID)
}

type Product struct {
	ID           Text                `json:"id"`
	RetailerID   Text                `json:"retailer_id"`
	Name         string              `json:"name"`
	Price        Text                `json:"price"`
	SalePrice    Text                `json:"sale_price"`
	Availability string              `json:"availability"`
	VendorsPrice decimal.NullDecimal `json:"vendors_price"`
	IsPercentage bool                `json:"is_percentage"`
	Category     string              `json:"category,omitempty"`
}

func (p Product) RecordID() string {
	if p.RetailerID != "" {
		return string(p.RetailerID)
	}
	return string(p.ID)
}

type Category struct {
	Name     string
	Products []Product
}

// Catalog is the categorized product listing in server order.
type Catalog []Category

// UnmarshalJSON walks the object key by key so category order survives.
// Entries whose value is not an array are skipped.
func (c *Catalog) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	keys, err := objectKeys(b)
	if err != nil {
		return err
	}

	out := make(Catalog, 0, len(keys))
	for _, key := range keys {
		value := strings.TrimSpace(string(raw[key]))
		if !strings.HasPrefix(value, "[") {
			continue
		}
		var products []Product
		if err := json.Unmarshal(raw[key], &products); err != nil {
			return err
		}
		out = append(out, Category{Name: key, Products: products})
	}
	*c = out
	return nil
}

type NewOrder struct {
	UserID     string `json:"userid"`
	BillAmount Number `json:"bill_amount"`
	Feedback   string `json:"feedback"`
	Receipt    string `json:"receipt"`
	IsOffline  bool   `json:"is_offline"`
}

type AttachItem struct {
	ProductRetailerID string `json:"product_retailer_id"`
	Quantity          int    `json:"quantity"`
	ItemPrice         Number `json:"item_price"`
}

type OrderItem struct {
	ProductID Text                `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	ItemPrice decimal.NullDecimal `json:"item_price"`
	Name      string              `json:"name,omitempty"`
}

// Item change actions for UpdateOrderItems.
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type ItemChange struct {
	ProductID   string  `json:"product_id"`
	Action      string  `json:"action"`
	Qty         int     `json:"qty,omitempty"`
	VendorPrice *Number `json:"vendor_price,omitempty"`
}

type NewVendor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProductType string `json:"product_type"`
	Commission  Number `json:"commission"`
}

type MapProductRequest struct {
	Name                 string  `json:"name"`
	VendorID             string  `json:"vendor_id"`
	Category             string  `json:"category"`
	PercentageOnCategory bool    `json:"percentage_on_category"`
	VendorsPrice         *Number `json:"vendors_price"`
	RetailerID           string  `json:"retailer_id"`
	ProductID            string  `json:"p_id"`
}

// VendorPriceUpdate switches a mapped product between a fixed vendor price
// (margin) and percentage commission. VendorPrice is nil for percentage.
type VendorPriceUpdate struct {
	RetailerID   string  `json:"retailer_id"`
	VendorPrice  *Number `json:"vendor_price"`
	IsPercentage bool    `json:"commission"`
	VendorID     string  `json:"vendor_id"`
}

type ProductMetaUpdate struct {
	ProductID    string `json:"product_id"`
	Availability string `json:"availability,omitempty"`
	Price        string `json:"price,omitempty"`
	SalePrice    string `json:"sale_price"`
}

type LedgerOrder struct {
	OrderID     Text                `json:"order_id"`
	BillAmount  decimal.NullDecimal `json:"bill_amount"`
	SoldAmount  decimal.NullDecimal `json:"sold_amount"`
	VendorPrice decimal.NullDecimal `json:"vendor_price"`
}

type PaidTransactions struct {
	Transactions  []LedgerOrder       `json:"transactions"`
	ClearedAmount decimal.NullDecimal `json:"cleared_amount"`
}

type ModelTotals struct {
	Orders           []LedgerOrder       `json:"orders"`
	TotalSale        decimal.NullDecimal `json:"total_sale"`
	CommissionAmount decimal.NullDecimal `json:"commission_amount"`
	Payable          decimal.NullDecimal `json:"payable"`
}

type FlatPending struct {
	Orders     []LedgerOrder       `json:"orders"`
	TotalSale  decimal.NullDecimal `json:"total_sale"`
	Commission decimal.NullDecimal `json:"commission"`
	Payable    decimal.NullDecimal `json:"payable"`
}

// Shape tags which pending-ledger layout the backend answered with.
type Shape int

const (
	ShapeFlat Shape = iota
	ShapeSplit
)

func (s Shape) String() string {
	if s == ShapeSplit {
		return "split"
	}
	return "flat"
}

// PendingTransactions is resolved once here: a split answer carries margin
// and/or percentage objects, anything else is the flat single-model layout.
type PendingTransactions struct {
	Shape      Shape
	Flat       FlatPending
	Margin     *ModelTotals
	Percentage *ModelTotals
}

func (p *PendingTransactions) UnmarshalJSON(b []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}

	_, hasMargin := probe["margin"]
	_, hasPercentage := probe["percentage"]
	if !hasMargin && !hasPercentage {
		*p = PendingTransactions{Shape: ShapeFlat}
		return json.Unmarshal(b, &p.Flat)
	}

	var split struct {
		Margin     *ModelTotals `json:"margin"`
		Percentage *ModelTotals `json:"percentage"`
	}
	if err := json.Unmarshal(b, &split); err != nil {
		return err
	}
	*p = PendingTransactions{Shape: ShapeSplit, Margin: split.Margin, Percentage: split.Percentage}
	return nil
}

type SummarySeries struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

type OrderSummary struct {
	Categories []string        `json:"categories"`
	Series     []SummarySeries `json:"series"`
}
