package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/collection"
	"emart_admin/internal/ledger"
	"emart_admin/internal/llm"
	"emart_admin/internal/money"

	openrouter "github.com/revrost/go-openrouter"
	"go.uber.org/zap"
)

const (
	maxToolRounds     = 4
	defaultOrderLimit = 20
)

var ErrTooManyRounds = errors.New("assistant did not finish within the tool call limit")

type ToolCallRecord struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
	MS   int64          `json:"ms"`
	OK   bool           `json:"ok"`
	Err  string         `json:"err,omitempty"`
}

type Answer struct {
	Question  string           `json:"question"`
	Text      string           `json:"answer_text"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// Ask answers a free-form question, letting the model look data up through
// the assistant tools. With a history the exchange is kept for follow-ups.
func (s *Service) Ask(ctx context.Context, session auth.Session, question string, history *History) (Answer, error) {
	if s.chat == nil || !s.chat.Enabled() {
		return Answer{}, llm.ErrNotConfigured
	}
	if _, err := session.Bearer(); err != nil {
		return Answer{}, err
	}

	if history == nil {
		history = NewHistory(0, 0, s.logger)
	}
	if history.Len() == 0 {
		history.Append(openrouter.SystemMessage(llm.AssistantPrompt(true)))
	}
	history.Append(openrouter.UserMessage(question))

	answer := Answer{Question: question}
	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.chat.ChatWithMessages(ctx, history.Messages(), llm.ToolSchemas())
		if err != nil {
			return answer, err
		}
		if len(resp.Choices) == 0 {
			return answer, llm.ErrEmptyResponse
		}

		msg := resp.Choices[0].Message
		history.Append(msg)
		s.logger.Debug("assistant response",
			zap.Int("round", round),
			zap.Int("tool_calls", len(msg.ToolCalls)),
		)

		if len(msg.ToolCalls) == 0 {
			answer.Text = strings.TrimSpace(msg.Content.Text)
			return answer, nil
		}

		for _, call := range msg.ToolCalls {
			payload, record := s.runTool(ctx, session, call)
			answer.ToolCalls = append(answer.ToolCalls, record)
			history.Append(openrouter.ToolMessage(call.ID, payload))
		}
	}
	return answer, ErrTooManyRounds
}

func (s *Service) runTool(ctx context.Context, session auth.Session, call llm.ToolCall) (string, ToolCallRecord) {
	args := map[string]any{}
	record := ToolCallRecord{Name: call.Function.Name, Args: args}

	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			record.Err = fmt.Sprintf("invalid tool args: %v", err)
			s.logRecord(record)
			return errorPayload(record.Err), record
		}
	}
	record.Args = args

	start := time.Now()
	result, err := s.dispatch(ctx, session, call.Function.Name, args)
	record.MS = time.Since(start).Milliseconds()
	record.OK = err == nil
	if err != nil {
		record.Err = err.Error()
		s.logRecord(record)
		return errorPayload(record.Err), record
	}
	s.logRecord(record)

	payload, err := json.Marshal(result)
	if err != nil {
		record.OK = false
		record.Err = err.Error()
		return errorPayload(record.Err), record
	}
	return string(payload), record
}

func (s *Service) dispatch(ctx context.Context, session auth.Session, name string, args map[string]any) (any, error) {
	switch name {
	case llm.ToolOrderSummary:
		return s.Summary(ctx, session)
	case llm.ToolListVendors:
		vendors, err := s.backend.ListVendors(ctx, session)
		if err != nil {
			return nil, err
		}
		search, _ := stringArg(args, "search")
		return vendorViews(vendors, search), nil
	case llm.ToolVendorLedger:
		vendorID, _ := stringArg(args, "vendor_id")
		l, err := s.ledgers.LoadLedger(ctx, session, vendorID)
		if err != nil {
			return nil, err
		}
		return newLedgerView(l), nil
	case llm.ToolListOrders:
		orders, err := s.backend.ListOrders(ctx, session)
		if err != nil {
			return nil, err
		}
		status, _ := stringArg(args, "status")
		return orderViews(orders, status, intArg(args, "limit", defaultOrderLimit)), nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Service) logRecord(record ToolCallRecord) {
	s.logger.Info("tool call",
		zap.String("name", record.Name),
		zap.Any("args", record.Args),
		zap.Int64("ms", record.MS),
		zap.Bool("ok", record.OK),
		zap.String("err", record.Err),
	)
}

type vendorView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ShopName   string `json:"shop_name,omitempty"`
	Phone      string `json:"phone"`
	Commission string `json:"commission,omitempty"`
}

func vendorViews(vendors []api.Vendor, search string) []vendorView {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]vendorView, 0, len(vendors))
	for _, v := range vendors {
		if needle != "" &&
			!strings.Contains(strings.ToLower(v.Name), needle) &&
			!strings.Contains(strings.ToLower(v.ShopName), needle) &&
			!strings.Contains(string(v.Phone), needle) {
			continue
		}
		view := vendorView{ID: string(v.ID), Name: v.Name, ShopName: v.ShopName, Phone: string(v.Phone)}
		if v.Commission.Valid {
			view.Commission = v.Commission.Decimal.String()
		}
		out = append(out, view)
	}
	return out
}

type modelView struct {
	Orders     int    `json:"orders"`
	Subtotal   string `json:"subtotal"`
	Commission string `json:"commission"`
	Payable    string `json:"payable"`
}

type ledgerView struct {
	VendorID     string    `json:"vendor_id"`
	Cleared      string    `json:"cleared"`
	PaidOrders   int       `json:"paid_orders"`
	Margin       modelView `json:"margin"`
	Percentage   modelView `json:"percentage"`
	TotalPayable string    `json:"total_payable"`
}

func newLedgerView(l ledger.Ledger) ledgerView {
	model := func(m ledger.ModelLedger) modelView {
		return modelView{
			Orders:     len(m.Entries),
			Subtotal:   m.Subtotal.StringFixed(money.Places),
			Commission: m.Commission.StringFixed(money.Places),
			Payable:    m.Payable().StringFixed(money.Places),
		}
	}
	return ledgerView{
		VendorID:     l.VendorID,
		Cleared:      l.Cleared.StringFixed(money.Places),
		PaidOrders:   len(l.Paid),
		Margin:       model(l.Margin),
		Percentage:   model(l.Percentage),
		TotalPayable: l.TotalPayable().StringFixed(money.Places),
	}
}

type orderView struct {
	ID         string `json:"id"`
	User       string `json:"user"`
	Status     string `json:"status"`
	BillAmount string `json:"bill_amount,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func orderViews(orders []api.Order, status string, limit int) []orderView {
	status = strings.ToLower(strings.TrimSpace(status))
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	out := make([]orderView, 0, min(limit, len(orders)))
	for _, o := range collection.New(orders).Items() {
		if status != "" && strings.ToLower(o.Status) != status {
			continue
		}
		view := orderView{ID: string(o.ID), User: string(o.User), Status: o.Status, CreatedAt: o.CreatedAt}
		if o.BillAmount.Valid {
			view.BillAmount = o.BillAmount.Decimal.StringFixed(money.Places)
		}
		out = append(out, view)
		if len(out) == limit {
			break
		}
	}
	return out
}

func stringArg(args map[string]any, key string) (string, bool) {
	value, ok := args[key]
	if !ok {
		return "", false
	}
	if v, isString := value.(string); isString {
		return strings.TrimSpace(v), true
	}
	return fmt.Sprintf("%v", value), true
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case string:
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func errorPayload(message string) string {
	encoded, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return `{"error":"tool failed"}`
	}
	return string(encoded)
}
