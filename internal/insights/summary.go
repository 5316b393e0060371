// Package insights turns the dashboard order summary into a table and, when an
// LLM is configured, a short narrative or tool-assisted answers.
package insights

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/ledger"
	"emart_admin/internal/llm"

	openrouter "github.com/revrost/go-openrouter"
	"go.uber.org/zap"
)

const defaultSeriesName = "Orders"

type Backend interface {
	OrderSummary(ctx context.Context, session auth.Session) (api.OrderSummary, error)
	ListOrders(ctx context.Context, session auth.Session) ([]api.Order, error)
	ListVendors(ctx context.Context, session auth.Session) ([]api.Vendor, error)
}

type LedgerLoader interface {
	LoadLedger(ctx context.Context, session auth.Session, vendorID string) (ledger.Ledger, error)
}

// Chatter is the part of llm.Client the service talks to.
type Chatter interface {
	Enabled() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	ChatWithMessages(ctx context.Context, messages []openrouter.ChatCompletionMessage, tools []openrouter.Tool) (openrouter.ChatCompletionResponse, error)
}

type Period struct {
	Label string  `json:"label"`
	Count float64 `json:"count"`
}

type Summary struct {
	Series  string   `json:"series"`
	Periods []Period `json:"periods"`
	Total   float64  `json:"total"`
}

// Table renders the summary as aligned label/count rows with a total line.
func (s Summary) Table() string {
	width := len("Total")
	for _, p := range s.Periods {
		width = max(width, len([]rune(p.Label)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Series)
	for _, p := range s.Periods {
		fmt.Fprintf(&b, "%-*s  %s\n", width, p.Label, formatCount(p.Count))
	}
	fmt.Fprintf(&b, "%-*s  %s\n", width, "Total", formatCount(s.Total))
	return b.String()
}

type Service struct {
	backend Backend
	ledgers LedgerLoader
	chat    Chatter
	logger  *zap.Logger
}

func NewService(backend Backend, ledgers LedgerLoader, chat Chatter, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		ledgers: ledgers,
		chat:    chat,
		logger:  logger.Named("insights"),
	}
}

func (s *Service) Summary(ctx context.Context, session auth.Session) (Summary, error) {
	raw, err := s.backend.OrderSummary(ctx, session)
	if err != nil {
		return Summary{}, fmt.Errorf("order summary: %w", err)
	}
	return Summarize(raw), nil
}

// Summarize pairs the category labels with the first series. Extra labels
// without data count as zero; extra data points get a positional label.
func Summarize(raw api.OrderSummary) Summary {
	out := Summary{Series: defaultSeriesName}
	var data []float64
	if len(raw.Series) > 0 {
		data = raw.Series[0].Data
		if name := strings.TrimSpace(raw.Series[0].Name); name != "" {
			out.Series = name
		}
	}

	n := max(len(raw.Categories), len(data))
	out.Periods = make([]Period, 0, n)
	for i := 0; i < n; i++ {
		p := Period{Label: "#" + strconv.Itoa(i+1)}
		if i < len(raw.Categories) {
			p.Label = raw.Categories[i]
		}
		if i < len(data) {
			p.Count = data[i]
		}
		out.Total += p.Count
		out.Periods = append(out.Periods, p)
	}
	return out
}

// Narrate asks the LLM for a short reading of the summary.
func (s *Service) Narrate(ctx context.Context, summary Summary) (string, error) {
	if s.chat == nil || !s.chat.Enabled() {
		return "", llm.ErrNotConfigured
	}
	text, err := s.chat.Complete(ctx, llm.NarratePrompt(), summary.Table())
	if err != nil {
		return "", fmt.Errorf("narrate: %w", err)
	}
	return text, nil
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
