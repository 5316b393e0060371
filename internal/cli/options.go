package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"emart_admin/internal/config"
)

var ErrNoCommand = errors.New("no command given")

// Options are the global flags. Only flags given on the command line
// override the loaded configuration.
type Options struct {
	Command string
	Args    []string

	JSON        bool
	Debug       bool
	LogFile     string
	Timeout     time.Duration
	APIBaseURL  string
	Email       string
	Password    string
	MetricsAddr string
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string

	set map[string]bool
}

func ParseArgs(args []string, stderr io.Writer) (Options, error) {
	var (
		opts           Options
		timeoutSeconds int
	)

	fs := flag.NewFlagSet("emart-admin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <command> [args]\n\nCommands:\n%s\nFlags:\n", fs.Name(), commandHelp)
		fs.PrintDefaults()
	}

	fs.BoolVar(&opts.JSON, "json", false, "Output JSON")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&opts.LogFile, "log-file", "", "Log file path")
	fs.IntVar(&timeoutSeconds, "timeout", 0, "Request timeout in seconds")
	fs.StringVar(&opts.APIBaseURL, "api-base-url", "", "Backend base URL")
	fs.StringVar(&opts.Email, "email", "", "Login email")
	fs.StringVar(&opts.Password, "password", "", "Login password")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	fs.StringVar(&opts.LLMBaseURL, "llm-base-url", "", "LLM base URL")
	fs.StringVar(&opts.LLMAPIKey, "llm-api-key", "", "LLM API key")
	fs.StringVar(&opts.LLMModel, "llm-model", "", "LLM model")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	opts.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	if timeoutSeconds > 0 {
		opts.Timeout = time.Duration(timeoutSeconds) * time.Second
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return Options{}, ErrNoCommand
	}
	opts.Command = strings.ToLower(strings.TrimSpace(rest[0]))
	opts.Args = rest[1:]
	return opts, nil
}

// Apply overlays the flags that were set onto cfg.
func (o Options) Apply(cfg config.Config) config.Config {
	if o.set["debug"] {
		cfg.Debug = o.Debug
	}
	if o.set["log-file"] {
		cfg.LogFile = o.LogFile
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.set["api-base-url"] {
		cfg.APIBaseURL = o.APIBaseURL
	}
	if o.set["email"] {
		cfg.Email = o.Email
	}
	if o.set["password"] {
		cfg.Password = o.Password
	}
	if o.set["metrics-addr"] {
		cfg.MetricsAddr = o.MetricsAddr
	}
	if o.set["llm-base-url"] {
		cfg.LLMBaseURL = o.LLMBaseURL
	}
	if o.set["llm-api-key"] {
		cfg.LLMAPIKey = o.LLMAPIKey
	}
	if o.set["llm-model"] {
		cfg.LLMModel = o.LLMModel
	}
	return cfg
}

const commandHelp = `  login                                 log in and print the session token
  signup <username> <email> <password>  register a dashboard account
  orders [--search s] [--feedback f] [--watch]
                                        list orders; --watch keeps them live
  order-status <orderId> <status>       change an order's status
  order-items <orderId> [add <productId> <qty> | set <productId> <qty> | rm <productId>]
  users [--phone p] [--joined YYYY-MM-DD]
  vendors [--search s] [--watch]
  vendor-add --name n --phone p --type t --commission c
  vendor-products <vendorId> [--search s]
  map <vendorId> <productId>            map a catalog product to a vendor
  unmap <vendorId> <retailerId>
  vendor-price <vendorId> <productId> <price|percentage> [--availability a --price p --sale-price s]
  products [--search s] [--category c]
  stock <productId>                     toggle in stock / out of stock
  ledger <vendorId>
  pay <vendorId> <transactionId> [note]
  bill                                  interactive billing
  insights                              order summary, narrated when an LLM is configured
  ask [question]                        ask the assistant; without a question starts a session
`
