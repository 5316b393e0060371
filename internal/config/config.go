package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/go-core-fx/config"
)

const (
	DefaultBaseURL        = "https://python-whatsapp-bot-main-production-3c9c.up.railway.app"
	DefaultDeliveryCharge = "30"
)

var ErrInvalidInterval = errors.New("poll interval must be positive")

type Config struct {
	APIBaseURL string        `koanf:"api_base_url"`
	APIToken   string        `koanf:"api_token"`
	Email      string        `koanf:"email"`
	Password   string        `koanf:"password"`
	SessionTTL time.Duration `koanf:"session_ttl"`
	EventsPath string        `koanf:"events_path"`
	Timeout    time.Duration `koanf:"timeout"`

	OrdersPollInterval  time.Duration `koanf:"orders_poll_interval"`
	UsersPollInterval   time.Duration `koanf:"users_poll_interval"`
	VendorsPollInterval time.Duration `koanf:"vendors_poll_interval"`

	DeliveryCharge string `koanf:"delivery_charge"`
	PhonePrefix    string `koanf:"phone_prefix"`
	CurrencySymbol string `koanf:"currency_symbol"`
	StoreName      string `koanf:"store_name"`

	MetricsAddr string `koanf:"metrics_addr"`

	LLMBaseURL string `koanf:"llm_base_url"`
	LLMAPIKey  string `koanf:"llm_api_key"`
	LLMModel   string `koanf:"llm_model"`

	LogFile string `koanf:"log_file"`
	Debug   bool   `koanf:"debug"`
}

// Default returns the configuration used before any source is applied.
func Default() Config {
	return Config{
		APIBaseURL:          DefaultBaseURL,
		SessionTTL:          12 * time.Hour,
		EventsPath:          "/events",
		Timeout:             20 * time.Second,
		OrdersPollInterval:  10 * time.Second,
		UsersPollInterval:   60 * time.Second,
		VendorsPollInterval: 60 * time.Second,
		DeliveryCharge:      DefaultDeliveryCharge,
		PhonePrefix:         "91",
		CurrencySymbol:      "₹",
		StoreName:           "eMart - PO",
		LogFile:             "./emart-admin.log",
		Debug:               false,
	}
}

func New() (Config, error) {
	cfg := Default()

	if err := coreconfig.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("api_base_url is required")
	}
	for name, interval := range map[string]time.Duration{
		"orders_poll_interval":  c.OrdersPollInterval,
		"users_poll_interval":   c.UsersPollInterval,
		"vendors_poll_interval": c.VendorsPollInterval,
	} {
		if interval <= 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidInterval)
		}
	}
	return nil
}
