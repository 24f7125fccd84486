package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Credentials is one exchange API identity. Passphrase is only used by
// venues that require it.
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
}

// Configured reports whether the key/secret pair is present.
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// Config is the full application configuration, read from environment
// variables only. Credentials never arrive via request parameters.
type Config struct {
	Server struct {
		Port            string        `envconfig:"PORT" default:"8080"`
		RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
		UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"8s"`
	}

	Binance struct {
		APIKey    string `envconfig:"BINANCE_API_KEY"`
		SecretKey string `envconfig:"BINANCE_SECRET_KEY"`
		// Requests per minute against signed endpoints; 0 disables the gate.
		MaxRequestsPerMinute int `envconfig:"BINANCE_MAX_RPM" default:"60"`
		Burst                int `envconfig:"BINANCE_BURST" default:"5"`
	}

	OKX struct {
		APIKey               string `envconfig:"OKX_API_KEY"`
		SecretKey            string `envconfig:"OKX_SECRET_KEY"`
		Passphrase           string `envconfig:"OKX_PASSPHRASE"`
		MaxRequestsPerMinute int    `envconfig:"OKX_MAX_RPM" default:"30"`
		Burst                int    `envconfig:"OKX_BURST" default:"2"`
	}

	Bithumb struct {
		APIKey               string `envconfig:"BITHUMB_API_KEY"`
		SecretKey            string `envconfig:"BITHUMB_SECRET_KEY"`
		MaxRequestsPerMinute int    `envconfig:"BITHUMB_MAX_RPM" default:"30"`
		Burst                int    `envconfig:"BITHUMB_BURST" default:"2"`
	}

	Aggregation struct {
		MinUSD            float64       `envconfig:"MIN_USD" default:"100"`
		TopN              int           `envconfig:"TOP_N" default:"20"`
		RateSourceTimeout time.Duration `envconfig:"RATE_SOURCE_TIMEOUT" default:"3s"`
	}
}

// BinanceCredentials returns the Binance identity.
func (c *Config) BinanceCredentials() Credentials {
	return Credentials{APIKey: c.Binance.APIKey, SecretKey: c.Binance.SecretKey}
}

// OKXCredentials returns the OKX identity including its passphrase.
func (c *Config) OKXCredentials() Credentials {
	return Credentials{APIKey: c.OKX.APIKey, SecretKey: c.OKX.SecretKey, Passphrase: c.OKX.Passphrase}
}

// BithumbCredentials returns the Bithumb identity.
func (c *Config) BithumbCredentials() Credentials {
	return Credentials{APIKey: c.Bithumb.APIKey, SecretKey: c.Bithumb.SecretKey}
}

// Validate rejects values that would make handlers misbehave.
func Validate(cfg *Config) error {
	if cfg.Server.UpstreamTimeout < time.Second {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be at least 1s, got %s", cfg.Server.UpstreamTimeout)
	}
	if cfg.Server.UpstreamTimeout > cfg.Server.RequestTimeout {
		return fmt.Errorf("UPSTREAM_TIMEOUT (%s) exceeds REQUEST_TIMEOUT (%s)",
			cfg.Server.UpstreamTimeout, cfg.Server.RequestTimeout)
	}
	if cfg.Aggregation.TopN < 1 {
		return fmt.Errorf("TOP_N must be positive, got %d", cfg.Aggregation.TopN)
	}
	if cfg.Aggregation.MinUSD < 0 {
		return fmt.Errorf("MIN_USD must not be negative, got %v", cfg.Aggregation.MinUSD)
	}
	return nil
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
