package infra

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradexec/internal/domain"
)

// DefaultUserAgent is sent on outgoing REST and WebSocket requests.
var DefaultUserAgent = platformUserAgent()

// platformUserAgent generates a browser-like User-Agent string for the
// current OS. Some venue gateways reject requests without one.
func platformUserAgent() string {
	chromeVer := "120.0.0.0"
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		linuxArch := "x86_64"
		if runtime.GOARCH == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	default:
		return "Mozilla/5.0 (compatible; tradexec/1.0)"
	}
}

// Config holds all application settings. Secrets may live in the yaml file
// for development, but environment variables always override them.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Venues struct {
		Bybit struct {
			RestURL   string `yaml:"rest_url"`
			WSURL     string `yaml:"ws_url"`
			APIKey    string `yaml:"api_key"`
			APISecret string `yaml:"api_secret"`
		} `yaml:"bybit"`
		Hyperliquid struct {
			APIURL       string `yaml:"api_url"`
			PrivateKey   string `yaml:"private_key"`
			VaultAddress string `yaml:"vault_address"`
		} `yaml:"hyperliquid"`
		Solana struct {
			RPCURL     string `yaml:"rpc_url"`
			JupiterURL string `yaml:"jupiter_url"`
			PrivateKey string `yaml:"private_key"`
			Commitment string `yaml:"commitment"`  // processed|confirmed|finalized
			QuoteMint  string `yaml:"quote_mint"`  // stable asset for open/close swaps
		} `yaml:"solana"`
	} `yaml:"venues"`

	Execution struct {
		ConfirmTimeoutSec  int `yaml:"confirm_timeout_sec"`
		BroadcastAttempts  int `yaml:"broadcast_attempts"`
		DefaultSlippageBps int `yaml:"default_slippage_bps"`
	} `yaml:"execution"`

	Ledger struct {
		DBPath   string `yaml:"db_path"`
		TraceDir string `yaml:"trace_dir"`
	} `yaml:"ledger"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// USDC mint, the default stable quote asset for Solana swaps.
const DefaultQuoteMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// LoadConfig reads and parses the config file, loads a local .env if present,
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Venues.Bybit.RestURL == "" {
		c.Venues.Bybit.RestURL = "https://api.bybit.com"
	}
	if c.Venues.Bybit.WSURL == "" {
		c.Venues.Bybit.WSURL = "wss://stream.bybit.com/v5/public/linear"
	}
	if c.Venues.Hyperliquid.APIURL == "" {
		c.Venues.Hyperliquid.APIURL = "https://api.hyperliquid.xyz"
	}
	if c.Venues.Solana.RPCURL == "" {
		c.Venues.Solana.RPCURL = "https://api.mainnet-beta.solana.com"
	}
	if c.Venues.Solana.JupiterURL == "" {
		c.Venues.Solana.JupiterURL = "https://quote-api.jup.ag/v6"
	}
	if c.Venues.Solana.Commitment == "" {
		c.Venues.Solana.Commitment = "confirmed"
	}
	if c.Venues.Solana.QuoteMint == "" {
		c.Venues.Solana.QuoteMint = DefaultQuoteMint
	}
	if c.Execution.ConfirmTimeoutSec <= 0 {
		c.Execution.ConfirmTimeoutSec = 60
	}
	if c.Execution.BroadcastAttempts <= 0 {
		c.Execution.BroadcastAttempts = 3
	}
	if c.Execution.DefaultSlippageBps <= 0 {
		c.Execution.DefaultSlippageBps = 100
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !hasPrefix(c.Venues.Bybit.RestURL, "http://") && !hasPrefix(c.Venues.Bybit.RestURL, "https://") {
		return fmt.Errorf("invalid Bybit REST URL: %s", c.Venues.Bybit.RestURL)
	}
	if !hasPrefix(c.Venues.Bybit.WSURL, "ws://") && !hasPrefix(c.Venues.Bybit.WSURL, "wss://") {
		return fmt.Errorf("invalid Bybit WS URL: %s", c.Venues.Bybit.WSURL)
	}
	if !hasPrefix(c.Venues.Hyperliquid.APIURL, "http://") && !hasPrefix(c.Venues.Hyperliquid.APIURL, "https://") {
		return fmt.Errorf("invalid Hyperliquid API URL: %s", c.Venues.Hyperliquid.APIURL)
	}
	if !hasPrefix(c.Venues.Solana.RPCURL, "http://") && !hasPrefix(c.Venues.Solana.RPCURL, "https://") {
		return fmt.Errorf("invalid Solana RPC URL: %s", c.Venues.Solana.RPCURL)
	}
	switch c.Venues.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid Solana commitment: %s", c.Venues.Solana.Commitment)
	}
	return nil
}

// ConfirmTimeout returns the bounded confirmation wait.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Execution.ConfirmTimeoutSec) * time.Second
}

// Credentials extracts the secret bundle for one venue.
func (c *Config) Credentials(venue domain.Venue) domain.VenueCredentials {
	switch venue {
	case domain.VenueBybit:
		return domain.VenueCredentials{
			APIKey:    c.Venues.Bybit.APIKey,
			APISecret: c.Venues.Bybit.APISecret,
		}
	case domain.VenueHyperliquid:
		return domain.VenueCredentials{
			PrivateKey:    c.Venues.Hyperliquid.PrivateKey,
			WalletAddress: c.Venues.Hyperliquid.VaultAddress,
		}
	case domain.VenueSolana:
		return domain.VenueCredentials{PrivateKey: c.Venues.Solana.PrivateKey}
	default:
		return domain.VenueCredentials{}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values. Environment
// wins so secrets can stay out of the config file entirely.
func overrideWithEnv(cfg *Config) {
	if cfg.Venues.Bybit.APISecret != "" || cfg.Venues.Hyperliquid.PrivateKey != "" || cfg.Venues.Solana.PrivateKey != "" {
		// Stdout is reserved for the execution result; operator notices go
		// through the logger.
		slog.Warn("secrets found in config file; prefer environment variables",
			slog.String("vars", "TRADEXEC_BYBIT_KEY, TRADEXEC_BYBIT_SECRET, TRADEXEC_HYPERLIQUID_KEY, TRADEXEC_SOLANA_KEY"))
	}

	if key := os.Getenv("TRADEXEC_BYBIT_KEY"); key != "" {
		cfg.Venues.Bybit.APIKey = key
	}
	if secret := os.Getenv("TRADEXEC_BYBIT_SECRET"); secret != "" {
		cfg.Venues.Bybit.APISecret = secret
	}
	if key := os.Getenv("TRADEXEC_HYPERLIQUID_KEY"); key != "" {
		cfg.Venues.Hyperliquid.PrivateKey = key
	}
	if vault := os.Getenv("TRADEXEC_HYPERLIQUID_VAULT"); vault != "" {
		cfg.Venues.Hyperliquid.VaultAddress = vault
	}
	if key := os.Getenv("TRADEXEC_SOLANA_KEY"); key != "" {
		cfg.Venues.Solana.PrivateKey = key
	}
	if rpc := os.Getenv("TRADEXEC_SOLANA_RPC"); rpc != "" {
		cfg.Venues.Solana.RPCURL = rpc
	}
}
