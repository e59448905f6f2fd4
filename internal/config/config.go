package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the service
type Config struct {
	Env      string         `env:"ENV" envDefault:"development"`
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Chain    ChainConfig    `envPrefix:"CHAIN_"`
	Wallet   WalletConfig   `envPrefix:"WALLET_"`
	Events   EventsConfig   `envPrefix:"EVENTS_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `env:"PORT" envDefault:"8080"`
}

// DatabaseConfig holds PostgreSQL configuration for the submission ledger.
// The ledger is disabled when Host is empty.
type DatabaseConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	DBName   string `env:"NAME" envDefault:"fundraise_playground"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
}

// Enabled reports whether a database is configured
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// ChainConfig holds configuration for the EVM chain hosting the Fundraise contract
type ChainConfig struct {
	ChainID          string `env:"ID" envDefault:"31337"` // hardhat
	Name             string `env:"NAME" envDefault:"Hardhat"`
	RPCEndpoint      string `env:"RPC_ENDPOINT" envDefault:"http://127.0.0.1:8545"`
	FundraiseAddress string `env:"FUNDRAISE_ADDRESS"`
	StartBlock       uint64 `env:"START_BLOCK" envDefault:"0"` // first block scanned for events

	// ConfirmTimeout bounds the wait for a receipt; zero waits until mined
	ConfirmTimeout      time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"0s"`
	ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL" envDefault:"2s"`
}

// WalletConfig holds the key of the connected wallet.
// Without a key the service runs read-only and has no signer.
type WalletConfig struct {
	PrivateKey string `env:"PRIVATE_KEY"`
}

// Connected reports whether a signing key is configured
func (c WalletConfig) Connected() bool {
	return c.PrivateKey != ""
}

// EventsConfig controls the background contribution refresher
type EventsConfig struct {
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"0s"` // zero disables
}

// LoadConfig loads configuration from an optional .env file and the environment
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Chain.RPCEndpoint == "" {
		return fmt.Errorf("CHAIN_RPC_ENDPOINT is required")
	}

	if !common.IsHexAddress(c.Chain.FundraiseAddress) {
		return fmt.Errorf("invalid Fundraise contract address: %q", c.Chain.FundraiseAddress)
	}

	if c.Chain.ReceiptPollInterval <= 0 {
		return fmt.Errorf("receipt poll interval must be positive")
	}

	if c.Chain.ConfirmTimeout < 0 {
		return fmt.Errorf("confirm timeout must not be negative")
	}

	if c.Events.PollInterval < 0 {
		return fmt.Errorf("events poll interval must not be negative")
	}

	if c.Wallet.Connected() && len(strings.TrimPrefix(c.Wallet.PrivateKey, "0x")) != 64 {
		return fmt.Errorf("wallet private key must be 32 bytes hex encoded")
	}

	return nil
}
