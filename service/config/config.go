package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// Solana configuration
	SolanaRPCURL string

	// FeeAccountAddress receives the service-fee leg of every forwarding
	// transaction. Immutable for the process lifetime.
	FeeAccountAddress string

	// Price feed configuration. PriceFeedQuery is a jq expression that
	// extracts the SOL/USD price from the feed's JSON response.
	PriceFeedURL   string
	PriceFeedQuery string

	// NATS configuration. Optional: when empty, lifecycle events are not
	// published.
	NATSURL string

	// NetworkFeeReserve is the fixed lamport amount withheld from every
	// forwarding transaction to cover the chain's own transaction fee.
	NetworkFeeReserve uint64

	// DefaultFeePercentage applies when a user has no configured fee.
	DefaultFeePercentage decimal.Decimal
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	cfg.FeeAccountAddress = os.Getenv("FEE_ACCOUNT_ADDRESS")
	if cfg.FeeAccountAddress == "" {
		errs = append(errs, fmt.Errorf("FEE_ACCOUNT_ADDRESS is required"))
	} else if _, err := solana.PublicKeyFromBase58(cfg.FeeAccountAddress); err != nil {
		errs = append(errs, fmt.Errorf("FEE_ACCOUNT_ADDRESS: invalid address %q: %w", cfg.FeeAccountAddress, err))
	}

	// Price feed configuration
	cfg.PriceFeedURL = os.Getenv("PRICE_FEED_URL")
	if cfg.PriceFeedURL == "" {
		errs = append(errs, fmt.Errorf("PRICE_FEED_URL is required"))
	}
	cfg.PriceFeedQuery = getEnvOrDefault("PRICE_FEED_QUERY", ".solPrice")

	// NATS configuration (optional)
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Forwarding configuration
	reserve, err := parseUint("NETWORK_FEE_RESERVE", 5000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.NetworkFeeReserve = reserve
	}

	feePct, err := parseDecimal("DEFAULT_FEE_PERCENTAGE", "2.0")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.DefaultFeePercentage = feePct
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.FeeAccountAddress == "" {
		errs = append(errs, fmt.Errorf("FeeAccountAddress is required"))
	} else if _, err := solana.PublicKeyFromBase58(c.FeeAccountAddress); err != nil {
		errs = append(errs, fmt.Errorf("FeeAccountAddress is not a valid address: %v", err))
	}

	if c.PriceFeedURL == "" {
		errs = append(errs, fmt.Errorf("PriceFeedURL is required"))
	}

	if c.PriceFeedQuery == "" {
		errs = append(errs, fmt.Errorf("PriceFeedQuery is required"))
	}

	if c.DefaultFeePercentage.IsNegative() {
		errs = append(errs, fmt.Errorf("DefaultFeePercentage cannot be negative"))
	}

	if c.DefaultFeePercentage.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		errs = append(errs, fmt.Errorf("DefaultFeePercentage must be below 100"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// FeeAccount returns the parsed fee account public key.
// Validate must have succeeded before calling this.
func (c *Config) FeeAccount() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.FeeAccountAddress)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseUint parses an unsigned integer from an environment variable or uses a default.
func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseDecimal parses a decimal from an environment variable or uses a default.
func parseDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)
	result, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, value, err)
	}
	return result, nil
}
