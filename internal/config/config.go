package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	MnemonicFile string `envconfig:"COORDINATOR_MNEMONIC_FILE"`
	DBPath       string `envconfig:"COORDINATOR_DB_PATH" default:"./data/coordinator.sqlite"`
	Port         int    `envconfig:"COORDINATOR_PORT" default:"8090"`
	LogLevel     string `envconfig:"COORDINATOR_LOG_LEVEL" default:"info"`
	LogDir       string `envconfig:"COORDINATOR_LOG_DIR" default:"./logs"`
	Network      string `envconfig:"COORDINATOR_NETWORK" default:"testnet"`

	RPCHost string `envconfig:"COORDINATOR_RPC_HOST" default:"127.0.0.1:18332"`
	RPCUser string `envconfig:"COORDINATOR_RPC_USER"`
	RPCPass string `envconfig:"COORDINATOR_RPC_PASS"`
	RPCTLS  bool   `envconfig:"COORDINATOR_RPC_TLS" default:"false"`

	MaxUnconfirmedSpeedups int     `envconfig:"COORDINATOR_MAX_UNCONFIRMED_SPEEDUPS" default:"10"`
	MaxRBFAttempts         int     `envconfig:"COORDINATOR_MAX_RBF_ATTEMPTS" default:"10"`
	RBFFeePercentage       float64 `envconfig:"COORDINATOR_RBF_FEE_PERCENTAGE" default:"1.5"`
	MinBlocksBeforeRBF     int     `envconfig:"COORDINATOR_MIN_BLOCKS_BEFORE_RBF" default:"1"`
	MaxFeerateSatVB        int64   `envconfig:"COORDINATOR_MAX_FEERATE_SAT_VB" default:"1000"`
	MinFundingAmountSats   int64   `envconfig:"COORDINATOR_MIN_FUNDING_AMOUNT_SATS" default:"10000"`
	RetryAttemptsSendingTx int     `envconfig:"COORDINATOR_RETRY_ATTEMPTS_SENDING_TX" default:"3"`
	RetryIntervalSeconds   int     `envconfig:"COORDINATOR_RETRY_INTERVAL_SECONDS" default:"30"`
	FinalizationThreshold  int64   `envconfig:"COORDINATOR_FINALIZATION_THRESHOLD" default:"6"`
	MaxTxWeight            int64   `envconfig:"COORDINATOR_MAX_TX_WEIGHT" default:"400000"`
	MaxUnconfirmedParents  int     `envconfig:"COORDINATOR_MAX_UNCONFIRMED_PARENTS" default:"24"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// Load .env file if it exists. godotenv does NOT override already-set env vars,
	// so real environment variables take precedence over .env values.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Network != "mainnet" && c.Network != "testnet" && c.Network != "regtest" {
		return fmt.Errorf("%w: network must be \"mainnet\", \"testnet\" or \"regtest\", got %q", ErrInvalidConfig, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.MaxUnconfirmedSpeedups < 1 {
		return fmt.Errorf("%w: max_unconfirmed_speedups must be >= 1, got %d", ErrInvalidConfig, c.MaxUnconfirmedSpeedups)
	}
	if c.RBFFeePercentage <= 1.0 {
		return fmt.Errorf("%w: rbf_fee_percentage must be > 1.0, got %f", ErrInvalidConfig, c.RBFFeePercentage)
	}
	if c.MaxFeerateSatVB < 1 {
		return fmt.Errorf("%w: max_feerate_sat_vb must be >= 1, got %d", ErrInvalidConfig, c.MaxFeerateSatVB)
	}
	if c.FinalizationThreshold < 1 {
		return fmt.Errorf("%w: finalization_threshold must be >= 1, got %d", ErrInvalidConfig, c.FinalizationThreshold)
	}
	return nil
}
