package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AssetInfo describes one asset the Asset Hub listener credits.
type AssetInfo struct {
	Symbol   string
	Decimals int32
}

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Wallet seed configuration. WalletSeed (hex or mnemonic) takes
	// precedence over WalletSeedFile; with neither set, address derivation
	// is unavailable but the rest of the service still runs.
	WalletSeed     string
	WalletSeedFile string
	// MaxAddressesPerAccount caps rotations per (account, chain).
	MaxAddressesPerAccount int

	// Asset Hub listener configuration. An empty URL disables the listener.
	AssetHubSidecarURL   string
	AssetHubPollInterval time.Duration
	// AssetHubAssets maps on-chain asset ids to symbol and decimals,
	// parsed from "id:symbol:decimals" triples.
	AssetHubAssets map[uint64]AssetInfo

	// Penumbra listener configuration. An empty URL disables the listener.
	PenumbraViewURL      string
	PenumbraPollInterval time.Duration
	PenumbraAsset        AssetInfo

	// Reconciler configuration.
	ReconcileInterval time.Duration
	MinConfirmations  uint32

	// Notification configuration
	TelegramBotToken string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPSender       string
}

// defaultAssetHubAssets are the Asset Hub asset ids for the stablecoins the
// service accepts; overridable via ASSETHUB_ASSETS.
var defaultAssetHubAssets = map[uint64]AssetInfo{
	1337: {Symbol: "USDC", Decimals: 6},
	1984: {Symbol: "USDT", Decimals: 6},
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 6570),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "custodia"),

		WalletSeed:             getEnv("CUSTODIA_WALLET_SEED", ""),
		WalletSeedFile:         getEnv("CUSTODIA_WALLET_SEED_FILE", ""),
		MaxAddressesPerAccount: getEnvAsInt("MAX_ADDRESSES_PER_ACCOUNT", 5),

		AssetHubSidecarURL:   getEnv("ASSETHUB_SIDECAR_URL", ""),
		AssetHubPollInterval: getEnvAsDuration("ASSETHUB_POLL_INTERVAL", 12*time.Second),

		PenumbraViewURL:      getEnv("PENUMBRA_VIEW_URL", ""),
		PenumbraPollInterval: getEnvAsDuration("PENUMBRA_POLL_INTERVAL", 30*time.Second),
		PenumbraAsset:        AssetInfo{Symbol: "USDC", Decimals: 6},

		ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", time.Minute),
		MinConfirmations:  uint32(getEnvAsInt("MIN_CONFIRMATIONS", 1)),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPSender:       getEnv("SMTP_SENDER", ""),
	}

	assets, err := parseAssets(getEnv("ASSETHUB_ASSETS", ""))
	if err != nil {
		return nil, err
	}
	cfg.AssetHubAssets = assets

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set.
// Chain URLs and the wallet seed are deliberately not required here: a chain
// without an RPC URL simply does not get a listener, and a missing seed only
// disables address derivation.
func (c *Config) Validate() error {
	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.MaxAddressesPerAccount < 1 {
		return fmt.Errorf("MAX_ADDRESSES_PER_ACCOUNT must be at least 1")
	}
	if c.AssetHubPollInterval <= 0 || c.PenumbraPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	return nil
}

// parseAssets parses "1337:USDC:6,1984:USDT:6" into an asset map; an empty
// value keeps the defaults.
func parseAssets(raw string) (map[uint64]AssetInfo, error) {
	if raw == "" {
		return defaultAssetHubAssets, nil
	}
	assets := make(map[uint64]AssetInfo)
	for _, triple := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(triple), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid ASSETHUB_ASSETS entry %q", triple)
		}
		id, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid asset id in %q: %s", triple, err)
		}
		decimals, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid decimals in %q: %s", triple, err)
		}
		assets[id] = AssetInfo{Symbol: parts[1], Decimals: int32(decimals)}
	}
	return assets, nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
