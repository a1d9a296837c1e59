// Package config provides configuration management for the paper trading agent.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Pricing   PricingConfig
	Portfolio PortfolioConfig
	Reporting ReportingConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// GatewayConfig holds market data gateway configuration
type GatewayConfig struct {
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// PricingConfig holds price resolution configuration
type PricingConfig struct {
	CacheTTL     time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	RegistryTTL  time.Duration
	GenericCap   decimal.Decimal       // upper bound for tokens without a configured range
	Ranges       map[string]PriceRange // per-symbol plausibility ranges
	StableTokens []string              // tokens pinned to 1.0 USD
	HighValue    string                // token exempt from the generic upper bound
}

// PriceRange defines the plausible price band for a token
type PriceRange struct {
	Min     decimal.Decimal
	Max     decimal.Decimal
	Typical decimal.Decimal
}

// PortfolioConfig holds portfolio seeding configuration
type PortfolioConfig struct {
	BaseToken   string // USD-equivalent stablecoin the ledger is seeded with
	SeedBalance decimal.Decimal
}

// ReportingConfig holds reporting sink configuration
type ReportingConfig struct {
	BaseURL string
	APIKey  string
	AgentID string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// defaultRanges are the built-in reference bands used to reject obviously
// wrong quotes. Every entry can be overridden with a PRICE_RANGE_<SYMBOL>
// env var, so stale bands are a configuration problem rather than a rebuild.
var defaultRanges = map[string]string{
	"BTC":   "20000:200000:100000",
	"ETH":   "1000:10000:3000",
	"SOL":   "20:500:150",
	"DOGE":  "0.05:1:0.15",
	"AVAX":  "10:200:40",
	"MATIC": "0.3:3:0.8",
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "paper_trader"),
				User:           getEnv("POSTGRES_USER", "trader"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "paper_trader"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Gateway: GatewayConfig{
			BaseURL:           getEnv("GATEWAY_BASE_URL", "https://api.testnet.paradex.trade/v1"),
			RequestTimeout:    getEnvAsDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvAsFloat("GATEWAY_REQUESTS_PER_SECOND", 5),
		},
		Pricing: PricingConfig{
			CacheTTL:     getEnvAsDuration("PRICE_CACHE_TTL", 30*time.Minute),
			MaxRetries:   getEnvAsInt("PRICE_MAX_RETRIES", 3),
			RetryDelay:   getEnvAsDuration("PRICE_RETRY_DELAY", time.Second),
			RegistryTTL:  getEnvAsDuration("REGISTRY_CACHE_TTL", 30*time.Minute),
			GenericCap:   getEnvAsDecimal("PRICE_GENERIC_CAP", "10000"),
			Ranges:       loadPriceRanges(),
			StableTokens: getEnvAsList("STABLE_TOKENS", "USDC,USDT,DAI"),
			HighValue:    getEnv("HIGH_VALUE_TOKEN", "BTC"),
		},
		Portfolio: PortfolioConfig{
			BaseToken:   getEnv("PORTFOLIO_BASE_TOKEN", "USDC"),
			SeedBalance: getEnvAsDecimal("PORTFOLIO_SEED_BALANCE", "1000"),
		},
		Reporting: ReportingConfig{
			BaseURL: getEnv("REPORTING_BASE_URL", ""),
			APIKey:  getEnv("REPORTING_API_KEY", ""),
			AgentID: getEnv("AGENT_ID", "local"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// loadPriceRanges builds the per-symbol plausibility ranges, starting from the
// built-in defaults and applying PRICE_RANGE_<SYMBOL>=min:max:typical overrides.
func loadPriceRanges() map[string]PriceRange {
	ranges := make(map[string]PriceRange, len(defaultRanges))

	for symbol, spec := range defaultRanges {
		if r, err := ParsePriceRange(spec); err == nil {
			ranges[symbol] = r
		}
	}

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, "PRICE_RANGE_") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimPrefix(key, "PRICE_RANGE_"))
		if symbol == "" {
			continue
		}
		if r, err := ParsePriceRange(value); err == nil {
			ranges[symbol] = r
		}
	}

	return ranges
}

// ParsePriceRange parses a "min:max:typical" range specification
func ParsePriceRange(spec string) (PriceRange, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return PriceRange{}, fmt.Errorf("invalid price range %q: want min:max:typical", spec)
	}

	min, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return PriceRange{}, fmt.Errorf("invalid range min %q: %w", parts[0], err)
	}
	max, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return PriceRange{}, fmt.Errorf("invalid range max %q: %w", parts[1], err)
	}
	typical, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil {
		return PriceRange{}, fmt.Errorf("invalid range typical %q: %w", parts[2], err)
	}

	if min.GreaterThan(max) {
		return PriceRange{}, fmt.Errorf("invalid price range %q: min > max", spec)
	}

	return PriceRange{Min: min, Max: max, Typical: typical}, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal gets an environment variable as a decimal with a default value
func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		value, _ = decimal.NewFromString(defaultValue)
	}
	return value
}

// getEnvAsList gets a comma-separated environment variable as a string slice
func getEnvAsList(key, defaultValue string) []string {
	raw := strings.Split(getEnv(key, defaultValue), ",")

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}
