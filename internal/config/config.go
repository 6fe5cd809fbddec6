package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration for the settlement callbacks
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// SwapConfig holds the swap engine's fee schedule and operational limits
type SwapConfig struct {
	BaseFeeEth         float64       `mapstructure:"base_fee_eth"`
	FeePolicy          string        `mapstructure:"fee_policy"` // "flat" or "tiered"
	TierValueCommon    float64       `mapstructure:"tier_value_common"`
	TierValueUncommon  float64       `mapstructure:"tier_value_uncommon"`
	TierValueRare      float64       `mapstructure:"tier_value_rare"`
	TierValueLegendary float64       `mapstructure:"tier_value_legendary"`
	IntentTTL          time.Duration `mapstructure:"intent_ttl"`
	RateLimitMax       int64         `mapstructure:"rate_limit_max"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
	DefaultPageSize    int           `mapstructure:"default_page_size"`
	MaxPageSize        int           `mapstructure:"max_page_size"`
}

// RarityConfig holds the rarity scoring constants
type RarityConfig struct {
	TotalSupply     float64 `mapstructure:"total_supply"`
	ScaleDivisor    float64 `mapstructure:"scale_divisor"`
	ScaleMultiplier float64 `mapstructure:"scale_multiplier"`
}

// ExpirySweeperConfig holds configuration for the intent expiry sweeper
type ExpirySweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// RescoreSweeperConfig holds configuration for the rarity rescore sweeper
type RescoreSweeperConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Swap       SwapConfig     `mapstructure:"swap"`
	Rarity     RarityConfig   `mapstructure:"rarity"`
}

// SweeperConfig holds configuration for the sweeper program
type SweeperConfig struct {
	BaseConfig    `mapstructure:",squash"`
	Database      DatabaseConfig       `mapstructure:"database"`
	Swap          SwapConfig           `mapstructure:"swap"`
	Rarity        RarityConfig         `mapstructure:"rarity"`
	ExpirySweeper ExpirySweeperConfig  `mapstructure:"expiry_sweeper"`
	RescoreSweep  RescoreSweeperConfig `mapstructure:"rescore_sweeper"`
}

// setSwapDefaults applies the launch fee schedule and limits
func setSwapDefaults(v *viper.Viper) {
	v.SetDefault("swap.base_fee_eth", 0.002)
	v.SetDefault("swap.fee_policy", "flat")
	v.SetDefault("swap.tier_value_common", 0.0)
	v.SetDefault("swap.tier_value_uncommon", 0.0005)
	v.SetDefault("swap.tier_value_rare", 0.001)
	v.SetDefault("swap.tier_value_legendary", 0.002)
	v.SetDefault("swap.intent_ttl", "30m")
	v.SetDefault("swap.rate_limit_max", 5)
	v.SetDefault("swap.rate_limit_window", "1h")
	v.SetDefault("swap.default_page_size", 20)
	v.SetDefault("swap.max_page_size", 50)
	v.SetDefault("rarity.total_supply", 5000)
	v.SetDefault("rarity.scale_divisor", 5)
	v.SetDefault("rarity.scale_multiplier", 10)
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	setSwapDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("expiry_sweeper.interval", "1m")
	v.SetDefault("rescore_sweeper.interval", "1h")
	v.SetDefault("rescore_sweeper.batch_size", 200)
	v.SetDefault("rescore_sweeper.worker_pool_size", 4)
	setSwapDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg SweeperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}

	return &cfg, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/sweeper/, cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("TREASURY_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Swap
		"swap.base_fee_eth",
		"swap.fee_policy",
		"swap.tier_value_common",
		"swap.tier_value_uncommon",
		"swap.tier_value_rare",
		"swap.tier_value_legendary",
		"swap.intent_ttl",
		"swap.rate_limit_max",
		"swap.rate_limit_window",
		"swap.default_page_size",
		"swap.max_page_size",
		// Rarity
		"rarity.total_supply",
		"rarity.scale_divisor",
		"rarity.scale_multiplier",
		// Sweepers
		"expiry_sweeper.interval",
		"rescore_sweeper.interval",
		"rescore_sweeper.batch_size",
		"rescore_sweeper.worker_pool_size",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository
// root, identified by the go.mod file, so relative env paths resolve the
// same from any package directory
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
