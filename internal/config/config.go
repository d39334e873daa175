package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
	// PlatformUserID is the account that holds staked pools and earns
	// commission. Injected here rather than hard-coded so fee mechanics
	// are testable against any account.
	PlatformUserID uint
	// PlatformFeeRate is the fraction of each gross prize retained as
	// commission (0.20 means winners net 80%).
	PlatformFeeRate decimal.Decimal
	Asset           string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	platformID, err := strconv.ParseUint(getEnv("PLATFORM_USER_ID", "1"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_USER_ID: %w", err)
	}

	feePercent, err := decimal.NewFromString(getEnv("PLATFORM_FEE_PERCENT", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_PERCENT: %w", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "challenge_market"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			PlatformUserID:  uint(platformID),
			PlatformFeeRate: feePercent.Div(decimal.NewFromInt(100)),
			Asset:           getEnv("ASSET_CODE", "BRT"),
		},
	}

	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
