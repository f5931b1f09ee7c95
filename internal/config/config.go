package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment configuration shared across providers
	Payments PaymentsConfig

	// Provider credentials
	PayPal   PayPalConfig
	PayMongo PayMongoConfig
	Xendit   XenditConfig
	GCash    GCashConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RedisConfig holds the redis connection used for the provider token cache
// and the background task queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// PaymentsConfig holds cross-provider settlement configuration
type PaymentsConfig struct {
	Currency    string // ISO currency code charged for tours
	FrontendURL string // base URL for success/cancel redirects
	PendingTTL  time.Duration
}

// PayPalConfig holds PayPal REST credentials
type PayPalConfig struct {
	BaseURL       string
	ClientID      string
	Secret        string
	TokenCacheTTL time.Duration
}

// PayMongoConfig holds PayMongo API credentials
type PayMongoConfig struct {
	BaseURL   string
	SecretKey string
}

// XenditConfig holds Xendit API credentials. CallbackToken authenticates
// inbound webhooks via the x-callback-token header.
type XenditConfig struct {
	BaseURL       string
	SecretKey     string
	CallbackToken string
}

// GCashConfig holds manual GCash payment settings
type GCashConfig struct {
	ProofDir     string
	MaxProofSize int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			Issuer:            getEnv("JWT_ISSUER", "booking-backend"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Payments: PaymentsConfig{
			Currency:    getEnv("PAYMENT_CURRENCY", "PHP"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
			PendingTTL:  time.Duration(getEnvAsInt("PAYMENT_PENDING_TTL_SECONDS", 86400)) * time.Second,
		},
		PayPal: PayPalConfig{
			BaseURL:       getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			ClientID:      getEnv("PAYPAL_CLIENT_ID", ""),
			Secret:        getEnv("PAYPAL_SECRET", ""),
			TokenCacheTTL: time.Duration(getEnvAsInt("PAYPAL_TOKEN_CACHE_TTL", 3500)) * time.Second,
		},
		PayMongo: PayMongoConfig{
			BaseURL:   getEnv("PAYMONGO_BASE_URL", "https://api.paymongo.com"),
			SecretKey: getEnv("PAYMONGO_SECRET_KEY", ""),
		},
		Xendit: XenditConfig{
			BaseURL:       getEnv("XENDIT_BASE_URL", "https://api.xendit.co"),
			SecretKey:     getEnv("XENDIT_SECRET_KEY", ""),
			CallbackToken: getEnv("XENDIT_CALLBACK_TOKEN", ""),
		},
		GCash: GCashConfig{
			ProofDir:     getEnv("GCASH_PROOF_DIR", "storage/payment_proofs"),
			MaxProofSize: int64(getEnvAsInt("GCASH_MAX_PROOF_SIZE", 5242880)),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	// Provider credentials are only enforced outside development so local
	// runs can exercise the manual GCash flow without gateway accounts.
	if c.Server.Environment != "development" {
		if c.PayPal.ClientID == "" || c.PayPal.Secret == "" {
			return fmt.Errorf("PAYPAL_CLIENT_ID and PAYPAL_SECRET are required")
		}
		if c.PayMongo.SecretKey == "" {
			return fmt.Errorf("PAYMONGO_SECRET_KEY is required")
		}
		if c.Xendit.SecretKey == "" {
			return fmt.Errorf("XENDIT_SECRET_KEY is required")
		}
		if c.Xendit.CallbackToken == "" {
			return fmt.Errorf("XENDIT_CALLBACK_TOKEN is required")
		}
	}

	if c.Payments.PendingTTL <= 0 {
		return fmt.Errorf("PAYMENT_PENDING_TTL_SECONDS must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
