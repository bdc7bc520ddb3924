package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	TokenTTL    time.Duration `mapstructure:"TOKEN_TTL"`
	OTPTTL      time.Duration `mapstructure:"OTP_TTL"`
	CORSOrigins []string      `mapstructure:"CORS_ORIGINS"`

	// Document storage. When STORAGE_DIR is empty the in-memory store is
	// used, which only makes sense in development and tests.
	StorageDir string `mapstructure:"STORAGE_DIR"`

	// OCR provider (Gemini-compatible generateContent endpoint).
	OCREndpoint string        `mapstructure:"OCR_ENDPOINT"`
	OCRAPIKey   string        `mapstructure:"OCR_API_KEY"`
	OCRModel    string        `mapstructure:"OCR_MODEL"`
	OCRTimeout  time.Duration `mapstructure:"OCR_TIMEOUT"`

	SlotDurationMinutes int `mapstructure:"SLOT_DURATION_MINUTES"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("OCR_MODEL", "gemini-2.0-flash")
	v.SetDefault("OCR_TIMEOUT", "60s")
	v.SetDefault("SLOT_DURATION_MINUTES", 20)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL")
	v.BindEnv("OTP_TTL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("STORAGE_DIR")
	v.BindEnv("OCR_ENDPOINT")
	v.BindEnv("OCR_API_KEY")
	v.BindEnv("OCR_MODEL")
	v.BindEnv("OCR_TIMEOUT")
	v.BindEnv("SLOT_DURATION_MINUTES")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("REQUEST_TIMEOUT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside of
// development a JWT secret must be set so tokens cannot be forged, and
// document processing needs both an OCR key and a durable storage root.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.SlotDurationMinutes <= 0 {
		return fmt.Errorf("SLOT_DURATION_MINUTES must be positive, got %d", c.SlotDurationMinutes)
	}
	if c.IsProduction() && c.OCRAPIKey == "" {
		return fmt.Errorf("OCR_API_KEY is required in production")
	}
	if c.IsProduction() && c.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR is required in production")
	}
	return nil
}
