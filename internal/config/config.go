package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Scheduling
	Timezone          string `mapstructure:"SCHEDULE_TIMEZONE"`
	DefaultOpen       string `mapstructure:"SCHEDULE_DEFAULT_OPEN"`
	DefaultClose      string `mapstructure:"SCHEDULE_DEFAULT_CLOSE"`
	HoursFile         string `mapstructure:"SCHEDULE_HOURS_FILE"`
	SlotStepMinutes   int    `mapstructure:"SCHEDULE_SLOT_STEP_MINUTES"`
	BufferMinutes     int    `mapstructure:"SCHEDULE_BUFFER_MINUTES"`
	DefaultDuration   int    `mapstructure:"DEFAULT_DURATION_MINUTES"`
	StrictTransitions bool   `mapstructure:"SCHEDULE_STRICT_TRANSITIONS"`

	// HTTP hardening
	RateLimitRPS          float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int     `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit             string  `mapstructure:"BODY_LIMIT"`
	RequestTimeoutSeconds int     `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
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
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SCHEDULE_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULE_DEFAULT_OPEN", "09:00")
	v.SetDefault("SCHEDULE_DEFAULT_CLOSE", "17:00")
	v.SetDefault("SCHEDULE_SLOT_STEP_MINUTES", 15)
	v.SetDefault("SCHEDULE_BUFFER_MINUTES", 0)
	v.SetDefault("DEFAULT_DURATION_MINUTES", 30)
	v.SetDefault("SCHEDULE_STRICT_TRANSITIONS", false)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SCHEDULE_TIMEZONE")
	v.BindEnv("SCHEDULE_DEFAULT_OPEN")
	v.BindEnv("SCHEDULE_DEFAULT_CLOSE")
	v.BindEnv("SCHEDULE_HOURS_FILE")
	v.BindEnv("SCHEDULE_SLOT_STEP_MINUTES")
	v.BindEnv("SCHEDULE_BUFFER_MINUTES")
	v.BindEnv("DEFAULT_DURATION_MINUTES")
	v.BindEnv("SCHEDULE_STRICT_TRANSITIONS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("BODY_LIMIT")
	v.BindEnv("REQUEST_TIMEOUT_SECONDS")

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

// Location resolves the scheduling timezone. All availability and conflict
// day bucketing happens in this one location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the scheduling knobs make sense before the server
// starts taking bookings.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SlotStepMinutes <= 0 {
		return fmt.Errorf("SCHEDULE_SLOT_STEP_MINUTES must be positive, got %d", c.SlotStepMinutes)
	}
	if c.BufferMinutes < 0 {
		return fmt.Errorf("SCHEDULE_BUFFER_MINUTES must not be negative, got %d", c.BufferMinutes)
	}
	if c.DefaultDuration <= 0 {
		return fmt.Errorf("DEFAULT_DURATION_MINUTES must be positive, got %d", c.DefaultDuration)
	}
	if c.DBMaxConns < c.DBMinConns {
		return fmt.Errorf("DB_MAX_CONNS (%d) must be at least DB_MIN_CONNS (%d)", c.DBMaxConns, c.DBMinConns)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSeconds)
	}
	return nil
}
