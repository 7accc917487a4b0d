package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EventsBackendNone     = "none"
	EventsBackendKafka    = "kafka"
	EventsBackendRabbitMQ = "rabbitmq"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Scheduling
	ClinicTimezone         string        `mapstructure:"CLINIC_TIMEZONE"`
	SlotGranularityMinutes int           `mapstructure:"SLOT_GRANULARITY_MINUTES"`
	QuickBookingLeadTime   time.Duration `mapstructure:"QUICK_BOOKING_LEAD_TIME"`
	BookingLeadTime        time.Duration `mapstructure:"BOOKING_LEAD_TIME"`

	// Events
	EventsBackend    string   `mapstructure:"EVENTS_BACKEND"`
	KafkaBrokers     []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic       string   `mapstructure:"KAFKA_TOPIC"`
	RabbitMQURL      string   `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string   `mapstructure:"RABBITMQ_EXCHANGE"`

	ParticipantCacheSize int `mapstructure:"PARTICIPANT_CACHE_SIZE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"CLINIC_TIMEZONE", "SLOT_GRANULARITY_MINUTES", "QUICK_BOOKING_LEAD_TIME", "BOOKING_LEAD_TIME",
	"EVENTS_BACKEND", "KAFKA_BROKERS", "KAFKA_TOPIC", "RABBITMQ_URL", "RABBITMQ_EXCHANGE",
	"PARTICIPANT_CACHE_SIZE",
}

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("SLOT_GRANULARITY_MINUTES", 30)
	v.SetDefault("QUICK_BOOKING_LEAD_TIME", "1h")
	v.SetDefault("BOOKING_LEAD_TIME", "0s")
	v.SetDefault("EVENTS_BACKEND", EventsBackendNone)
	v.SetDefault("KAFKA_TOPIC", "dental.events")
	v.SetDefault("RABBITMQ_EXCHANGE", "dental.events")
	v.SetDefault("PARTICIPANT_CACHE_SIZE", 1024)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// splitList normalises comma-separated list values. Viper only splits on
// whitespace when decoding a string into a slice.
func splitList(decoded []string, raw string) []string {
	if raw == "" && len(decoded) == 0 {
		return nil
	}
	if raw == "" {
		raw = strings.Join(decoded, ",")
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. Slot generation decides "today" in
// this location.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// SlotGranularity returns the slot step as a duration.
func (c *Config) SlotGranularity() time.Duration {
	return time.Duration(c.SlotGranularityMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. Outside development
// bearer tokens must be verifiable, so AUTH_ISSUER and a signing key or JWKS
// URL are required.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when ENV=%q", c.Env)
		}
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
		}
	}

	switch c.EventsBackend {
	case EventsBackendNone, "":
	case EventsBackendKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND is kafka")
		}
	case EventsBackendRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EVENTS_BACKEND is rabbitmq")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be \"none\", \"kafka\", or \"rabbitmq\", got %q", c.EventsBackend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SlotGranularityMinutes <= 0 {
		return fmt.Errorf("SLOT_GRANULARITY_MINUTES must be positive, got %d", c.SlotGranularityMinutes)
	}
	if c.QuickBookingLeadTime < 0 || c.BookingLeadTime < 0 {
		return fmt.Errorf("booking lead times must not be negative")
	}

	return nil
}
