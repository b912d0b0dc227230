package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string `yaml:"service_name"`
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	Timezone    string `yaml:"timezone"`

	// StoreDriver selects "postgres" or "memory".
	StoreDriver string         `yaml:"store_driver"`
	Database    DatabaseConfig `yaml:"database"`

	NatsURL              string `yaml:"nats_url"`
	JWTSecret            string `yaml:"jwt_secret"`
	InternalSharedSecret string `yaml:"internal_shared_secret"`
	OtelEndpoint         string `yaml:"otel_endpoint"`

	MemberCancelCutoffHours int `yaml:"member_cancel_cutoff_hours"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	S3        S3Config        `yaml:"s3"`
	APNS      APNSConfig      `yaml:"apns"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
}

type RateLimitConfig struct {
	Max               int `yaml:"max"`
	ExpirationSeconds int `yaml:"expiration_seconds"`
}

type SchedulerConfig struct {
	Enabled              bool   `yaml:"enabled"`
	StatusSpec           string `yaml:"status_spec"`
	MaterializeSpec      string `yaml:"materialize_spec"`
	MaterializeDaysAhead int    `yaml:"materialize_days_ahead"`
}

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type APNSConfig struct {
	AuthKeyPath string `yaml:"auth_key_path"`
	KeyID       string `yaml:"key_id"`
	TeamID      string `yaml:"team_id"`
	Topic       string `yaml:"topic"`
	Production  bool   `yaml:"production"`
}

func defaults() Config {
	return Config{
		ServiceName:             "gym-booking-service",
		Port:                    "8003",
		LogLevel:                "info",
		Timezone:                "UTC",
		StoreDriver:             "postgres",
		MemberCancelCutoffHours: 24,
		RateLimit:               RateLimitConfig{Max: 30, ExpirationSeconds: 60},
		Scheduler: SchedulerConfig{
			Enabled:              true,
			StatusSpec:           "@every 1m",
			MaterializeSpec:      "0 2 * * *",
			MaterializeDaysAhead: 14,
		},
	}
}

// Load reads .env.dev if present, then the YAML file named by CONFIG_FILE,
// then environment variables. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.dev"); err != nil {
		log.Println("No .env.dev file found, reading from environment variables")
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "APP_PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Timezone, "APP_TIMEZONE")
	setString(&c.StoreDriver, "STORE_DRIVER")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.NatsURL, "NATS_URL")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.InternalSharedSecret, "INTERNAL_SHARED_SECRET")
	setString(&c.OtelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Scheduler.StatusSpec, "SCHEDULER_STATUS_SPEC")
	setString(&c.Scheduler.MaterializeSpec, "SCHEDULER_MATERIALIZE_SPEC")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.Region, "AWS_REGION")
	setString(&c.S3.Bucket, "S3_BUCKET_NAME")
	setString(&c.S3.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.S3.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.APNS.AuthKeyPath, "APNS_AUTH_KEY_PATH")
	setString(&c.APNS.KeyID, "APNS_KEY_ID")
	setString(&c.APNS.TeamID, "APNS_TEAM_ID")
	setString(&c.APNS.Topic, "APNS_TOPIC")

	if v := os.Getenv("APNS_MODE"); v != "" {
		c.APNS.Production = v == "production"
	}
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		c.S3.UsePathStyle = v == "true"
	}

	for key, dst := range map[string]*int{
		"MEMBER_CANCEL_CUTOFF_HOURS": &c.MemberCancelCutoffHours,
		"RATE_LIMIT_MAX":             &c.RateLimit.Max,
		"RATE_LIMIT_EXPIRATION":      &c.RateLimit.ExpirationSeconds,
		"MATERIALIZE_DAYS_AHEAD":     &c.Scheduler.MaterializeDaysAhead,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCHEDULER_ENABLED: %w", err)
		}
		c.Scheduler.Enabled = enabled
	}
	return nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.MemberCancelCutoffHours < 0 {
		return fmt.Errorf("MEMBER_CANCEL_CUTOFF_HOURS must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	if c.InternalSharedSecret == "" {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// DatabaseURL prefers DATABASE_URL and otherwise assembles one from DB_* parts.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name,
	)
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) MemberCancelCutoff() time.Duration {
	return time.Duration(c.MemberCancelCutoffHours) * time.Hour
}

func (c *Config) RateLimitExpiration() time.Duration {
	return time.Duration(c.RateLimit.ExpirationSeconds) * time.Second
}
