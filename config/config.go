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

// DefaultCity is assigned to landlords and reviews stored without a city.
const DefaultCity = "Pittsburgh"

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	S3        S3Config
	Tokens    TokenConfig
	SMTP      SMTPConfig
	Turnstile TurnstileConfig
	Logging   LoggingConfig
	Session   SessionConfig
	Reviews   ReviewConfig
}

type AppConfig struct {
	Env             string
	Port            string
	AppURL          string
	APIURL          string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	ConnectionString string
}

type RedisConfig struct {
	URL string
}

type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	SignedURLTTL time.Duration
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	OTPTTL        time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TurnstileConfig struct {
	Secret string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// SessionConfig holds the timings of the admin-flag cache and the recovery
// handshake.
type SessionConfig struct {
	AdminCacheTTL     time.Duration
	RefreshDelay      time.Duration
	SettleDelay       time.Duration
	ReadyAttempts     int
	ReadyInterval     time.Duration
	RecoveryTicketTTL time.Duration
}

type ReviewConfig struct {
	DefaultCity    string
	StudentDomains []string
}

// Load reads configuration from the environment. A .env file is loaded first
// unless running on Render.
func Load() (*Config, error) {
	if os.Getenv("RENDER") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: Could not load .env file (this is normal in production)")
		}
	}

	p := &parser{}
	cfg := &Config{
		App: AppConfig{
			Env:             p.str("APP_ENV", "development"),
			Port:            p.str("PORT", "4000"),
			AppURL:          strings.TrimRight(p.str("APP_URL", "http://localhost:5173"), "/"),
			APIURL:          strings.TrimRight(p.str("API_URL", "http://localhost:4000"), "/"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			ConnectionString: p.str("DB_CONNECTION_STRING", ""),
		},
		Redis: RedisConfig{
			URL: p.str("REDIS_URL", "localhost:6379"),
		},
		S3: S3Config{
			Endpoint:     p.str("S3_ENDPOINT", ""),
			Region:       p.str("S3_REGION", "us-east-1"),
			Bucket:       p.str("S3_BUCKET", "verification-files"),
			AccessKey:    p.str("S3_ACCESS_KEY", ""),
			SecretKey:    p.str("S3_SECRET_KEY", ""),
			UseSSL:       p.boolean("S3_USE_SSL", true),
			SignedURLTTL: p.duration("SIGNED_URL_TTL", time.Hour),
		},
		Tokens: TokenConfig{
			AccessSecret:  p.str("ACCESS_TOKEN_SECRET", ""),
			RefreshSecret: p.str("REFRESH_TOKEN_SECRET", ""),
			AccessTTL:     p.duration("ACCESS_TOKEN_TTL", time.Hour),
			RefreshTTL:    p.duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			OTPTTL:        p.duration("OTP_TTL", time.Hour),
		},
		SMTP: SMTPConfig{
			Host:     p.str("SMTP_HOST", ""),
			Port:     p.integer("SMTP_PORT", 587),
			User:     p.str("SMTP_USER", ""),
			Password: p.str("SMTP_PASSWORD", ""),
			From:     p.str("SMTP_FROM", "no-reply@ratemylandlord.local"),
		},
		Turnstile: TurnstileConfig{
			Secret: p.str("TURNSTILE_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  p.str("LOG_LEVEL", "info"),
			Format: p.str("LOG_FORMAT", "json"),
		},
		Session: SessionConfig{
			AdminCacheTTL:     p.duration("ADMIN_CACHE_TTL", 5*time.Minute),
			RefreshDelay:      p.duration("SESSION_REFRESH_DELAY", 500*time.Millisecond),
			SettleDelay:       p.duration("HANDSHAKE_SETTLE_DELAY", 500*time.Millisecond),
			ReadyAttempts:     p.integer("SESSION_READY_ATTEMPTS", 5),
			ReadyInterval:     p.duration("SESSION_READY_INTERVAL", 500*time.Millisecond),
			RecoveryTicketTTL: p.duration("RECOVERY_TICKET_TTL", 15*time.Minute),
		},
		Reviews: ReviewConfig{
			DefaultCity:    p.str("DEFAULT_CITY", DefaultCity),
			StudentDomains: p.list("STUDENT_DOMAINS", []string{"pitt.edu", "cmu.edu"}),
		},
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("DB_CONNECTION_STRING environment variable is required")
	}
	if c.Tokens.AccessSecret == "" || c.Tokens.RefreshSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.Session.ReadyAttempts < 1 {
		return fmt.Errorf("SESSION_READY_ATTEMPTS must be at least 1")
	}
	return nil
}

func (c *Config) Addr() string {
	return "0.0.0.0:" + c.App.Port
}

// parser collects the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) list(key string, def []string) []string {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(strings.ToLower(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value for %s: %w", key, err)
	}
}
