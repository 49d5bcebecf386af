package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	liststr "onboard/pkg/platform/strings"
)

// Config is the whole service configuration.
type Config struct {
	Server  Server
	Backend Backend
	Session Session
	Redis   RedisConfig
	Audit   Audit
	Log     Log
	Rules   Rules
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Environment   string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Backend is the onboarding backend the wizard saves drafts to.
type Backend struct {
	URL              string
	Token            string
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

type Session struct {
	// TTL expires idle session snapshots. Zero keeps them until closed.
	TTL           time.Duration
	FinalizeDelay time.Duration
}

// RedisConfig is optional; an empty URL keeps snapshots in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit selects the audit sink. No brokers means the in-memory store.
type Audit struct {
	Brokers     []string
	Topic       string
	AsyncBuffer int
}

type Log struct {
	Level  string
	Format string
}

// Rules are the wizard rules that operators may override from a YAML file.
type Rules struct {
	NoDirectorTypes []string
	FinalizeDelay   time.Duration
}

// FromEnv builds the config from environment variables so main stays lean.
// The rules file, when set, is read last and overrides the finalize delay.
func FromEnv() (Config, error) {
	env := getEnv("ENVIRONMENT", "development")
	cfg := Config{
		Server: Server{
			Addr:          getEnv("ONBOARDING_ADDR", ":8080"),
			Environment:   env,
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			JWTIssuer:     os.Getenv("JWT_ISSUER"),
			JWTAudience:   os.Getenv("JWT_AUDIENCE"),
		},
		Backend: Backend{
			URL:              os.Getenv("ONBOARDING_BACKEND_URL"),
			Token:            os.Getenv("ONBOARDING_BACKEND_TOKEN"),
			Timeout:          getDuration("ONBOARDING_BACKEND_TIMEOUT", 15*time.Second),
			FailureThreshold: getInt("ONBOARDING_BACKEND_FAILURE_THRESHOLD", 5),
			Cooldown:         getDuration("ONBOARDING_BACKEND_COOLDOWN", 10*time.Second),
		},
		Session: Session{
			TTL:           getDuration("ONBOARDING_SESSION_TTL", 24*time.Hour),
			FinalizeDelay: getDuration("ONBOARDING_FINALIZE_DELAY", 1500*time.Millisecond),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: Audit{
			Brokers:     liststr.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:       getEnv("AUDIT_TOPIC", "onboarding.audit"),
			AsyncBuffer: getInt("AUDIT_ASYNC_BUFFER", 256),
		},
		Log: Log{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", defaultLogFormat(env)),
		},
	}

	if cfg.Server.JWTSigningKey == "" {
		if env == "production" {
			return Config{}, fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		// Use a default for development - must be overridden in production
		cfg.Server.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if cfg.Backend.URL == "" {
		return Config{}, fmt.Errorf("ONBOARDING_BACKEND_URL is required")
	}

	if path := os.Getenv("ONBOARDING_RULES_FILE"); path != "" {
		rules, err := LoadRules(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Rules = rules
		if rules.FinalizeDelay > 0 {
			cfg.Session.FinalizeDelay = rules.FinalizeDelay
		}
	}
	return cfg, nil
}

// LoadRules reads the YAML rules file.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules decodes a rules document. Unknown keys are rejected.
func ParseRules(raw []byte) (Rules, error) {
	var doc struct {
		NoDirectorTypes []string `yaml:"no_director_business_types"`
		FinalizeDelay   string   `yaml:"finalize_delay"`
	}
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	rules := Rules{NoDirectorTypes: liststr.Dedupe(doc.NoDirectorTypes, true)}
	if doc.FinalizeDelay != "" {
		d, err := time.ParseDuration(doc.FinalizeDelay)
		if err != nil || d < 0 {
			return Rules{}, fmt.Errorf("parse rules file: invalid finalize_delay %q", doc.FinalizeDelay)
		}
		rules.FinalizeDelay = d
	}
	return rules, nil
}

func defaultLogFormat(env string) string {
	if env == "production" {
		return "json"
	}
	return "text"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}
