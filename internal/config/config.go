package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	LogLevel        string
	HTTPAddr        string
	StorageBackend  string
	PostgresDSN     string
	LogsFile        string
	FriendshipsFile string
	ProfilesFile    string
	AuthMode        string
	AuthToken       string
	JWTSecret       string
	AuthURL         string
	AuthAPIKey      string
	RedisAddr       string
	RequestTimeout  time.Duration
	UndoWindow      time.Duration
	SessionIdleTTL  time.Duration
	AllowedOrigins  []string

	TracingEnabled   bool
	OTLPEndpoint     string
	TraceSampleRatio float64
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads .env (when present) and the environment once per process.
func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		c, err := FromEnv()
		if err != nil {
			panic("Invalid config: " + err.Error())
		}
		cfg = c
	})
	return cfg
}

// FromEnv builds and validates a Config without caching it.
func FromEnv() (*Config, error) {
	c := &Config{
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8088"),
		StorageBackend:  getEnv("STORAGE_BACKEND", "file"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		LogsFile:        getEnv("LOGS_FILE", "data/poop_logs.json"),
		FriendshipsFile: getEnv("FRIENDSHIPS_FILE", "data/friendships.json"),
		ProfilesFile:    getEnv("PROFILES_FILE", "data/profiles.json"),
		AuthMode:        getEnv("AUTH_MODE", "local"),
		AuthToken:       getEnv("AUTH_TOKEN", "MOCK-TOKEN"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AuthURL:         getEnv("AUTH_URL", ""),
		AuthAPIKey:      getEnv("AUTH_API_KEY", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 10*time.Second),
		UndoWindow:      getDuration("UNDO_WINDOW", 5*time.Second),
		SessionIdleTTL:  getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		TracingEnabled:   getBool("OTEL_ENABLED", false),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio: getFloat("OTEL_SAMPLER_RATIO", 0.1),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	switch c.StorageBackend {
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	case "file":
		if c.LogsFile == "" || c.FriendshipsFile == "" || c.ProfilesFile == "" {
			return errors.New("File storage requires LOGS_FILE, FRIENDSHIPS_FILE and PROFILES_FILE to be set")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: file, postgres")
	}
	switch c.AuthMode {
	case "local":
		if c.Env == "production" {
			return errors.New("AUTH_MODE=local is not allowed in production")
		}
		if c.AuthToken == "" {
			return errors.New("AUTH_TOKEN is required when AUTH_MODE=local")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case "remote":
		if c.AuthURL == "" {
			return errors.New("AUTH_URL is required when AUTH_MODE=remote")
		}
	default:
		return errors.New("AUTH_MODE must be one of: local, jwt, remote")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.UndoWindow <= 0 {
		return errors.New("UNDO_WINDOW must be positive")
	}
	if c.SessionIdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL must be positive")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return errors.New("OTEL_SAMPLER_RATIO must be between 0 and 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
