package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "STORAGE_BACKEND", "AUTH_MODE", "REQUEST_TIMEOUT", "UNDO_WINDOW", "SESSION_IDLE_TTL", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, "file", c.StorageBackend)
	assert.Equal(t, "local", c.AuthMode)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, 5*time.Second, c.UndoWindow)
	assert.Equal(t, 30*time.Minute, c.SessionIdleTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, c.AllowedOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/poop")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("UNDO_WINDOW", "8s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "0.5")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8*time.Second, c.UndoWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.True(t, c.TracingEnabled)
	assert.Equal(t, 0.5, c.TraceSampleRatio)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:             "development",
			StorageBackend:  "file",
			LogsFile:        "a",
			FriendshipsFile: "b",
			ProfilesFile:    "c",
			AuthMode:        "local",
			AuthToken:       "tok",
			RequestTimeout:  time.Second,
			UndoWindow:      time.Second,
			SessionIdleTTL:  time.Minute,
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"bad env":              func(c *Config) { c.Env = "qa" },
		"postgres without dsn": func(c *Config) { c.StorageBackend = "postgres" },
		"unknown backend":      func(c *Config) { c.StorageBackend = "mongo" },
		"missing file":         func(c *Config) { c.ProfilesFile = "" },
		"local in production":  func(c *Config) { c.Env = "production" },
		"jwt without secret":   func(c *Config) { c.AuthMode = "jwt" },
		"remote without url":   func(c *Config) { c.AuthMode = "remote" },
		"zero timeout":         func(c *Config) { c.RequestTimeout = 0 },
		"zero undo window":     func(c *Config) { c.UndoWindow = 0 },
		"sample ratio too big": func(c *Config) { c.TraceSampleRatio = 1.5 },
		"zero idle ttl":        func(c *Config) { c.SessionIdleTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
