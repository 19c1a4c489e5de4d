package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadServer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"FAKEHMC_ADDR", "FAKEHMC_STORE", "FAKEHMC_SESSION_TTL", "FAKEHMC_JOB_RETENTION", "LOG_LEVEL"} {
			t.Setenv(k, "")
		}
		cfg := LoadServer()
		assert.Equal(t, ":6794", cfg.Addr)
		assert.Equal(t, "memory", cfg.Store)
		assert.Equal(t, time.Hour, cfg.SessionTTL)
		assert.Equal(t, 10*time.Minute, cfg.JobRetention)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("FAKEHMC_ADDR", ":9000")
		t.Setenv("FAKEHMC_STORE", "MySQL")
		t.Setenv("FAKEHMC_SESSION_TTL", "5m")
		t.Setenv("DB_LOCK_TIMEOUT", "3")
		t.Setenv("LOG_LEVEL", " DEBUG ")
		cfg := LoadServer()
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, "mysql", cfg.Store)
		assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 3, cfg.DBLockTimeout)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("invalid durations fall back to defaults", func(t *testing.T) {
		t.Setenv("FAKEHMC_SESSION_TTL", "soon")
		t.Setenv("FAKEHMC_REAP_INTERVAL", "-1s")
		cfg := LoadServer()
		assert.Equal(t, time.Hour, cfg.SessionTTL)
		assert.Equal(t, time.Minute, cfg.ReapInterval)
	})
}

func TestServerDSN(t *testing.T) {
	cfg := Server{
		DBHost: "db", DBPort: "3306", DBName: "fakehmc", DBUser: "u", DBPassword: "p",
		DBCharset: "utf8mb4", DBCollation: "utf8mb4_unicode_ci",
		DBTimeout: "5s", DBReadTimeout: "5s", DBWriteTimeout: "5s",
	}
	dsn := cfg.DSN()
	assert.True(t, strings.HasPrefix(dsn, "u:p@tcp(db:3306)/fakehmc?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestEnvForks(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{name: "unset", value: "", expected: 5},
		{name: "valid", value: "12", expected: 12},
		{name: "not a number", value: "many", expected: 5},
		{name: "zero", value: "0", expected: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANSIBLE_FORKS", tt.value)
			assert.Equal(t, tt.expected, EnvForks(5))
		})
	}
}

func TestLoadClient(t *testing.T) {
	for _, k := range []string{"ZHMC_PORT", "ZHMC_JOB_POLL_INTERVAL", "ZHMC_JOB_TIMEOUT", "ANSIBLE_FORKS"} {
		t.Setenv(k, "")
	}
	t.Setenv("ZHMC_STATUS_TIMEOUT", "30s")
	cfg := LoadClient()
	assert.Equal(t, 6794, cfg.Port)
	assert.Equal(t, time.Second, cfg.JobPollInterval)
	assert.Equal(t, 15*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 30*time.Second, cfg.StatusTimeout)
	assert.Equal(t, 5, cfg.AnsibleForks)
}
