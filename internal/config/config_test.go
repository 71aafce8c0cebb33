package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Load_DefaultValues(t *testing.T) {
	clearEnv()
	os.Setenv("PLATFORM_JWT_SECRET", "a-secret-at-least-32-characters-long")
	defer clearEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Server.CORS)

	assert.Equal(t, 20, cfg.Database.MaxConnections)
	assert.Equal(t, 5, cfg.Database.MinConnections)

	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, int64(100), cfg.Ledger.WelcomePoints)
	assert.Equal(t, 80, cfg.Ledger.RevenueSplitPct)
	assert.Equal(t, 5, cfg.Ledger.CASMaxRetries)

	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 3, cfg.Worker.HeartbeatStaleMulti)
}

func TestConfig_Load_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("PLATFORM_PORT", "9090")
	os.Setenv("PLATFORM_HOST", "127.0.0.1")
	os.Setenv("PLATFORM_JWT_SECRET", "a-secret-at-least-32-characters-long")
	os.Setenv("PLATFORM_REVENUE_SPLIT_PCT", "70")
	os.Setenv("PLATFORM_WELCOME_POINTS", "250")
	defer clearEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 70, cfg.Ledger.RevenueSplitPct)
	assert.Equal(t, int64(250), cfg.Ledger.WelcomePoints)
}

func TestConfig_Validate_Success(t *testing.T) {
	cfg := validBaseConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	tests := []int{0, -1, 65536, 100000}
	for _, port := range tests {
		cfg := validBaseConfig()
		cfg.Server.Port = port
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid port")
	}
}

func TestConfig_Validate_EmptyDatabaseURL(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Database.URL = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestConfig_Validate_MinExceedsMax(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Database.MinConnections = 10
	cfg.Database.MaxConnections = 5
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min connections cannot exceed max connections")
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestConfig_Validate_InvalidLogFormat(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestConfig_Validate_JWTSecretRequired(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Auth.JWTSecret = ""
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestConfig_Validate_JWTSecretTooShort(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Auth.JWTSecret = "too-short"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestConfig_Validate_RevenueSplitOutOfRange(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Ledger.RevenueSplitPct = 150
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "revenue split")
}

func TestGetEnvAsInt_InvalidFallsBackToDefault(t *testing.T) {
	os.Setenv("TEST_INT", "not_a_number")
	defer os.Unsetenv("TEST_INT")
	assert.Equal(t, 10, getEnvAsInt("TEST_INT", 10))
}

func TestGetEnvAsBool_True(t *testing.T) {
	os.Setenv("TEST_BOOL", "true")
	defer os.Unsetenv("TEST_BOOL")
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
}

func TestGetEnvAsDuration_Valid(t *testing.T) {
	os.Setenv("TEST_DURATION", "30s")
	defer os.Unsetenv("TEST_DURATION")
	assert.Equal(t, 30*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
}

func TestGetEnvAsSlice_CommaSeparated(t *testing.T) {
	os.Setenv("TEST_SLICE", "a,b, c")
	defer os.Unsetenv("TEST_SLICE")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsSlice("TEST_SLICE", nil))
}

func validBaseConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{URL: "postgres://localhost:5432/test", MaxConnections: 10, MinConnections: 5},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Auth:     AuthConfig{JWTSecret: "a-secret-at-least-32-characters-long"},
		Ledger:   LedgerConfig{RevenueSplitPct: 80},
	}
}

func clearEnv() {
	envVars := []string{
		"PLATFORM_PORT", "PLATFORM_HOST", "PLATFORM_JWT_SECRET", "PLATFORM_REVENUE_SPLIT_PCT",
		"PLATFORM_WELCOME_POINTS", "PLATFORM_DATABASE_URL", "PLATFORM_REDIS_URL",
	}
	for _, key := range envVars {
		os.Unsetenv(key)
	}
}
