package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost:8440", cfg.MLLP.Address)
	assert.Equal(t, 10*time.Second, cfg.MLLP.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.MLLP.BackoffFloor)
	assert.Equal(t, 5*time.Second, cfg.MLLP.BackoffCeiling)
	assert.Equal(t, 1024, cfg.MLLP.BufferSize)

	assert.Equal(t, "localhost:8441", cfg.Pager.Address)
	assert.Equal(t, 1*time.Second, cfg.Pager.Timeout)
	assert.Equal(t, 2, cfg.Pager.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Pager.RetryDelay)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "hospital_aki", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	// Redis 默认禁用
	assert.Equal(t, "", cfg.Redis.Addr)

	assert.Equal(t, ":8000", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("MLLP_ADDRESS", "hospital:9440")
	os.Setenv("PAGER_ADDRESS", "pager:9441")
	os.Setenv("PAGER_TIMEOUT", "2s")
	os.Setenv("MLLP_BACKOFF_CEILING", "10s")
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "15432")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("HISTORY_PATH", "/data/history.csv")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hospital:9440", cfg.MLLP.Address)
	assert.Equal(t, "pager:9441", cfg.Pager.Address)
	assert.Equal(t, 2*time.Second, cfg.Pager.Timeout)
	assert.Equal(t, 10*time.Second, cfg.MLLP.BackoffCeiling)
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 15432, cfg.Database.Port)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "/data/history.csv", cfg.HistoryPath)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db-host",
		Port:     5433,
		User:     "aki",
		Password: "secret",
		Database: "hospital_aki",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Equal(t, "host=db-host port=5433 user=aki password=secret dbname=hospital_aki sslmode=disable", dsn)
}
