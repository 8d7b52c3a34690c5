package config

import (
	"fmt"
	"os"
	"time"
)

// Config AKI检测服务配置
type Config struct {
	// MLLP 上游连接配置（医院集成引擎回放端）
	MLLP struct {
		Address        string        // 上游地址，如 "localhost:8440"
		ReadTimeout    time.Duration // 单次读超时
		BackoffFloor   time.Duration // 重连退避下限
		BackoffCeiling time.Duration // 重连退避上限
		BufferSize     int           // 接收缓冲区大小
	}

	// Pager 下游呼叫配置
	Pager struct {
		Address    string        // 下游地址，如 "localhost:8441"
		Timeout    time.Duration // 单次请求超时
		Retries    int           // 瞬时失败后的最大重试次数
		RetryDelay time.Duration // 重试间隔
	}

	Database DatabaseConfig
	Redis    RedisConfig

	// 历史血检数据预加载
	HistoryPath string // CSV 文件路径，为空则跳过预加载

	// Prometheus 指标监听地址，为空则不启动
	MetricsAddr string

	Log struct {
		Level  string
		Format string
	}
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig Redis配置（可选，REDIS_ADDR 为空时禁用报警缓存）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Load 从环境变量加载配置（默认值与参考部署一致）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.MLLP.Address = getEnv("MLLP_ADDRESS", "localhost:8440")
	cfg.MLLP.ReadTimeout = getDuration("MLLP_READ_TIMEOUT", 10*time.Second)
	cfg.MLLP.BackoffFloor = getDuration("MLLP_BACKOFF_FLOOR", 500*time.Millisecond)
	cfg.MLLP.BackoffCeiling = getDuration("MLLP_BACKOFF_CEILING", 5*time.Second)
	cfg.MLLP.BufferSize = 1024

	cfg.Pager.Address = getEnv("PAGER_ADDRESS", "localhost:8441")
	cfg.Pager.Timeout = getDuration("PAGER_TIMEOUT", 1*time.Second)
	cfg.Pager.Retries = 2
	cfg.Pager.RetryDelay = getDuration("PAGER_RETRY_DELAY", 500*time.Millisecond)

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "hospital_aki")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.HistoryPath = getEnv("HISTORY_PATH", "")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":8000")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
