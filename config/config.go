package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres, sqlite
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

// RedisConfig Redis 配置（租约 + 缓存）
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	LeasePrefix string        `mapstructure:"lease_prefix"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

// SentryConfig 错误上报配置；DSN 为空时不启用
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// FanoutConfig 扇出流水线的可调参数
type FanoutConfig struct {
	InboxPageSize    int           `mapstructure:"inbox_page_size"`
	IMPerTask        int           `mapstructure:"im_per_task"`
	SMSPerTask       int           `mapstructure:"sms_per_task"`
	EmailPerTask     int           `mapstructure:"email_per_task"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	SampleRatio      float64       `mapstructure:"sample_ratio"`
	LockRatio        float64       `mapstructure:"lock_ratio"`
	WorkCount        int           `mapstructure:"work_count"`
	InvocationBudget time.Duration `mapstructure:"invocation_budget"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	Workers          int           `mapstructure:"workers"`
	SendRate         float64       `mapstructure:"send_rate"` // 每个通道每秒发送批次数，0 表示不限
	SendBurst        int           `mapstructure:"send_burst"`
}

// DefaultFanout 返回默认扇出参数
func DefaultFanout() FanoutConfig {
	return FanoutConfig{
		InboxPageSize:    100,
		IMPerTask:        100,
		SMSPerTask:       100,
		EmailPerTask:     100,
		LeaseTTL:         10 * time.Second,
		SampleRatio:      10,
		LockRatio:        3,
		WorkCount:        1,
		InvocationBudget: 25 * time.Second,
		PollInterval:     time.Second,
		Workers:          4,
		SendRate:         0,
		SendBurst:        1,
	}
}

// Load 读取配置文件与环境变量（前缀 STREAMFAN_）
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("STREAMFAN_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("STREAMFAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验关键参数
func (c *Config) Validate() error {
	f := c.Fanout
	switch {
	case f.InboxPageSize <= 0:
		return errors.New("fanout.inbox_page_size must be positive")
	case f.IMPerTask <= 0 || f.SMSPerTask <= 0 || f.EmailPerTask <= 0:
		return errors.New("fanout notification limits must be positive")
	case f.LeaseTTL <= 0:
		return errors.New("fanout.lease_ttl must be positive")
	case f.SampleRatio < 1 || f.LockRatio < 1:
		return errors.New("fanout sample/lock ratios must be >= 1")
	case f.WorkCount <= 0:
		return errors.New("fanout.work_count must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "streamfan.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.lease_prefix", "lease:")
	v.SetDefault("redis.cache_ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.service_name", "streamfan")
	v.SetDefault("tracing.sample_ratio", 0.1)

	d := DefaultFanout()
	v.SetDefault("fanout.inbox_page_size", d.InboxPageSize)
	v.SetDefault("fanout.im_per_task", d.IMPerTask)
	v.SetDefault("fanout.sms_per_task", d.SMSPerTask)
	v.SetDefault("fanout.email_per_task", d.EmailPerTask)
	v.SetDefault("fanout.lease_ttl", d.LeaseTTL)
	v.SetDefault("fanout.sample_ratio", d.SampleRatio)
	v.SetDefault("fanout.lock_ratio", d.LockRatio)
	v.SetDefault("fanout.work_count", d.WorkCount)
	v.SetDefault("fanout.invocation_budget", d.InvocationBudget)
	v.SetDefault("fanout.poll_interval", d.PollInterval)
	v.SetDefault("fanout.workers", d.Workers)
	v.SetDefault("fanout.send_rate", d.SendRate)
	v.SetDefault("fanout.send_burst", d.SendBurst)
}
