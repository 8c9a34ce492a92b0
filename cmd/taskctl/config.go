package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Backend is one of memory, sqlite, mysql or redis.
	Backend string `mapstructure:"backend"`

	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Roles   RolesConfig   `mapstructure:"roles"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`

	// BusyTimeout is how long a command waits for another process holding the database lock.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

type MySQLConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Addrs     []string `mapstructure:"addrs"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	DB        int      `mapstructure:"db"`
	KeyPrefix string   `mapstructure:"key_prefix"`
}

// RolesConfig controls the cache in front of the backend's role memberships.
type RolesConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	// Exporter is one of none, stdout or otlp.
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
	URLPath  string `mapstructure:"url_path"`
	Insecure bool   `mapstructure:"insecure"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

const envPrefix = "TASKCTL"

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend", "sqlite")
	v.SetDefault("sqlite.path", "tasks.sqlite")
	v.SetDefault("sqlite.busy_timeout", 10*time.Second)
	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "root")
	v.SetDefault("mysql.database", "tasks")
	v.SetDefault("mysql.connect_timeout", 30*time.Second)
	v.SetDefault("redis.addrs", []string{"localhost:6379"})
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "")
	v.SetDefault("roles.cache_size", 1024)
	v.SetDefault("roles.cache_ttl", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.url_path", "/v1/traces")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("serve.addr", ":8080")

	return v
}

// loadConfig reads the config file, if any, and resolves the configuration. Without an explicit
// file, taskctl.yaml is looked up in the working directory.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("taskctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case "memory", "sqlite", "mysql", "redis":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown trace exporter %q", c.Tracing.Exporter)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if _, err := c.Log.level(); err != nil {
		return err
	}

	if c.Roles.CacheSize <= 0 {
		return fmt.Errorf("roles cache size must be positive, got %d", c.Roles.CacheSize)
	}

	return nil
}

func (c LogConfig) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	return l, nil
}
