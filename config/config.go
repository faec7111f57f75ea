package config

import (
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. SEGSERVE_POOL_WORKERS
const EnvPrefix = "SEGSERVE"

// Config holds all application configuration.
type Config struct {
	Env    string       `mapstructure:"env"`
	Server ServerConfig `mapstructure:"server"`
	Pool   PoolConfig   `mapstructure:"pool"`
	Log    LogConfig    `mapstructure:"log"`
	Stats  StatsConfig  `mapstructure:"stats"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MaxConns     int           `mapstructure:"max_conns"` // 0 means unlimited
	ReusePort    bool          `mapstructure:"reuse_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type PoolConfig struct {
	Workers int `mapstructure:"workers"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"` // debug/info/warn/error
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Dev        bool   `mapstructure:"dev"`
}

type StatsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	Format        string        `mapstructure:"format"` // json/text
	Metrics       bool          `mapstructure:"metrics"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

var defaults = map[string]any{
	"env":                  "development",
	"server.host":          "127.0.0.1",
	"server.port":          3000,
	"server.max_conns":     0,
	"server.reuse_port":    false,
	"server.read_timeout":  10 * time.Second,
	"server.write_timeout": 10 * time.Second,
	"pool.workers":         runtime.NumCPU(),
	"log.level":            "info",
	"log.file":             "",
	"log.max_size":         100,
	"log.max_backups":      3,
	"log.max_age":          7,
	"log.compress":         false,
	"log.dev":              false,
	"stats.enabled":        false,
	"stats.path":           "/_stats",
	"stats.format":         "json",
	"stats.metrics":        true,
	"stats.slow_threshold": 100 * time.Millisecond,
}

// Default returns the built-in configuration. Unlike Load it ignores the
// environment and command line.
func Default() *Config {
	cfg := &Config{}
	if err := newViper().Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load builds the configuration from defaults, an optional config file,
// SEGSERVE_* environment variables and command-line args, in increasing
// order of precedence. It is read once; there is no reload.
func Load(args []string) (*Config, error) {
	v := newViper()

	fs := pflag.NewFlagSet("segserve", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML/JSON/TOML config file")
	fs.String("host", "127.0.0.1", "bind host")
	fs.Int("port", 3000, "bind port")
	fs.Int("workers", runtime.NumCPU(), "number of pool workers")
	fs.Int("max-conns", 0, "maximum concurrent connections (0 = unlimited)")
	fs.String("env", "development", "environment (development/production)")
	fs.String("log-level", "info", "log level (debug/info/warn/error)")
	fs.Bool("stats", false, "serve pool statistics on the stats path")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	bindings := map[string]string{
		"server.host":      "host",
		"server.port":      "port",
		"pool.workers":     "workers",
		"server.max_conns": "max-conns",
		"env":              "env",
		"log.level":        "log-level",
		"stats.enabled":    "stats",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	if c.Pool.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pool.workers must be positive, got %d", c.Pool.Workers))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("server.max_conns must not be negative, got %d", c.Server.MaxConns))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.Stats.Enabled && !strings.HasPrefix(c.Stats.Path, "/") {
		errs = append(errs, fmt.Errorf("stats.path must begin with '/', got %q", c.Stats.Path))
	}
	if c.Stats.Format != "json" && c.Stats.Format != "text" {
		errs = append(errs, fmt.Errorf("stats.format must be json or text, got %q", c.Stats.Format))
	}
	if c.Stats.SlowThreshold < 0 {
		errs = append(errs, errors.New("stats.slow_threshold must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the host:port bind address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
