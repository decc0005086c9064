// Package config loads applydesk settings from defaults, a config file,
// the environment (including a .env file) and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved configuration
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Store      StoreConfig      `mapstructure:"store"`
	History    HistoryConfig    `mapstructure:"history"`
	Preview    PreviewConfig    `mapstructure:"preview"`
	Generation GenerationConfig `mapstructure:"generation"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type HistoryConfig struct {
	MaxSnapshots int           `mapstructure:"max_snapshots"`
	QuietPeriod  time.Duration `mapstructure:"quiet_period"`
	MinDistance  int           `mapstructure:"min_distance"`
}

type PreviewConfig struct {
	QuietPeriod time.Duration `mapstructure:"quiet_period"`
}

type GenerationConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type TracingConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// EnvPrefix prefixes every environment variable, e.g. APPLYDESK_BACKEND_TOKEN
const EnvPrefix = "APPLYDESK"

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		History: HistoryConfig{
			MaxSnapshots: 20,
			QuietPeriod:  5 * time.Second,
			MinDistance:  10,
		},
		Preview: PreviewConfig{
			QuietPeriod: 1500 * time.Millisecond,
		},
		Generation: GenerationConfig{
			CacheTTL: 24 * time.Hour,
		},
		Server: ServerConfig{
			Port:        8085,
			MetricsPort: 9095,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "applydesk", "slots.log")
}

// Options controls where Load looks
type Options struct {
	// File is an explicit config file; empty searches the working and user
	// config directories for applydesk.yaml or applydesk.json
	File string

	// EnvFile is loaded into the environment first when it exists
	EnvFile string

	// Flags are bound over file and environment values. Flag names use
	// dashes for dots and underscores, e.g. backend-base-url.
	Flags *pflag.FlagSet
}

// Load resolves the configuration
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("applydesk")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "applydesk"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Keys lists every configuration key
var Keys = []string{
	"backend.base_url",
	"backend.token",
	"backend.timeout",
	"store.path",
	"history.max_snapshots",
	"history.quiet_period",
	"history.min_distance",
	"preview.quiet_period",
	"generation.cache_ttl",
	"server.port",
	"server.metrics_port",
	"log.level",
	"log.pretty",
	"tracing.jaeger_endpoint",
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.token", d.Backend.Token)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("history.max_snapshots", d.History.MaxSnapshots)
	v.SetDefault("history.quiet_period", d.History.QuietPeriod)
	v.SetDefault("history.min_distance", d.History.MinDistance)
	v.SetDefault("preview.quiet_period", d.Preview.QuietPeriod)
	v.SetDefault("generation.cache_ttl", d.Generation.CacheTTL)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_port", d.Server.MetricsPort)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("tracing.jaeger_endpoint", d.Tracing.JaegerEndpoint)
}

// FlagName converts a config key to its flag name
func FlagName(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

// bindFlags binds every flag in fs named after a config key
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range Keys {
		f := fs.Lookup(FlagName(key))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// Validate rejects settings the rest of the program cannot work with
func (c Config) Validate() error {
	var errs []error
	if c.History.MaxSnapshots < 1 {
		errs = append(errs, fmt.Errorf("history.max_snapshots must be at least 1, got %d", c.History.MaxSnapshots))
	}
	if c.History.QuietPeriod <= 0 {
		errs = append(errs, fmt.Errorf("history.quiet_period must be positive"))
	}
	if c.History.MinDistance < 1 {
		errs = append(errs, fmt.Errorf("history.min_distance must be at least 1"))
	}
	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}
