package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yazinsai/cal-ai/internal/app"
)

const envPrefix = "CALAI"

type Config struct {
	DBPath     string
	Timezone   string
	UndoWindow time.Duration
	Storage    StorageConfig
	Estimator  EstimatorConfig
	Serve      ServeConfig
	Log        LogConfig
}

type StorageConfig struct {
	Driver      string
	PostgresURL string
}

type EstimatorConfig struct {
	BaseURL      string
	TextModel    string
	ImageModel   string
	Timeout      time.Duration
	APIKeyEnv    string
	RoundTargets bool
}

type ServeConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

// Options carries explicit overrides from command-line flags; empty fields
// leave the layered value untouched.
type Options struct {
	ConfigFile string
	DBPath     string
	EnvFile    string
}

func setDefaults(v *viper.Viper) error {
	dbPath, err := app.DefaultDBPath()
	if err != nil {
		return err
	}
	v.SetDefault("db_path", dbPath)
	v.SetDefault("timezone", "")
	v.SetDefault("undo_window", "5s")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("estimator.base_url", "https://api.openai.com/v1")
	v.SetDefault("estimator.text_model", "gpt-4o-mini")
	v.SetDefault("estimator.image_model", "gpt-4o")
	v.SetDefault("estimator.timeout", "30s")
	v.SetDefault("estimator.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("estimator.round_targets", true)
	v.SetDefault("serve.addr", "127.0.0.1:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	return nil
}

// Load layers defaults, the YAML config file, a .env file and CALAI_*
// environment variables, then applies opts.
func Load(opts Options) (Config, *viper.Viper, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	if err := setDefaults(v); err != nil {
		return Config{}, nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFile
	if path == "" {
		var err error
		path, err = app.DefaultConfigPath()
		if err != nil {
			return Config{}, nil, err
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if opts.DBPath != "" {
		v.Set("db_path", opts.DBPath)
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (Config, error) {
	cfg := Config{
		DBPath:     v.GetString("db_path"),
		Timezone:   strings.TrimSpace(v.GetString("timezone")),
		UndoWindow: v.GetDuration("undo_window"),
		Storage: StorageConfig{
			Driver:      strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
			PostgresURL: v.GetString("storage.postgres_url"),
		},
		Estimator: EstimatorConfig{
			BaseURL:      v.GetString("estimator.base_url"),
			TextModel:    v.GetString("estimator.text_model"),
			ImageModel:   v.GetString("estimator.image_model"),
			Timeout:      v.GetDuration("estimator.timeout"),
			APIKeyEnv:    v.GetString("estimator.api_key_env"),
			RoundTargets: v.GetBool("estimator.round_targets"),
		},
		Serve: ServeConfig{Addr: v.GetString("serve.addr")},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}
	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.PostgresURL) == "" {
			return Config{}, fmt.Errorf("storage.postgres_url is required for the postgres driver")
		}
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if cfg.UndoWindow < 0 {
		return Config{}, fmt.Errorf("undo_window must be >= 0")
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves Timezone; an empty value means the process zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Write persists the settings held by v to path as YAML.
func Write(v *viper.Viper, path string) error {
	if err := app.EnsureDBDir(path); err != nil {
		return err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(c LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
