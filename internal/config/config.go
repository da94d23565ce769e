// Package config loads studydeck's settings.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, STUDYDECK_* environment variables and command-line flags.
// Nested keys use "." in files and flags and "__" in the environment, so
// STUDYDECK_HTTP__ADDR sets http.addr.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/studydeck/internal/generate"
	"github.com/conorfennell/studydeck/internal/progress"
	"github.com/conorfennell/studydeck/internal/session"
	"github.com/conorfennell/studydeck/internal/srs"
	"github.com/conorfennell/studydeck/internal/validate"
)

const envPrefix = "STUDYDECK_"

type HTTP struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DB struct {
	Path string `koanf:"path" validate:"required"`
}

type Data struct {
	Dir string `koanf:"dir" validate:"required"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Config is the complete application configuration.
type Config struct {
	HTTP     HTTP              `koanf:"http"`
	DB       DB                `koanf:"db"`
	Data     Data              `koanf:"data"`
	Log      Log               `koanf:"log"`
	Session  session.Config    `koanf:"session"`
	Progress progress.Config   `koanf:"progress"`
	Generate generate.Config   `koanf:"generate"`
	AI       generate.AIConfig `koanf:"ai"`
	SRS      srs.Params        `koanf:"srs"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP:     HTTP{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		DB:       DB{Path: "studydeck.db"},
		Data:     Data{Dir: "data"},
		Log:      Log{Level: "info", Format: "text"},
		Session:  session.DefaultConfig(),
		Progress: progress.DefaultConfig(),
		Generate: generate.DefaultConfig(),
		AI:       generate.DefaultAIConfig(),
		SRS:      *srs.DefaultParams(),
	}
}

// RegisterFlags adds the flags Load understands to fs. Flag names match
// config keys.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML config file")
	fs.String("http.addr", d.HTTP.Addr, "HTTP listen address")
	fs.String("db.path", d.DB.Path, "path to the SQLite database file")
	fs.String("data.dir", d.Data.Dir, "directory for cloned deck repositories")
	fs.String("log.level", d.Log.Level, "log level: debug, info, warn or error")
	fs.String("log.format", d.Log.Format, "log format: text or json")
	fs.String("ai.model", d.AI.Model, "chat model used for card generation")
}

// Load builds the configuration from defaults, the file named by the
// --config flag, the environment and the flags that were set on fs.
func Load(fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", "."), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		// Unchanged flags only fill keys no earlier source set.
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
		k.Delete("config")
	}

	cfg := Default()
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"})
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LogLevel converts Log.Level to a slog level.
func (c Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
