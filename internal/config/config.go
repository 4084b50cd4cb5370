package config

import (
	"os"
	"strings"
	"time"

	"ctchen222/tictactoe-engine/internal/bot"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyAddr       = errors.New("http address is empty")
	ErrNegativeDelay   = errors.New("think delay must not be negative")
	ErrEmptyJWTSecret  = errors.New("jwt secret is empty")
	ErrEmptySQLitePath = errors.New("sqlite path is empty")
)

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GameConfig struct {
	ThinkDelay        time.Duration  `yaml:"think_delay"`
	DefaultDifficulty bot.Difficulty `yaml:"default_difficulty"`
}

type RedisConfig struct {
	// Addr is a redis:// URL. Empty disables event publishing.
	Addr string `yaml:"addr"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	CollectorAddr string `yaml:"collector_addr"`
	ServiceName   string `yaml:"service_name"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Game      GameConfig      `yaml:"game"`
	Redis     RedisConfig     `yaml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Game: GameConfig{
			ThinkDelay:        700 * time.Millisecond,
			DefaultDifficulty: bot.Easy,
		},
		SQLite: SQLiteConfig{Path: "./tictactoe.db"},
		// No default JWT secret: it must come from the file or JWT_SECRET.
		Auth: AuthConfig{
			TokenTTL: 72 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			CollectorAddr: "localhost:4317",
			ServiceName:   "tictactoe-engine",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at cfgPath on top of the defaults and then applies
// environment overrides. An empty path or a missing file yields the defaults.
func Load(cfgPath string) (Config, error) {
	cfg := Default()
	if cfgPath != "" {
		if err := decodeFile(cfgPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.WithMessage(err, "validate config")
	}
	return cfg, nil
}

func decodeFile(cfgPath string, cfg *Config) error {
	file, err := os.Open(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer func() {
		_ = file.Close()
	}()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return errors.Wrapf(err, "decode config file %s", cfgPath)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REDIS_CONNSTRING"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("OTEL_COLLECTOR_ADDR"); v != "" {
		cfg.Telemetry.CollectorAddr = v
		cfg.Telemetry.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// Validate checks the values the server cannot start without.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrEmptyAddr
	}
	if c.Game.ThinkDelay < 0 {
		return ErrNegativeDelay
	}
	if !c.Game.DefaultDifficulty.Valid() {
		return errors.Wrapf(bot.ErrUnknownDifficulty, "default difficulty %q", c.Game.DefaultDifficulty)
	}
	if c.SQLite.Path == "" {
		return ErrEmptySQLitePath
	}
	if c.Auth.JWTSecret == "" {
		return ErrEmptyJWTSecret
	}
	return nil
}
