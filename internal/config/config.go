// Package config loads runtime settings from .env, an optional YAML file,
// LUGHAT_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/example/lughat/internal/gamification"
	"github.com/example/lughat/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables; LUGHAT_DB_DSN maps to db.dsn
const EnvPrefix = "LUGHAT_"

type DBConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite3 sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type TelegramConfig struct {
	Token   string  `koanf:"token" validate:"required"`
	Admins  []int64 `koanf:"admins"`
	Batch   int     `koanf:"batch" validate:"gte=1,lte=10"`
	Timeout int     `koanf:"timeout" validate:"gte=1"`
	Debug   bool    `koanf:"debug"`
}

type XPConfig struct {
	Review    int `koanf:"review" validate:"gte=0"`
	NewItem   int `koanf:"newitem" validate:"gte=0"`
	Lesson    int `koanf:"lesson" validate:"gte=0"`
	Minute    int `koanf:"minute" validate:"gte=0"`
	LevelStep int `koanf:"levelstep" validate:"gte=1"`
}

// Config is the full application configuration
type Config struct {
	DB       DBConfig       `koanf:"db"`
	Telegram TelegramConfig `koanf:"telegram"`
	Metrics  struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`
	Log struct {
		Level string `koanf:"level" validate:"oneof=debug info warn error"`
	} `koanf:"log"`
	Reminders struct {
		Spec string `koanf:"spec" validate:"required"`
	} `koanf:"reminders"`
	Timezone string           `koanf:"timezone" validate:"required"`
	XP       XPConfig         `koanf:"xp"`
	Goal     models.DailyGoal `koanf:"goal"`
	Missions struct {
		PerDay int `koanf:"perday" validate:"gte=0"`
	} `koanf:"missions"`
	Weak struct {
		Threshold int `koanf:"threshold" validate:"gte=1,lte=100"`
		Limit     int `koanf:"limit" validate:"gte=1"`
	} `koanf:"weak"`
}

// flags declares every key with its default value
func flags(name string) *pflag.FlagSet {
	def := gamification.DefaultPolicy()

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("db.driver", "sqlite3", "database driver: sqlite3, sqlite or postgres")
	fs.String("db.dsn", "data/lughat.db", "database DSN")
	fs.String("telegram.token", "", "Telegram bot token")
	fs.StringSlice("telegram.admins", nil, "Telegram user IDs allowed to import missions")
	fs.Int("telegram.batch", 1, "cards shown per review batch")
	fs.Int("telegram.timeout", 60, "long-polling timeout in seconds")
	fs.Bool("telegram.debug", false, "log Telegram API traffic")
	fs.String("metrics.addr", ":9090", "Prometheus listen address, empty to disable")
	fs.String("log.level", "info", "log level: debug, info, warn or error")
	fs.String("reminders.spec", "0 * * * *", "cron spec of the reminder check")
	fs.String("timezone", "UTC", "timezone given to new profiles")
	fs.Int("xp.review", def.XP.Review, "XP per graded review")
	fs.Int("xp.newitem", def.XP.NewItem, "XP per newly saved item")
	fs.Int("xp.lesson", def.XP.Lesson, "XP per completed lesson")
	fs.Int("xp.minute", def.XP.Minute, "XP per study minute")
	fs.Int("xp.levelstep", def.LevelStep, "XP needed per level step")
	fs.Int("goal.reviews", def.Goal.Reviews, "daily goal: reviews")
	fs.Int("goal.lessons", def.Goal.Lessons, "daily goal: lessons")
	fs.Int("goal.newitems", def.Goal.NewItems, "daily goal: new items")
	fs.Int("goal.minutes", def.Goal.Minutes, "daily goal: minutes")
	fs.Int("missions.perday", def.MissionsPerDay, "missions assigned per day")
	fs.Int("weak.threshold", def.WeakThreshold, "strength below which a word is weak")
	fs.Int("weak.limit", def.WeakAreaLimit, "weak categories kept per user")
	return fs
}

// Load builds the configuration from args (without the program name)
func Load(args []string) (*Config, error) {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	fs := flags("lughat")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	k := koanf.New(".")
	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flags fill in defaults and override only when set explicitly
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Compatibility with the plain variable used by existing deployments
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps LUGHAT_TELEGRAM_ADMINS=1,2 to telegram.admins=[1 2]
func envKey(name, value string) (string, interface{}) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
	if key == "telegram.admins" {
		return key, strings.Split(value, ",")
	}
	return key, value
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Policy returns the ledger policy described by the configuration
func (c *Config) Policy() gamification.Policy {
	p := gamification.DefaultPolicy()
	p.XP = gamification.XPPolicy{
		Review:  c.XP.Review,
		NewItem: c.XP.NewItem,
		Lesson:  c.XP.Lesson,
		Minute:  c.XP.Minute,
	}
	p.LevelStep = c.XP.LevelStep
	p.Goal = c.Goal
	p.MissionsPerDay = c.Missions.PerDay
	p.WeakThreshold = c.Weak.Threshold
	p.WeakAreaLimit = c.Weak.Limit
	return p
}

// SlogLevel parses log.level
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
