// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const MiB = 1024 * 1024

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token         string  `yaml:"token"`
	Workers       int     `yaml:"workers"` // update handling workers
	AllowedUsers  []int64 `yaml:"allowed_users"`
	AdminIDs      []int64 `yaml:"admin_ids"`
	TargetChannel int64   `yaml:"target_channel"` // broadcast destination for non-private chats
}

type LogConfig struct {
	Level      string `yaml:"level"`    // trace|debug|info|warn|error
	Format     string `yaml:"format"`   // json|console
	Sampling   bool   `yaml:"sampling"` // enable sampling in prod
	File       string `yaml:"file"`     // optional rotating log file, served by /logs
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // gemini|openai|noop
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	DefaultModel    string `yaml:"default_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	MaxInputTokens  int    `yaml:"max_input_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"`
}

type MediaConfig struct {
	WorkDir          string  `yaml:"work_dir"`
	Format           string  `yaml:"format"`
	SplitThresholdMB int     `yaml:"split_threshold_mb"`
	PartSizeMB       int     `yaml:"part_size_mb"`
	OverlapSeconds   float64 `yaml:"overlap_seconds"`
	MinFileBytes     int64   `yaml:"min_file_bytes"`
	FFmpegPath       string  `yaml:"ffmpeg_path"`
	FFprobePath      string  `yaml:"ffprobe_path"`
}

type DownloaderConfig struct {
	YtdlpPath   string `yaml:"ytdlp_path"`
	CookiesFile string `yaml:"cookies_file"`
}

type TasksConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	TimeoutGrace    time.Duration `yaml:"timeout_grace"`
	QueueSize       int           `yaml:"queue_size"`
	SendAttempts    int           `yaml:"send_attempts"`
	RateLimitMargin time.Duration `yaml:"rate_limit_margin"`
	TimeoutBackoff  time.Duration `yaml:"timeout_backoff"`
	ErrorBackoff    time.Duration `yaml:"error_backoff"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AI         AIConfig         `yaml:"ai"`
	Media      MediaConfig      `yaml:"media"`
	Downloader DownloaderConfig `yaml:"downloader"`
	Tasks      TasksConfig      `yaml:"tasks"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads the YAML file at path, overlays secrets from the environment
// (a .env file next to the process is honoured) and fills defaults.
func Load(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments are allowed
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Enabled && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required when redis is enabled")
	}
	if cfg.Media.PartSizeMB > cfg.Media.SplitThresholdMB {
		return nil, errors.New("media.part_size_mb must not exceed media.split_threshold_mb")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setStr := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Bot.Token, "BOT_TOKEN")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setStr(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setStr(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	setStr(&cfg.Downloader.CookiesFile, "COOKIES_FILE")

	if v := strings.TrimSpace(os.Getenv("TARGET_CHANNEL")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TARGET_CHANNEL: %w", err)
		}
		cfg.Bot.TargetChannel = id
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_USERS")); v != "" {
		ids, err := ParseIDList(v)
		if err != nil {
			return fmt.Errorf("ALLOWED_USERS: %w", err)
		}
		cfg.Bot.AllowedUsers = ids
	}
	return nil
}

// ParseIDList parses a comma separated list of integer ids.
func ParseIDList(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		switch {
		case cfg.AI.GeminiKey != "":
			cfg.AI.Provider = "gemini"
		case cfg.AI.OpenAIKey != "":
			cfg.AI.Provider = "openai"
		default:
			cfg.AI.Provider = "noop"
		}
	}
	if cfg.AI.DefaultModel == "" {
		if cfg.AI.Provider == "openai" {
			cfg.AI.DefaultModel = "gpt-4o-mini"
		} else {
			cfg.AI.DefaultModel = "gemini-2.0-flash"
		}
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 8192
	}
	if cfg.AI.MaxInputTokens <= 0 {
		cfg.AI.MaxInputTokens = 100000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 2
	}

	if cfg.Media.WorkDir == "" {
		cfg.Media.WorkDir = os.TempDir()
	}
	if cfg.Media.Format == "" {
		cfg.Media.Format = "best[height<=360][ext=mp4][tbr<=600]/best[ext=mp4]/best"
	}
	if cfg.Media.SplitThresholdMB <= 0 {
		cfg.Media.SplitThresholdMB = 50
	}
	if cfg.Media.PartSizeMB <= 0 {
		cfg.Media.PartSizeMB = 40
	}
	if cfg.Media.OverlapSeconds <= 0 {
		cfg.Media.OverlapSeconds = 5
	}
	if cfg.Media.MinFileBytes <= 0 {
		cfg.Media.MinFileBytes = 1024
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = "ffmpeg"
	}
	if cfg.Media.FFprobePath == "" {
		cfg.Media.FFprobePath = "ffprobe"
	}
	if cfg.Downloader.CookiesFile == "" {
		cfg.Downloader.CookiesFile = "cookies.txt"
	}

	if cfg.Tasks.Timeout <= 0 {
		cfg.Tasks.Timeout = 600 * time.Second
	}
	if cfg.Tasks.TimeoutGrace <= 0 {
		cfg.Tasks.TimeoutGrace = 5 * time.Second
	}
	if cfg.Tasks.QueueSize <= 0 {
		cfg.Tasks.QueueSize = 100
	}
	if cfg.Tasks.SendAttempts <= 0 {
		cfg.Tasks.SendAttempts = 5
	}
	if cfg.Tasks.RateLimitMargin <= 0 {
		cfg.Tasks.RateLimitMargin = time.Second
	}
	if cfg.Tasks.TimeoutBackoff <= 0 {
		cfg.Tasks.TimeoutBackoff = 10 * time.Second
	}
	if cfg.Tasks.ErrorBackoff <= 0 {
		cfg.Tasks.ErrorBackoff = 5 * time.Second
	}
	if cfg.RateLimit.PerMinute <= 0 {
		cfg.RateLimit.PerMinute = 20
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

// SplitThresholdBytes and PartSizeBytes convert the MiB settings.
func (m MediaConfig) SplitThresholdBytes() int64 { return int64(m.SplitThresholdMB) * MiB }
func (m MediaConfig) PartSizeBytes() int64       { return int64(m.PartSizeMB) * MiB }

// IsAllowed reports whether the user id is on the allow list.
func (b BotConfig) IsAllowed(userID int64) bool {
	for _, id := range b.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func (b BotConfig) IsAdmin(userID int64) bool {
	for _, id := range b.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
