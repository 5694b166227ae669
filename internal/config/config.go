// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaizeyBaseURL = "https://umgpt.umich.edu"
	DefaultRetention     = 7 * 24 * time.Hour // 604800s
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SendRateLimit  int           `yaml:"send_rate_limit"` // sends per minute per browser, 0 disables
}

type LogConfig struct {
	Level      string `yaml:"level"`    // trace|debug|info|warn|error
	Format     string `yaml:"format"`   // json|console
	Sampling   bool   `yaml:"sampling"` // enable sampling in prod
	File       string `yaml:"file"`     // optional rotated log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type AssistantConfig struct {
	Provider        string        `yaml:"provider"` // maizey | openai | gemini | noop
	BaseURL         string        `yaml:"base_url"`
	AccessToken     string        `yaml:"access_token"`
	ProjectPK       string        `yaml:"project_pk"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent assistant calls

	OpenAIKey     string `yaml:"openai_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	GeminiKey     string `yaml:"gemini_key"`
	GeminiURL     string `yaml:"gemini_url"`
	Model         string `yaml:"model"`
	MaxOutTokens  int    `yaml:"max_out_tokens"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend"` // memory | redis | postgres | sqlite | none
	TTL           time.Duration `yaml:"ttl"`
	RecentLimit   int           `yaml:"recent_limit"`
	SidebarLimit  int           `yaml:"sidebar_limit"`
	EncryptionKey string        `yaml:"encryption_key"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
	SaveWorkers   int           `yaml:"save_workers"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	CookieName   string        `yaml:"cookie_name"`
	SecureCookie bool          `yaml:"secure_cookie"`
	TTL          time.Duration `yaml:"ttl"`
}

type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"` // empty -> stdout
}

type UIConfig struct {
	Language        string   `yaml:"language"`
	DefaultLanguage string   `yaml:"default_code_language"`
	Examples        []string `yaml:"examples"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Assistant AssistantConfig `yaml:"assistant"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Session   SessionConfig   `yaml:"session"`
	Tracing   TracingConfig   `yaml:"tracing"`
	UI        UIConfig        `yaml:"ui"`

	Runtime RuntimeConfig `yaml:"-"`
}

var defaultExamples = []string{
	"Find student info by uniqname",
	"List rooms in Shapiro Library",
	"Course enrollment API example",
	"Faculty directory search",
	"Building capacity information",
	"Campus dining hours",
	"Library study spaces",
}

// LoadConfig reads the YAML file at path (a missing file is fine), applies
// environment overrides and defaults, then validates required credentials.
func LoadConfig(path string, dev bool) (*Config, error) {
	return LoadConfigWith(path, dev, nil)
}

// LoadConfigWith is LoadConfig with override applied after env and
// defaults but before validation, so callers can relax what they do not use.
func LoadConfigWith(path string, dev bool, override func(*Config)) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg, os.LookupEnv)
	applyDefaults(&cfg)
	if override != nil {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Assistant.AccessToken, "ACCESS_TOKEN")
	set(&cfg.Assistant.ProjectPK, "PROJECT_PK")
	set(&cfg.Assistant.BaseURL, "MAIZEY_BASE_URL")
	set(&cfg.Assistant.OpenAIKey, "OPENAI_API_KEY")
	set(&cfg.Assistant.GeminiKey, "GEMINI_API_KEY")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Redis.Password, "REDIS_TOKEN")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Session.Secret, "SESSION_SECRET")
	set(&cfg.Store.EncryptionKey, "STORE_ENCRYPTION_KEY")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8501
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.SendRateLimit < 0 {
		cfg.Server.SendRateLimit = 0
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
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 28
	}

	cfg.Assistant.Provider = strings.ToLower(strings.TrimSpace(cfg.Assistant.Provider))
	if cfg.Assistant.Provider == "" {
		cfg.Assistant.Provider = "maizey"
	}
	if cfg.Assistant.BaseURL == "" {
		cfg.Assistant.BaseURL = DefaultMaizeyBaseURL
	}
	if cfg.Assistant.Timeout <= 0 {
		cfg.Assistant.Timeout = 30 * time.Second
	}
	if cfg.Assistant.ConcurrentLimit <= 0 {
		cfg.Assistant.ConcurrentLimit = 16
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Store.Backend == "" {
		// absent store credentials disable persistence, not the app
		if cfg.Redis.URL != "" {
			cfg.Store.Backend = "redis"
		} else {
			cfg.Store.Backend = "none"
		}
	}
	cfg.Store.TTL = normalizeTTL(cfg.Store.TTL)
	if cfg.Store.RecentLimit <= 0 {
		cfg.Store.RecentLimit = 10
	}
	if cfg.Store.SidebarLimit <= 0 {
		cfg.Store.SidebarLimit = 4
	}
	if cfg.Store.PurgeInterval <= 0 {
		cfg.Store.PurgeInterval = time.Hour
	}
	if cfg.Store.SaveWorkers <= 0 {
		cfg.Store.SaveWorkers = 2
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "chat_history.db"
	}

	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "maizey_session"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = DefaultRetention
	}

	if cfg.UI.Language == "" {
		cfg.UI.Language = "en"
	}
	if cfg.UI.DefaultLanguage == "" {
		cfg.UI.DefaultLanguage = "python"
	}
	if len(cfg.UI.Examples) == 0 {
		cfg.UI.Examples = append([]string(nil), defaultExamples...)
	}
}

// Validate checks the credentials required by the selected provider and
// store backend.
func (c *Config) Validate() error {
	switch c.Assistant.Provider {
	case "maizey":
		if c.Assistant.AccessToken == "" {
			return errors.New("assistant.access_token (ACCESS_TOKEN) is required")
		}
		if c.Assistant.ProjectPK == "" {
			return errors.New("assistant.project_pk (PROJECT_PK) is required")
		}
	case "openai":
		if c.Assistant.OpenAIKey == "" {
			return errors.New("assistant.openai_key (OPENAI_API_KEY) is required")
		}
	case "gemini":
		if c.Assistant.GeminiKey == "" {
			return errors.New("assistant.gemini_key (GEMINI_API_KEY) is required")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown assistant.provider %q", c.Assistant.Provider)
	}

	switch c.Store.Backend {
	case "memory", "redis", "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if k := c.Store.EncryptionKey; k != "" && len(k) != 16 && len(k) != 24 && len(k) != 32 {
		return fmt.Errorf("store.encryption_key must be 16, 24, or 32 bytes; got %d", len(k))
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRetention
	}
	return d
}
