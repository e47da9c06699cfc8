package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Cache      CacheConfig      `mapstructure:"cache"`
	SyncPool   SyncPoolConfig   `mapstructure:"sync_pool"`
	Economy    EconomyConfig    `mapstructure:"economy"`
	Moderation ModerationConfig `mapstructure:"moderation"`
}

type AppConfig struct {
	Version            string   `mapstructure:"version"`
	Port               string   `mapstructure:"port"`
	Debug              bool     `mapstructure:"debug"`
	Environment        string   `mapstructure:"env"`
	BasicAuth          []string `mapstructure:"basic_auth"`
	BasePath           string   `mapstructure:"base_path"`
	TrustedProxies     []string `mapstructure:"trusted_proxies"`
	CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	ServerID           string   `mapstructure:"server_id"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mongo | sqlite | postgres | memory

	MongoURI       string        `mapstructure:"mongo_uri"`
	MongoDatabase  string        `mapstructure:"mongo_database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"` // File path for SQLite, DB Name for Postgres
}

type ValkeyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxSize         ByteSize      `mapstructure:"max_size"`
}

type SyncPoolConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type EconomyConfig struct {
	CurrencySymbol  string        `mapstructure:"currency_symbol"`
	StartingBalance int64         `mapstructure:"starting_balance"`
	DailyReward     int64         `mapstructure:"daily_reward"`
	DailyCooldown   time.Duration `mapstructure:"daily_cooldown"`
}

type ModerationConfig struct {
	WarnThreshold int `mapstructure:"warn_threshold"`
	CasePageSize  int `mapstructure:"case_page_size"`
}

// Global provides access to the loaded configuration globally.
var Global *Config

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"app.version":              "v1.0.0",
		"app.port":                 "3000",
		"app.debug":                false,
		"app.env":                  "development",
		"app.basic_auth":           []string{},
		"app.base_path":            "",
		"app.trusted_proxies":      []string{},
		"app.cors_allowed_origins": []string{"http://localhost:3000", "http://localhost:5173"},
		"app.server_id":            "",

		"db.driver":          "sqlite",
		"db.mongo_uri":       "mongodb://localhost:27017",
		"db.mongo_database":  "azguard",
		"db.connect_timeout": 10 * time.Second,
		"db.host":            "localhost",
		"db.port":            5432,
		"db.user":            "postgres",
		"db.password":        "",
		"db.name":            "storages/azguard.db",

		"valkey.enabled":    false,
		"valkey.address":    "localhost:6379",
		"valkey.password":   "",
		"valkey.db":         0,
		"valkey.key_prefix": "azguard",

		"cache.enabled":          true,
		"cache.ttl":              5 * time.Minute,
		"cache.cleanup_interval": 0,
		"cache.max_size":         "1GiB",

		"sync_pool.workers":    4,
		"sync_pool.queue_size": 256,

		"economy.currency_symbol":  "$",
		"economy.starting_balance": 0,
		"economy.daily_reward":     100,
		"economy.daily_cooldown":   24 * time.Hour,

		"moderation.warn_threshold": 3,
		"moderation.case_page_size": 25,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load decodes a Config from v. Every key can be overridden by its
// upper-cased environment variable with dots turned into underscores
// (cache.ttl -> CACHE_TTL). Durations take Go syntax ("90s"), sizes take
// humanized units ("512MiB"), lists are comma separated.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	hook := mapstructure.ComposeDecodeHookFunc(
		byteSizeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads from the process environment and stores the result in
// Global.
func LoadConfig() (*Config, error) {
	cfg, err := Load(viper.New())
	if err != nil {
		return nil, err
	}
	Global = cfg
	return cfg, nil
}

func (c *Config) normalize() {
	c.App.BasicAuth = trimAll(c.App.BasicAuth)
	c.App.TrustedProxies = trimAll(c.App.TrustedProxies)
	c.App.CorsAllowedOrigins = trimAll(c.App.CorsAllowedOrigins)
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = c.Cache.TTL
	}
}
