// Package config loads knit settings.
//
// Settings come from a TOML file (by default $XDG_CONFIG_HOME/knit/knit.toml)
// and are then overridden by KNIT_* environment variables. A missing file
// is not an error; every setting has a default.
//
//	[store]
//	driver = "sqlite"          # sqlite, mongo or memory
//	dsn = "/var/lib/knit/knit.db"
//
//	[cache]
//	driver = "redis"           # file, redis or none
//	redis_addr = "localhost:6379"
//
//	[server]
//	addr = ":8080"
//	rate_limit = 20
//
//	[layout]
//	h_step = 160
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/knitfamily/knit/pkg/cache"
	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/store"
)

const appName = "knit"

// Cache drivers.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config holds every knit setting.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
	Layout LayoutConfig `toml:"layout"`
	Log    LogConfig    `toml:"log"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// CacheConfig selects the layout and artifact cache.
type CacheConfig struct {
	Driver        string        `toml:"driver"`
	Dir           string        `toml:"dir"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	TTL           time.Duration `toml:"ttl"`
}

// ServerConfig configures `knit serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit    float64       `toml:"rate_limit"`
	RateBurst    int           `toml:"rate_burst"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// LayoutConfig holds the default spacing.
type LayoutConfig struct {
	HStep        float64 `toml:"h_step"`
	VStep        float64 `toml:"v_step"`
	SpouseOffset float64 `toml:"spouse_offset"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:        store.DriverSQLite,
			DSN:           filepath.Join(DataDir(), appName+".db"),
			MongoDatabase: store.DefaultMongoDatabase,
		},
		Cache: CacheConfig{
			Driver:    CacheFile,
			Dir:       CacheDir(),
			RedisAddr: "localhost:6379",
			TTL:       cache.TTLLayout,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			RateLimit:    10,
			RateBurst:    20,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Layout: LayoutConfig{
			HStep: layout.DefaultHStep,
			VStep: layout.DefaultVStep,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (or [DefaultPath] when empty), applies environment
// overrides and validates the result. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.decodeFile(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Store.Driver = getEnv("KNIT_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("KNIT_STORE_DSN", c.Store.DSN)
	c.Store.MongoURI = getEnv("KNIT_MONGO_URI", c.Store.MongoURI)
	c.Store.MongoDatabase = getEnv("KNIT_MONGO_DATABASE", c.Store.MongoDatabase)

	c.Cache.Driver = getEnv("KNIT_CACHE_DRIVER", c.Cache.Driver)
	c.Cache.Dir = getEnv("KNIT_CACHE_DIR", c.Cache.Dir)
	c.Cache.RedisAddr = getEnv("KNIT_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("KNIT_REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvInt("KNIT_REDIS_DB", c.Cache.RedisDB)

	c.Server.Addr = getEnv("KNIT_SERVER_ADDR", c.Server.Addr)
	c.Server.RateLimit = getEnvFloat("KNIT_RATE_LIMIT", c.Server.RateLimit)
	c.Server.RateBurst = getEnvInt("KNIT_RATE_BURST", c.Server.RateBurst)

	c.Log.Level = getEnv("KNIT_LOG_LEVEL", c.Log.Level)
}

// Validate rejects unknown drivers and unusable values.
func (c *Config) Validate() error {
	if !slices.Contains([]string{store.DriverSQLite, store.DriverMongo, store.DriverMemory}, c.Store.Driver) {
		return fmt.Errorf("store.driver: unknown driver %q (must be sqlite, mongo or memory)", c.Store.Driver)
	}
	if c.Store.Driver == store.DriverSQLite && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the sqlite driver")
	}
	if c.Store.Driver == store.DriverMongo && c.Store.MongoURI == "" {
		return fmt.Errorf("store.mongo_uri is required for the mongo driver")
	}
	if !slices.Contains([]string{CacheFile, CacheRedis, CacheNone}, c.Cache.Driver) {
		return fmt.Errorf("cache.driver: unknown driver %q (must be file, redis or none)", c.Cache.Driver)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_limit and server.rate_burst must not be negative")
	}
	if c.Layout.HStep <= 0 || c.Layout.VStep <= 0 {
		return fmt.Errorf("layout.h_step and layout.v_step must be positive")
	}
	if c.Layout.SpouseOffset < 0 {
		return fmt.Errorf("layout.spouse_offset must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// StoreConfig converts the store section for [store.Open].
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:        c.Store.Driver,
		DSN:           c.Store.DSN,
		MongoURI:      c.Store.MongoURI,
		MongoDatabase: c.Store.MongoDatabase,
	}
}

// OpenStore opens the configured store, creating the SQLite directory if
// needed.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	if c.Store.Driver == store.DriverSQLite && c.Store.DSN != ":memory:" && !strings.HasPrefix(c.Store.DSN, "file:") {
		if err := os.MkdirAll(filepath.Dir(c.Store.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return store.Open(ctx, c.StoreConfig())
}

// OpenCache opens the configured cache. An unreachable Redis degrades to
// no caching rather than failing, and the returned error says why.
func (c *Config) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Cache.Driver {
	case CacheNone:
		return cache.NewNullCache(), nil
	case CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		})
		if err != nil {
			return cache.NewNullCache(), err
		}
		return rc, nil
	}
	fc, err := cache.NewFileCache(c.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return fc, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/knit/knit.toml, falling back to
// ~/.config/knit/knit.toml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName, appName+".toml")
}

// CacheDir returns $XDG_CACHE_HOME/knit, falling back to ~/.cache/knit.
func CacheDir() string {
	return filepath.Join(xdgDir("XDG_CACHE_HOME", ".cache"), appName)
}

// DataDir returns $XDG_DATA_HOME/knit, falling back to ~/.local/share/knit.
func DataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), appName)
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, fallback)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns defaultValue when key is unset or not an integer.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
