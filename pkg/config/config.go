// Package config loads the gateway configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendLevelDB = "leveldb"
)

// DefaultManifest lists the URLs precached into the static partition.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/mains.html",
	"/style.css",
	"/app.js",
	"/manifest.json",
	"https://fonts.googleapis.com/css2?family=Inter:wght@300;400;500&family=Syne:wght@700;800&family=Playfair+Display:wght@400;500;600;700;800;900&family=Montserrat:wght@300;400;500;600;700;800;900&display=swap",
	"https://cdnjs.cloudflare.com/ajax/libs/gsap/3.12.5/gsap.min.js",
	"https://cdnjs.cloudflare.com/ajax/libs/gsap/3.12.5/ScrollTrigger.min.js",
	"https://cdn.jsdelivr.net/gh/studio-freight/lenis@1.0.42/bundled/lenis.min.js",
}

// DefaultMedia lists the images precached into the dynamic partition.
var DefaultMedia = []string{
	"https://ik.imagekit.io/sarvinozusmanova/New%20Folder/IMG_4975.JPG?updatedAt=1752757683245",
	"https://ik.imagekit.io/sarvinozusmanova/New%20Folder/IMG_9969.WEBP?updatedAt=1752757438569",
	"https://ik.imagekit.io/sarvinozusmanova/New%20Folder/IMG_9959.WEBP?updatedAt=1752757438569",
}

// Config is the complete gateway configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`

	origin *url.URL
}

type ServerConfig struct {
	Listen          string        `yaml:"listen" env:"GATEWAY_LISTEN"`
	Origin          string        `yaml:"origin" env:"GATEWAY_ORIGIN"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"GATEWAY_SHUTDOWN_TIMEOUT"`
}

type GatewayConfig struct {
	Version              string   `yaml:"version" env:"GATEWAY_VERSION"`
	SkipWaitingOnInstall bool     `yaml:"skipWaitingOnInstall" env:"GATEWAY_SKIP_WAITING_ON_INSTALL"`
	InstallConcurrency   int      `yaml:"installConcurrency" env:"GATEWAY_INSTALL_CONCURRENCY"`
	Manifest             []string `yaml:"manifest" env:"GATEWAY_MANIFEST" envSeparator:","`
	Media                []string `yaml:"media" env:"GATEWAY_MEDIA" envSeparator:","`
}

type FetchConfig struct {
	UserAgent string `yaml:"userAgent" env:"GATEWAY_USER_AGENT"`
	// Timeout of zero imposes no limit
	Timeout time.Duration `yaml:"timeout" env:"GATEWAY_FETCH_TIMEOUT"`
}

type StoreConfig struct {
	Backend string        `yaml:"backend" env:"GATEWAY_STORE"`
	Redis   RedisConfig   `yaml:"redis"`
	LevelDB LevelDBConfig `yaml:"leveldb"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_URL"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
}

type LevelDBConfig struct {
	Path string `yaml:"path" env:"GATEWAY_LEVELDB_PATH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Gateway: GatewayConfig{
			Version:              "v1.0.0",
			SkipWaitingOnInstall: true,
			InstallConcurrency:   6,
			Manifest:             append([]string(nil), DefaultManifest...),
			Media:                append([]string(nil), DefaultMedia...),
		},
		Fetch: FetchConfig{
			UserAgent: "offline-cache-gateway/1.0",
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "gateway:",
			},
			LevelDB: LevelDBConfig{
				Path: "data/gateway",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result. Values absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration and resolves the origin URL.
func (c *Config) Validate() error {
	if c.Server.Origin == "" {
		return fmt.Errorf("server.origin is required")
	}
	c.Server.Origin = strings.TrimRight(c.Server.Origin, "/")
	origin, err := url.Parse(c.Server.Origin)
	if err != nil {
		return fmt.Errorf("server.origin: %w", err)
	}
	if !origin.IsAbs() || origin.Host == "" {
		return fmt.Errorf("server.origin must be an absolute URL, got %q", c.Server.Origin)
	}
	c.origin = origin

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Gateway.Version == "" {
		return fmt.Errorf("gateway.version is required")
	}
	if c.Gateway.InstallConcurrency <= 0 {
		return fmt.Errorf("gateway.installConcurrency must be > 0 (got %d)", c.Gateway.InstallConcurrency)
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.userAgent is required")
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must be >= 0 (got %s)", c.Fetch.Timeout)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	case BackendLevelDB:
		if c.Store.LevelDB.Path == "" {
			return fmt.Errorf("store.leveldb.path is required for the leveldb backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// OriginURL returns the parsed origin. It is nil until Validate succeeds.
func (c Config) OriginURL() *url.URL {
	return c.origin
}
