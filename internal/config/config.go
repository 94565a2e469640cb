// Package config loads cachectl/cacheload's JSONC configuration file (a
// thin cache.Config plus backend selection), following the same
// load-merge-validate shape the rest of the corpus uses for config files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the default config file name, looked up in the working
// directory when no explicit path is given.
const ConfigFileName = ".cachecore.json"

var (
	errFileNotFound = errors.New("config: file not found")
	errFileRead     = errors.New("config: could not read file")
	errInvalid      = errors.New("config: invalid")
)

// BackendKind selects which concrete cache.Backend cachectl/cacheload wire
// up.
type BackendKind string

const (
	BackendMemory    BackendKind = "memory"
	BackendRistretto BackendKind = "ristretto"
	BackendRedis     BackendKind = "redis"
	BackendTiered    BackendKind = "tiered"
)

// Config is the on-disk shape, JSONC (HuJSON: JSON plus comments and
// trailing commas).
type Config struct {
	Namespace        string      `json:"namespace,omitempty"`
	Backend          BackendKind `json:"backend,omitempty"`
	DefaultTTL       string      `json:"default_ttl,omitempty"` //nolint:tagliatelle
	DefaultSWR       string      `json:"default_swr,omitempty"` //nolint:tagliatelle
	Jitter           float64     `json:"jitter,omitempty"`
	EarlyRefresh     bool        `json:"early_refresh,omitempty"` //nolint:tagliatelle
	EarlyRefreshBeta float64     `json:"early_refresh_beta,omitempty"` //nolint:tagliatelle
	Coalesce         bool        `json:"coalesce,omitempty"`

	MemoryCapacity int    `json:"memory_capacity,omitempty"` //nolint:tagliatelle
	RedisAddr      string `json:"redis_addr,omitempty"`      //nolint:tagliatelle
	RedisPrefix    string `json:"redis_prefix,omitempty"`    //nolint:tagliatelle

	PrometheusNamespace string `json:"prometheus_namespace,omitempty"` //nolint:tagliatelle
}

// Default returns the built-in defaults: an in-process memory backend,
// no TTL/SWR, no jitter, early refresh and coalescing off.
func Default() Config {
	return Config{
		Backend:        BackendMemory,
		MemoryCapacity: 10_000,
	}
}

// Load reads and merges configuration with the following precedence
// (highest wins): defaults, then the default project file
// (workDir/.cachecore.json, optional), then an explicit configPath (must
// exist if given).
func Load(workDir, configPath string) (Config, error) {
	cfg := Default()

	projectPath := filepath.Join(workDir, ConfigFileName)
	projectCfg, loaded, err := loadFile(projectPath, false)
	if err != nil {
		return Config{}, err
	}
	if loaded {
		cfg = merge(cfg, projectCfg)
	}

	if configPath != "" {
		path := configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		explicitCfg, _, err := loadFile(path, true)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, explicitCfg)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled CLI input
	if err != nil {
		if os.IsNotExist(err) {
			if !mustExist {
				return Config{}, false, nil
			}
			return Config{}, false, fmt.Errorf("%w: %s", errFileNotFound, path)
		}
		return Config{}, false, fmt.Errorf("%w: %s", errFileRead, path)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w: %s: invalid JSONC: %w", errInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("%w: %s: invalid JSON: %w", errInvalid, path, err)
	}
	return cfg, true, nil
}

func merge(base, overlay Config) Config {
	if overlay.Namespace != "" {
		base.Namespace = overlay.Namespace
	}
	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}
	if overlay.DefaultTTL != "" {
		base.DefaultTTL = overlay.DefaultTTL
	}
	if overlay.DefaultSWR != "" {
		base.DefaultSWR = overlay.DefaultSWR
	}
	if overlay.Jitter != 0 {
		base.Jitter = overlay.Jitter
	}
	if overlay.EarlyRefresh {
		base.EarlyRefresh = true
	}
	if overlay.EarlyRefreshBeta != 0 {
		base.EarlyRefreshBeta = overlay.EarlyRefreshBeta
	}
	if overlay.Coalesce {
		base.Coalesce = true
	}
	if overlay.MemoryCapacity != 0 {
		base.MemoryCapacity = overlay.MemoryCapacity
	}
	if overlay.RedisAddr != "" {
		base.RedisAddr = overlay.RedisAddr
	}
	if overlay.RedisPrefix != "" {
		base.RedisPrefix = overlay.RedisPrefix
	}
	if overlay.PrometheusNamespace != "" {
		base.PrometheusNamespace = overlay.PrometheusNamespace
	}
	return base
}

func validate(cfg Config) error {
	switch cfg.Backend {
	case BackendMemory, BackendRistretto, BackendTiered:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend requires redis_addr", errInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", errInvalid, cfg.Backend)
	}
	if _, err := ParseDuration(cfg.DefaultTTL); err != nil {
		return fmt.Errorf("%w: default_ttl: %w", errInvalid, err)
	}
	if _, err := ParseDuration(cfg.DefaultSWR); err != nil {
		return fmt.Errorf("%w: default_swr: %w", errInvalid, err)
	}
	return nil
}

// ParseDuration parses s as a time.Duration, treating "" as zero rather
// than an error (time.ParseDuration rejects the empty string).
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
