// Package config holds operator-level configuration for a furbot process.
//
// Operator config covers where state lives and which endpoints and backends
// are used: data directory, vault key, tag file paths, processed-set backend,
// metrics address. It is read through viper from FURBOT_* env vars and an
// optional furbot.config.yaml.
//
// Account credentials do not belong here. They live in the encrypted vault
// (internal/secrets) and are resolved by ResolveCredentials, with env vars
// as a fallback for local development.
//
// Bot behavior (trigger, footer, limits, cooldowns) lives in the profile
// (internal/profile), not here.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/vaisest/fakefurbot/internal/processed"
	"github.com/vaisest/fakefurbot/internal/secrets"
	"github.com/vaisest/fakefurbot/internal/tags"
)

// Viper keys. Each maps to an env var with the FURBOT_ prefix
// (e.g. "secrets_key" → FURBOT_SECRETS_KEY) and to a field in
// furbot.config.yaml.
const (
	KeyDataDir            = "data_dir"
	KeySecretsKey         = "secrets_key"
	KeyProfile            = "profile"
	KeyBlacklistPath      = "blacklist_path"
	KeyAliasBlacklistPath = "alias_blacklist_path"
	KeyImplicationsPath   = "implications_path"
	KeyCatalogBaseURL     = "catalog_base_url"
	KeyPlatformBaseURL    = "platform_base_url"
	KeyPlatformAuthURL    = "platform_auth_url"
	KeyProcessedBackend   = "processed_backend"
	KeyProcessedPath      = "processed_path"
	KeyRedisAddr          = "redis_addr"
	KeyRedisPassword      = "redis_password"
	KeyRedisDB            = "redis_db"
	KeyMetricsAddr        = "metrics_addr"
)

// Defaults. The vault key intentionally has none; when unset a per-machine
// key is derived and a warning is logged.
const (
	DefaultProfile            = "furbot.yaml"
	DefaultBlacklistPath      = "blacklist.txt"
	DefaultAliasBlacklistPath = "generated_blacklist.txt"
	DefaultImplicationsPath   = "implicated_tags.txt"
	DefaultProcessedBackend   = processed.BackendFile
	DefaultRedisAddr          = "localhost:6379"
)

// Config holds resolved operator configuration.
type Config struct {
	DataDir            string
	SecretsKey         string
	Profile            string
	BlacklistPath      string
	AliasBlacklistPath string
	ImplicationsPath   string
	CatalogBaseURL     string
	PlatformBaseURL    string
	PlatformAuthURL    string
	ProcessedBackend   string
	ProcessedPath      string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	MetricsAddr        string

	usingDefaultSecretsKey bool
}

// UsingDefaultSecretsKey reports whether the vault key was derived rather
// than set explicitly.
func (c *Config) UsingDefaultSecretsKey() bool {
	return c.usingDefaultSecretsKey
}

// SecretsDBPath returns the path of the vault database.
func (c *Config) SecretsDBPath() string {
	return filepath.Join(c.DataDir, "secrets.db")
}

// TagPaths returns the locations of the three static tag files.
func (c *Config) TagPaths() tags.Paths {
	return tags.Paths{
		Blacklist:      c.BlacklistPath,
		AliasBlacklist: c.AliasBlacklistPath,
		Implications:   c.ImplicationsPath,
	}
}

// ProcessedOptions returns the options for opening the processed-id set.
func (c *Config) ProcessedOptions() processed.Options {
	return processed.Options{
		Backend:       c.ProcessedBackend,
		DataDir:       c.DataDir,
		Path:          c.ProcessedPath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKey logs a warning when the vault key was derived.
func (c *Config) WarnIfDefaultKey() {
	if c.usingDefaultSecretsKey {
		log.Warn().Msg("Using generated default FURBOT_SECRETS_KEY; set it via env var or config file for production")
	}
}

func init() {
	viper.SetEnvPrefix("FURBOT")
	viper.AutomaticEnv()
	setDefaults()
}

func setDefaults() {
	viper.SetDefault(KeyProfile, DefaultProfile)
	viper.SetDefault(KeyBlacklistPath, DefaultBlacklistPath)
	viper.SetDefault(KeyAliasBlacklistPath, DefaultAliasBlacklistPath)
	viper.SetDefault(KeyImplicationsPath, DefaultImplicationsPath)
	viper.SetDefault(KeyProcessedBackend, DefaultProcessedBackend)
	viper.SetDefault(KeyRedisAddr, DefaultRedisAddr)
}

// Load reads configuration from viper (env vars, config file, defaults) and
// returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:            resolveDataDir(),
		SecretsKey:         viper.GetString(KeySecretsKey),
		Profile:            viper.GetString(KeyProfile),
		BlacklistPath:      viper.GetString(KeyBlacklistPath),
		AliasBlacklistPath: viper.GetString(KeyAliasBlacklistPath),
		ImplicationsPath:   viper.GetString(KeyImplicationsPath),
		CatalogBaseURL:     viper.GetString(KeyCatalogBaseURL),
		PlatformBaseURL:    viper.GetString(KeyPlatformBaseURL),
		PlatformAuthURL:    viper.GetString(KeyPlatformAuthURL),
		ProcessedBackend:   viper.GetString(KeyProcessedBackend),
		ProcessedPath:      viper.GetString(KeyProcessedPath),
		RedisAddr:          viper.GetString(KeyRedisAddr),
		RedisPassword:      viper.GetString(KeyRedisPassword),
		RedisDB:            viper.GetInt(KeyRedisDB),
		MetricsAddr:        viper.GetString(KeyMetricsAddr),
	}

	if cfg.SecretsKey == "" {
		cfg.SecretsKey = deriveDefaultKey(cfg.DataDir)
		cfg.usingDefaultSecretsKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".furbot"
	}
	return filepath.Join(home, ".furbot")
}

// deriveDefaultKey produces a deterministic 32-byte hex key from the data
// directory. It is not a secret; it only lets a fresh install encrypt the
// vault with a per-machine key.
func deriveDefaultKey(dataDir string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("furbot:%s:secrets-encryption", dataDir)))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if _, err := secrets.ParseKey(c.SecretsKey); err != nil {
		return fmt.Errorf("secrets_key: %w; set FURBOT_SECRETS_KEY", err)
	}
	switch c.ProcessedBackend {
	case processed.BackendFile, processed.BackendSQLite, processed.BackendRedis:
	default:
		return fmt.Errorf("processed_backend must be one of %s, %s, %s (got %q)",
			processed.BackendFile, processed.BackendSQLite, processed.BackendRedis, c.ProcessedBackend)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis_db must not be negative")
	}
	return nil
}
