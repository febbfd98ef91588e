package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/documents"
	"github.com/spf13/viper"
)

const (
	envPrefix               = "NOTARY"
	defaultDatabasePath     = "/var/lib/notary/notary.db"
	defaultInMemoryFallback = true
	defaultCacheSize        = 1024
	defaultLogLevel         = "info"
	defaultHostSimAddress   = "127.0.0.1:5004"
	defaultHostSimPollWait  = time.Second

	// rollupURLEnv is the variable the rollup node sets for every application.
	rollupURLEnv = "ROLLUP_HTTP_SERVER_URL"
)

// AppConfig captures runtime configuration for the notary application.
type AppConfig struct {
	RollupURL        string
	DatabasePath     string
	InMemoryFallback bool
	CacheSize        int
	LogLevel         string
	MetricsAddress   string
}

// HostSimConfig captures runtime configuration for the host simulator.
type HostSimConfig struct {
	Address  string
	PollWait time.Duration
	LogLevel string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
	// The unprefixed name wins so the application runs unchanged under a rollup node.
	_ = configViper.BindEnv("rollup.http_server_url", rollupURLEnv, envPrefix+"_ROLLUP_HTTP_SERVER_URL")
	_ = configViper.BindEnv("database.path", envPrefix+"_DATABASE_PATH", envPrefix+"_DB_PATH")

	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.in_memory_fallback", defaultInMemoryFallback)
	configViper.SetDefault("cache.size", defaultCacheSize)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("metrics.address", "")
	configViper.SetDefault("hostsim.address", defaultHostSimAddress)
	configViper.SetDefault("hostsim.poll_wait", defaultHostSimPollWait)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		RollupURL:        strings.TrimSpace(configViper.GetString("rollup.http_server_url")),
		DatabasePath:     strings.TrimSpace(configViper.GetString("database.path")),
		InMemoryFallback: configViper.GetBool("database.in_memory_fallback"),
		CacheSize:        configViper.GetInt("cache.size"),
		LogLevel:         configViper.GetString("log.level"),
		MetricsAddress:   strings.TrimSpace(configViper.GetString("metrics.address")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadHostSim parses the host simulator configuration from viper.
func LoadHostSim(configViper *viper.Viper) (HostSimConfig, error) {
	cfg := HostSimConfig{
		Address:  strings.TrimSpace(configViper.GetString("hostsim.address")),
		PollWait: configViper.GetDuration("hostsim.poll_wait"),
		LogLevel: configViper.GetString("log.level"),
	}
	if cfg.Address == "" {
		return HostSimConfig{}, fmt.Errorf("hostsim.address is required")
	}
	if cfg.PollWait < 0 {
		return HostSimConfig{}, fmt.Errorf("hostsim.poll_wait must not be negative")
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.RollupURL == "" {
		return fmt.Errorf("rollup.http_server_url is required (set %s)", rollupURLEnv)
	}
	parsed, err := url.Parse(c.RollupURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("rollup.http_server_url must be an absolute URL, got %q", c.RollupURL)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache.size must not be negative")
	}
	if c.CacheSize > documents.MaxCacheSize {
		return fmt.Errorf("cache.size must not exceed %d, got %d", documents.MaxCacheSize, c.CacheSize)
	}
	return nil
}
