package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-content-sync/internal/runtimeconfig"
)

const envPrefix = "CONTENTSYNC"

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"source-driver":  "source.driver",
	"source-root":    "source.root",
	"source-repo":    "source.repo",
	"storage-driver": "storage.driver",
	"storage-dsn":    "storage.dsn",
	"log-level":      "logging.level",
	"log-provider":   "logging.provider",
	"log-file":       "logging.file",
	"http-addr":      "http.addr",
}

func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, runtimeconfig.DefaultConfig())

	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return v, nil
}

// loadConfig reads the optional config file, overlays environment and flags,
// and validates the result.
func loadConfig(v *viper.Viper, path string) (runtimeconfig.Config, error) {
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return runtimeconfig.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("contentsync")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return runtimeconfig.Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := runtimeconfig.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return runtimeconfig.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return runtimeconfig.Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables resolve even
// when no config file mentions them.
func setDefaults(v *viper.Viper, cfg runtimeconfig.Config) {
	defaults := map[string]any{
		"sync.async_threshold":   cfg.Sync.AsyncThreshold,
		"sync.concurrency":       cfg.Sync.Concurrency,
		"sync.changeset_timeout": cfg.Sync.ChangesetTimeout,
		"sync.queue_size":        cfg.Sync.QueueSize,
		"sync.workers":           cfg.Sync.Workers,
		"fetch.max_attempts":     cfg.Fetch.MaxAttempts,
		"fetch.base_delay":       cfg.Fetch.BaseDelay,
		"fetch.max_delay":        cfg.Fetch.MaxDelay,
		"source.driver":          cfg.Source.Driver,
		"source.root":            cfg.Source.Root,
		"source.repo":            cfg.Source.Repo,
		"source.url_template":    cfg.Source.URLTemplate,
		"source.token":           cfg.Source.Token,
		"source.timeout":         cfg.Source.Timeout,
		"content.roots":          cfg.Content.Roots,
		"content.extension":      cfg.Content.Extension,
		"storage.driver":         cfg.Storage.Driver,
		"storage.dsn":            cfg.Storage.DSN,
		"storage.debug":          cfg.Storage.Debug,
		"cache.enabled":          cfg.Cache.Enabled,
		"cache.ttl":              cfg.Cache.TTL,
		"logging.provider":       cfg.Logging.Provider,
		"logging.level":          cfg.Logging.Level,
		"logging.format":         cfg.Logging.Format,
		"logging.add_source":     cfg.Logging.AddSource,
		"logging.focus":          cfg.Logging.Focus,
		"logging.file":           cfg.Logging.File,
		"logging.max_size_mb":    cfg.Logging.MaxSizeMB,
		"logging.max_backups":    cfg.Logging.MaxBackups,
		"logging.max_age_days":   cfg.Logging.MaxAgeDays,
		"http.addr":              cfg.HTTP.Addr,
		"http.path":              cfg.HTTP.Path,
		"http.max_body_bytes":    cfg.HTTP.MaxBodyBytes,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
