package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSyncConcurrencyInvalid  = errors.New("contentsync config: sync concurrency must be positive")
	ErrSyncThresholdInvalid    = errors.New("contentsync config: async threshold must be zero or positive")
	ErrSyncTimeoutInvalid      = errors.New("contentsync config: changeset timeout must be zero or positive")
	ErrQueueSizeInvalid        = errors.New("contentsync config: queue size must be positive when async is enabled")
	ErrFetchAttemptsInvalid    = errors.New("contentsync config: fetch max attempts must be at least 1")
	ErrFetchDelayInvalid       = errors.New("contentsync config: fetch delays must be positive and base <= max")
	ErrSourceDriverUnknown     = errors.New("contentsync config: source driver is invalid")
	ErrSourceLocationRequired  = errors.New("contentsync config: source location is required")
	ErrContentRootsRequired    = errors.New("contentsync config: at least one content root is required")
	ErrContentRootKindUnknown  = errors.New("contentsync config: content root kind is invalid")
	ErrStorageDriverUnknown    = errors.New("contentsync config: storage driver is invalid")
	ErrStorageDSNRequired      = errors.New("contentsync config: storage dsn is required")
	ErrLoggingProviderUnknown  = errors.New("contentsync config: logging provider is invalid")
	ErrLoggingLevelInvalid     = errors.New("contentsync config: logging level is invalid")
	ErrLoggingFormatInvalid    = errors.New("contentsync config: logging format is invalid")
	ErrHTTPAddrRequired        = errors.New("contentsync config: http address is required")
	ErrHTTPBodyLimitInvalid    = errors.New("contentsync config: http body limit must be positive")
	ErrCacheTTLRequiresEnabled = errors.New("contentsync config: cache ttl must be positive when cache is enabled")
)

// Config aggregates every runtime option. Keys follow the snake_case names
// used in config files and CONTENTSYNC_ environment variables.
type Config struct {
	Sync    SyncConfig    `mapstructure:"sync"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Source  SourceConfig  `mapstructure:"source"`
	Content ContentConfig `mapstructure:"content"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

// SyncConfig controls orchestration.
type SyncConfig struct {
	// AsyncThreshold is the changeset size above which processing is
	// deferred to the worker. Zero disables deferral.
	AsyncThreshold   int           `mapstructure:"async_threshold"`
	Concurrency      int           `mapstructure:"concurrency"`
	ChangesetTimeout time.Duration `mapstructure:"changeset_timeout"`
	QueueSize        int           `mapstructure:"queue_size"`
	Workers          int           `mapstructure:"workers"`
}

// FetchConfig controls retries against the document source.
type FetchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// SourceConfig selects the document repository.
type SourceConfig struct {
	Driver      string        `mapstructure:"driver"`
	Root        string        `mapstructure:"root"`
	Repo        string        `mapstructure:"repo"`
	URLTemplate string        `mapstructure:"url_template"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ContentConfig maps repository directories to document kinds.
type ContentConfig struct {
	Roots     map[string]string `mapstructure:"roots"`
	Extension string            `mapstructure:"extension"`
}

// StorageConfig selects the relational store.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"debug"`
}

// CacheConfig controls read-side caching.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LoggingConfig captures provider options and optional file rotation.
type LoggingConfig struct {
	Provider   string   `mapstructure:"provider"`
	Level      string   `mapstructure:"level"`
	Format     string   `mapstructure:"format"`
	AddSource  bool     `mapstructure:"add_source"`
	Focus      []string `mapstructure:"focus"`
	File       string   `mapstructure:"file"`
	MaxSizeMB  int      `mapstructure:"max_size_mb"`
	MaxBackups int      `mapstructure:"max_backups"`
	MaxAgeDays int      `mapstructure:"max_age_days"`
}

// HTTPConfig configures the notification endpoint.
type HTTPConfig struct {
	Addr         string `mapstructure:"addr"`
	Path         string `mapstructure:"path"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// DefaultConfig returns defaults suitable for a local checkout.
func DefaultConfig() Config {
	return Config{
		Sync: SyncConfig{
			AsyncThreshold:   50,
			Concurrency:      8,
			ChangesetTimeout: 2 * time.Minute,
			QueueSize:        16,
			Workers:          1,
		},
		Fetch: FetchConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
		Source: SourceConfig{
			Driver:  "fs",
			Root:    "content",
			Timeout: 10 * time.Second,
		},
		Content: ContentConfig{
			Roots: map[string]string{
				"posts":   "post",
				"authors": "author",
				"pages":   "page",
			},
			Extension: ".md",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "file:contentsync.db?cache=shared&_fk=1",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Minute,
		},
		Logging: LoggingConfig{
			Provider:   "console",
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			Path:         "/hooks/content",
			MaxBodyBytes: 5 << 20,
		},
	}
}

// Validate performs consistency checks, returning the first violation.
func (cfg Config) Validate() error {
	if cfg.Sync.Concurrency <= 0 {
		return ErrSyncConcurrencyInvalid
	}
	if cfg.Sync.AsyncThreshold < 0 {
		return ErrSyncThresholdInvalid
	}
	if cfg.Sync.ChangesetTimeout < 0 {
		return ErrSyncTimeoutInvalid
	}
	if cfg.Sync.AsyncThreshold > 0 && (cfg.Sync.QueueSize <= 0 || cfg.Sync.Workers <= 0) {
		return ErrQueueSizeInvalid
	}
	if cfg.Fetch.MaxAttempts < 1 {
		return ErrFetchAttemptsInvalid
	}
	if cfg.Fetch.BaseDelay <= 0 || cfg.Fetch.MaxDelay < cfg.Fetch.BaseDelay {
		return ErrFetchDelayInvalid
	}
	if err := cfg.Source.validate(); err != nil {
		return err
	}
	if len(cfg.Content.Roots) == 0 {
		return ErrContentRootsRequired
	}
	for dir, kind := range cfg.Content.Roots {
		if !isSupportedKind(kind) {
			return fmt.Errorf("%w: %s=%s", ErrContentRootKindUnknown, dir, kind)
		}
	}
	switch normalize(cfg.Storage.Driver) {
	case "sqlite", "sqlite3", "postgres", "pg":
	default:
		return fmt.Errorf("%w: %s", ErrStorageDriverUnknown, cfg.Storage.Driver)
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		return ErrStorageDSNRequired
	}
	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return ErrCacheTTLRequiresEnabled
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		return ErrHTTPAddrRequired
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return ErrHTTPBodyLimitInvalid
	}
	return nil
}

func (s SourceConfig) validate() error {
	switch normalize(s.Driver) {
	case "fs":
		if strings.TrimSpace(s.Root) == "" {
			return fmt.Errorf("%w: root", ErrSourceLocationRequired)
		}
	case "git":
		if strings.TrimSpace(s.Repo) == "" {
			return fmt.Errorf("%w: repo", ErrSourceLocationRequired)
		}
	case "http":
		if !strings.Contains(s.URLTemplate, "{path}") {
			return fmt.Errorf("%w: url_template with {path}", ErrSourceLocationRequired)
		}
	default:
		return fmt.Errorf("%w: %s", ErrSourceDriverUnknown, s.Driver)
	}
	return nil
}

func (l LoggingConfig) validate() error {
	provider := normalize(l.Provider)
	switch provider {
	case "console", "gologger":
	default:
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, l.Provider)
	}
	if level := strings.TrimSpace(l.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		if format := strings.TrimSpace(l.Format); format != "" && !isSupportedFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedKind(kind string) bool {
	switch normalize(kind) {
	case "post", "author", "page":
		return true
	}
	return false
}

func isSupportedLevel(level string) bool {
	switch normalize(level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	}
	return false
}

func isSupportedFormat(format string) bool {
	switch normalize(format) {
	case "json", "console", "pretty":
		return true
	}
	return false
}
