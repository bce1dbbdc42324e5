package runtimeconfig_test

import (
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-content-sync/internal/runtimeconfig"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := runtimeconfig.DefaultConfig().Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*runtimeconfig.Config)
		want   error
	}{
		{
			name:   "concurrency",
			mutate: func(c *runtimeconfig.Config) { c.Sync.Concurrency = 0 },
			want:   runtimeconfig.ErrSyncConcurrencyInvalid,
		},
		{
			name:   "queue required when async enabled",
			mutate: func(c *runtimeconfig.Config) { c.Sync.QueueSize = 0 },
			want:   runtimeconfig.ErrQueueSizeInvalid,
		},
		{
			name: "queue ignored when async disabled",
			mutate: func(c *runtimeconfig.Config) {
				c.Sync.AsyncThreshold = 0
				c.Sync.QueueSize = 0
			},
		},
		{
			name:   "fetch attempts",
			mutate: func(c *runtimeconfig.Config) { c.Fetch.MaxAttempts = 0 },
			want:   runtimeconfig.ErrFetchAttemptsInvalid,
		},
		{
			name:   "fetch delays",
			mutate: func(c *runtimeconfig.Config) { c.Fetch.MaxDelay = time.Millisecond },
			want:   runtimeconfig.ErrFetchDelayInvalid,
		},
		{
			name:   "source driver",
			mutate: func(c *runtimeconfig.Config) { c.Source.Driver = "svn" },
			want:   runtimeconfig.ErrSourceDriverUnknown,
		},
		{
			name: "git repo required",
			mutate: func(c *runtimeconfig.Config) {
				c.Source.Driver = "git"
				c.Source.Repo = ""
			},
			want: runtimeconfig.ErrSourceLocationRequired,
		},
		{
			name: "http template needs path",
			mutate: func(c *runtimeconfig.Config) {
				c.Source.Driver = "http"
				c.Source.URLTemplate = "https://raw.example.com/{revision}"
			},
			want: runtimeconfig.ErrSourceLocationRequired,
		},
		{
			name:   "content root kind",
			mutate: func(c *runtimeconfig.Config) { c.Content.Roots["docs"] = "manual" },
			want:   runtimeconfig.ErrContentRootKindUnknown,
		},
		{
			name:   "storage driver",
			mutate: func(c *runtimeconfig.Config) { c.Storage.Driver = "mysql" },
			want:   runtimeconfig.ErrStorageDriverUnknown,
		},
		{
			name:   "logging provider",
			mutate: func(c *runtimeconfig.Config) { c.Logging.Provider = "syslog" },
			want:   runtimeconfig.ErrLoggingProviderUnknown,
		},
		{
			name: "logging format",
			mutate: func(c *runtimeconfig.Config) {
				c.Logging.Provider = "gologger"
				c.Logging.Format = "xml"
			},
			want: runtimeconfig.ErrLoggingFormatInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := runtimeconfig.DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tc.want)
			}
		})
	}
}
