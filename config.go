package contentsync

import "github.com/goliatone/go-content-sync/internal/runtimeconfig"

var (
	ErrSyncConcurrencyInvalid = runtimeconfig.ErrSyncConcurrencyInvalid
	ErrSyncThresholdInvalid   = runtimeconfig.ErrSyncThresholdInvalid
	ErrQueueSizeInvalid       = runtimeconfig.ErrQueueSizeInvalid
	ErrSourceDriverUnknown    = runtimeconfig.ErrSourceDriverUnknown
	ErrSourceLocationRequired = runtimeconfig.ErrSourceLocationRequired
	ErrContentRootsRequired   = runtimeconfig.ErrContentRootsRequired
	ErrStorageDriverUnknown   = runtimeconfig.ErrStorageDriverUnknown
	ErrLoggingProviderUnknown = runtimeconfig.ErrLoggingProviderUnknown
)

type (
	Config        = runtimeconfig.Config
	SyncConfig    = runtimeconfig.SyncConfig
	FetchConfig   = runtimeconfig.FetchConfig
	SourceConfig  = runtimeconfig.SourceConfig
	ContentConfig = runtimeconfig.ContentConfig
	StorageConfig = runtimeconfig.StorageConfig
	CacheConfig   = runtimeconfig.CacheConfig
	LoggingConfig = runtimeconfig.LoggingConfig
	HTTPConfig    = runtimeconfig.HTTPConfig
)

// DefaultConfig returns defaults suitable for a local checkout.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
