package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

const (
	rootModule     = "contentsync"
	syncModule     = "contentsync.sync"
	fetchModule    = "contentsync.fetch"
	storeModule    = "contentsync.store"
	ledgerModule   = "contentsync.ledger"
	webhookModule  = "contentsync.webhook"
	watcherModule  = "contentsync.watch"
	commandsModule = "contentsync.commands"
)

const (
	fieldChangeset = "changeset_id"
	fieldRevision  = "revision"
	fieldPath      = "path"
	fieldOperation = "operation"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The module identifier is
// attached as a structured field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// SyncLogger returns the logger used by the orchestrator and its worker.
func SyncLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, syncModule)
}

// FetchLogger returns the logger used by document sources and the fetcher.
func FetchLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, fetchModule)
}

// StoreLogger returns the logger used by the relational store.
func StoreLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, storeModule)
}

// LedgerLogger returns the logger used by ledger implementations.
func LedgerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, ledgerModule)
}

// WebhookLogger returns the logger used by the notification endpoint.
func WebhookLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, webhookModule)
}

// WatcherLogger returns the logger used by the filesystem watcher.
func WatcherLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, watcherModule)
}

// CommandsLogger returns the logger used by command handlers.
func CommandsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, commandsModule)
}

// WithEntryContext enriches the logger with the changeset, revision, path and
// operation of the entry being processed. Empty values are ignored.
func WithEntryContext(logger interfaces.Logger, changesetID, revision, path, operation string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(changesetID); trimmed != "" {
		fields[fieldChangeset] = trimmed
	}
	if trimmed := strings.TrimSpace(revision); trimmed != "" {
		fields[fieldRevision] = trimmed
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		fields[fieldPath] = trimmed
	}
	if trimmed := strings.TrimSpace(operation); trimmed != "" {
		fields[fieldOperation] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
