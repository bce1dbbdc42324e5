package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	contentsync "github.com/goliatone/go-content-sync"
	"github.com/goliatone/go-content-sync/internal/runtimeconfig"
	"github.com/goliatone/go-content-sync/internal/watch"
)

// syncModule is the slice of contentsync.Module the commands drive.
type syncModule interface {
	Migrate(ctx context.Context) error
	SyncPaths(ctx context.Context, rev contentsync.Revision, entries []contentsync.ExplicitEntry, force bool) (*contentsync.Result, error)
	Resync(ctx context.Context, revision string) (*contentsync.Result, error)
	Register(mux *http.ServeMux) error
	Worker(opts ...contentsync.WorkerOption) *contentsync.Worker
	Watch(ctx context.Context, opts ...watch.Option) error
	Ledger(ctx context.Context, filter contentsync.LedgerFilter) ([]contentsync.LedgerEntry, int, error)
	Close() error
}

var moduleBuilder = func(cfg runtimeconfig.Config) (syncModule, error) {
	return contentsync.New(cfg)
}

type rootOptions struct {
	configPath  string
	autoMigrate bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "contentsync",
		Short:         "Synchronize front-matter documents into a relational store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (yaml, toml or json); defaults to ./contentsync.*")
	flags.BoolVar(&opts.autoMigrate, "migrate", true, "create missing tables before running")
	flags.String("source-driver", "", "document source driver: fs, git or http")
	flags.String("source-root", "", "content directory for the fs source")
	flags.String("source-repo", "", "repository path for the git source")
	flags.String("storage-driver", "", "storage driver: sqlite or postgres")
	flags.String("storage-dsn", "", "storage connection string")
	flags.String("log-level", "", "log level")
	flags.String("log-provider", "", "logging provider: console or gologger")
	flags.String("log-file", "", "rotate console logs into this file")
	flags.String("http-addr", "", "listen address for serve")

	root.AddCommand(
		newMigrateCommand(opts),
		newSyncCommand(opts),
		newResyncCommand(opts),
		newServeCommand(opts),
		newWatchCommand(opts),
		newLedgerCommand(opts),
	)
	return root
}

// openModule loads configuration for cmd and builds the module.
func openModule(cmd *cobra.Command, opts *rootOptions) (syncModule, runtimeconfig.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, runtimeconfig.Config{}, err
	}
	cfg, err := loadConfig(v, opts.configPath)
	if err != nil {
		return nil, runtimeconfig.Config{}, err
	}
	module, err := moduleBuilder(cfg)
	if err != nil {
		return nil, runtimeconfig.Config{}, fmt.Errorf("initialise module: %w", err)
	}
	if opts.autoMigrate {
		if err := module.Migrate(cmd.Context()); err != nil {
			_ = module.Close()
			return nil, runtimeconfig.Config{}, fmt.Errorf("migrate: %w", err)
		}
	}
	return module, cfg, nil
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// reportResult prints result and turns failed entries into a non-zero exit.
func reportResult(cmd *cobra.Command, result *contentsync.Result) error {
	if result == nil {
		return nil
	}
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d entries failed", result.Failed, result.Total)
	}
	return nil
}
