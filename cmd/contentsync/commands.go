package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	contentsync "github.com/goliatone/go-content-sync"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the store tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, _, err := openModule(cmd, &rootOptions{configPath: opts.configPath})
			if err != nil {
				return err
			}
			defer module.Close()
			if err := module.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var (
		revision string
		sequence int64
		upserts  []string
		deletes  []string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize an explicit list of paths at a revision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := make([]contentsync.ExplicitEntry, 0, len(upserts)+len(deletes))
			for _, p := range upserts {
				entries = append(entries, contentsync.ExplicitEntry{Path: p, Operation: "upsert"})
			}
			for _, p := range deletes {
				entries = append(entries, contentsync.ExplicitEntry{Path: p, Operation: "delete"})
			}

			module, _, err := openModule(cmd, opts)
			if err != nil {
				return err
			}
			defer module.Close()

			result, err := module.SyncPaths(cmd.Context(), contentsync.Revision{ID: revision, Seq: sequence}, entries, force)
			if err != nil {
				return err
			}
			return reportResult(cmd, result)
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "revision identifier the paths are read at")
	cmd.Flags().Int64Var(&sequence, "seq", 0, "ordering sequence of the revision")
	cmd.Flags().StringSliceVar(&upserts, "upsert", nil, "path to create or update (repeatable)")
	cmd.Flags().StringSliceVar(&deletes, "delete", nil, "path to delete (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "ignore revision ordering")
	_ = cmd.MarkFlagRequired("revision")
	return cmd
}

func newResyncCommand(opts *rootOptions) *cobra.Command {
	var revision string
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Re-read every content file and rewrite the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, _, err := openModule(cmd, opts)
			if err != nil {
				return err
			}
			defer module.Close()

			result, err := module.Resync(cmd.Context(), revision)
			if err != nil {
				return err
			}
			return reportResult(cmd, result)
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "revision to read (defaults to HEAD or the working tree)")
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notification endpoint and drain deferred changesets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, cfg, err := openModule(cmd, opts)
			if err != nil {
				return err
			}
			defer module.Close()

			mux := http.NewServeMux()
			if err := module.Register(mux); err != nil {
				return err
			}
			server := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			group.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			if worker := module.Worker(); worker != nil {
				for i := 0; i < cfg.Sync.Workers; i++ {
					group.Go(func() error {
						if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
							return err
						}
						return nil
					})
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s%s\n", cfg.HTTP.Addr, cfg.HTTP.Path)
			return group.Wait()
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the fs source root and sync changes as they happen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, _, err := openModule(cmd, opts)
			if err != nil {
				return err
			}
			defer module.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return module.Watch(ctx)
		},
	}
}

func newLedgerCommand(opts *rootOptions) *cobra.Command {
	var (
		filter  contentsync.LedgerFilter
		outcome string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List recent ledger entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, _, err := openModule(cmd, opts)
			if err != nil {
				return err
			}
			defer module.Close()

			filter.Outcome = contentsync.LedgerOutcome(outcome)
			entries, total, err := module.Ledger(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"total": total, "entries": entries})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tOPERATION\tPATH\tREVISION\tOUTCOME\tDETAIL")
			for _, entry := range entries {
				detail := entry.Reason
				if entry.ErrorCode != "" {
					detail = entry.ErrorCode + ": " + entry.ErrorDetail
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.CreatedAt.Format(time.RFC3339),
					entry.Operation,
					entry.SourcePath,
					entry.Revision,
					entry.Outcome,
					detail,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(entries), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.ChangesetID, "changeset", "", "only entries of this changeset")
	cmd.Flags().StringVar(&filter.SourcePath, "path", "", "only entries for this path")
	cmd.Flags().StringVar(&filter.Revision, "revision", "", "only entries at this revision")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only entries with this outcome: success, error or skipped")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum entries to print")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
