package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kubecmdb/internal/adapter"
	"kubecmdb/internal/domain"
	"kubecmdb/internal/reconcile"
)

func newSyncCmd() *cobra.Command {
	var (
		dryRun  bool
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one collection and reconciliation cycle and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gateway, err := newGateway(cfg)
			if err != nil {
				return err
			}
			collection, err := adapter.NewKubernetesAdapter(gateway, cfg.Source, adapter.AdapterTypeOneShot).Sync(ctx)
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")

			if dryRun {
				counts := make(map[domain.Category]int, len(domain.Categories))
				for _, c := range domain.Categories {
					counts[c] = len(collection.Records[c])
				}
				return out.Encode(map[string]any{"source": collection.Source, "records": counts})
			}

			repo, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			report, err := reconcile.NewController(repo, repo, controllerOptions(cfg)).Run(ctx, collection, time.Now())
			if err != nil {
				return err
			}
			if summary {
				return out.Encode(report.Summary())
			}
			if err := out.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "collect and normalize only; print record counts")
	cmd.Flags().BoolVar(&summary, "summary", false, "print only the success/failure totals")
	return cmd
}
