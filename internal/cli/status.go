package cli

import (
	"context"
	"errors"
	"meetscribe/internal/pipeline"
	"meetscribe/internal/storage"
	"meetscribe/pkg/cache"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const lookupTimeout = 10 * time.Second

func NewStatusCmd(app *App) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which recordings still have work pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewFormatter(cmd.OutOrStdout())

			store, err := app.newStore()
			if err != nil {
				return err
			}

			statuses, err := pipeline.Status(app.cfg.Pipeline.SourceDir, store, app.cfg.Pipeline.Extensions)
			if err != nil {
				return err
			}
			out.StatusList(statuses)

			ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
			defer cancel()

			app.printQuota(ctx, out)
			if runs > 0 {
				app.printRuns(ctx, out, runs)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "number of recent runs to list from the ledger (0 disables)")
	return cmd
}

func (a *App) printQuota(ctx context.Context, out *Formatter) {
	quota, closeFn, err := a.newQuotaStore()
	if err != nil {
		a.log.Warn("Quota cache unavailable", zap.Error(err))
		return
	}
	if quota == nil {
		return
	}
	defer closeFn()

	rec, err := quota.Last(ctx)
	if errors.Is(err, cache.ErrNotFound) {
		return
	}
	if err != nil {
		a.log.Warn("Failed to read cached quota", zap.Error(err))
		return
	}
	out.Quota(rec)
}

func (a *App) printRuns(ctx context.Context, out *Formatter, limit int) {
	if a.cfg.Postgres.DSN == "" {
		return
	}

	db, err := storage.NewPostgresStorage(ctx, a.cfg.Postgres.DSN, a.log)
	if err != nil {
		a.log.Warn("Run ledger unavailable", zap.Error(err))
		return
	}
	defer db.Close()

	runs, err := db.RecentRuns(ctx, limit)
	if err != nil {
		a.log.Warn("Failed to read run ledger", zap.Error(err))
		return
	}
	out.Runs(runs)
}
