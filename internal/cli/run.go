package cli

import (
	"context"
	"meetscribe/internal/pipeline"
	"os"

	"github.com/spf13/cobra"
)

func NewRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every pending recording once",
		Args:  cobra.NoArgs,
		RunE:  app.runBatch,
	}
}

func NewWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Process pending recordings, then again whenever new ones arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			orch, cl, err := app.newOrchestrator(ctx)
			if err != nil {
				return err
			}
			defer cl.Close()

			if err := os.MkdirAll(app.cfg.Pipeline.SourceDir, 0o755); err != nil {
				return err
			}

			out := NewFormatter(cmd.OutOrStdout())
			return pipeline.Watch(ctx, app.cfg.Pipeline.SourceDir, app.cfg.Pipeline.Extensions,
				app.cfg.Watch.Debounce, app.log.Named("watch"),
				func(ctx context.Context) error {
					report, err := orch.Run(ctx)
					if report != nil {
						out.Report(report)
					}
					return err
				})
		},
	}
}

// runBatch is the default command: one batch over the configured directories
func (a *App) runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	orch, cl, err := a.newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	report, err := orch.Run(ctx)
	if report != nil {
		NewFormatter(cmd.OutOrStdout()).Report(report)
	}
	if err != nil {
		return err
	}
	if !report.OK() {
		return ErrBatchFailed
	}
	return nil
}
