package cli

import (
	"errors"
	"meetscribe/internal/storage"

	"github.com/spf13/cobra"
)

func NewLedgerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or reset the Postgres run ledger",
	}

	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent batch runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is not set")
			}

			db, err := storage.NewPostgresStorage(cmd.Context(), app.cfg.Postgres.DSN, app.log)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Runs(runs)
			return nil
		},
	}
	runsCmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")

	var confirm bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all recorded runs and recreate the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is not set")
			}
			if !confirm {
				return errors.New("refusing to drop the run ledger without --yes")
			}

			if err := storage.ResetMigrations(app.cfg.Postgres.DSN, app.log); err != nil {
				return err
			}
			NewFormatter(cmd.OutOrStdout()).Success("Run ledger reset")
			return nil
		},
	}
	resetCmd.Flags().BoolVar(&confirm, "yes", false, "confirm dropping every recorded run")

	cmd.AddCommand(runsCmd, resetCmd)
	return cmd
}
