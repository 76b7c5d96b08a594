package cli

import (
	"context"
	"errors"
	"fmt"
	"meetscribe/internal/config"
	"meetscribe/pkg/logger"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrBatchFailed is returned when at least one recording ended failed
var ErrBatchFailed = errors.New("one or more recordings failed")

// App carries what every command needs once flags are parsed
type App struct {
	cfgPath string
	cfg     *config.Config
	log     *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "meetscribe",
		Short: "Transcribe and summarize meeting recordings",
		Long: "meetscribe picks up audio recordings, transcribes them with SpeechText.AI, " +
			"summarizes the transcript with a language model and writes both as PDF documents. " +
			"Without a subcommand it runs one batch.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.load,
		PersistentPostRun: app.close,
		RunE:              app.runBatch,
	}

	rootCmd.PersistentFlags().StringVar(&app.cfgPath, "config", config.DefaultPath, "path to the yaml config file")

	rootCmd.AddCommand(NewRunCmd(app))
	rootCmd.AddCommand(NewWatchCmd(app))
	rootCmd.AddCommand(NewStatusCmd(app))
	rootCmd.AddCommand(NewBotCmd(app))
	rootCmd.AddCommand(NewEventsCmd(app))
	rootCmd.AddCommand(NewLedgerCmd(app))

	return rootCmd
}

func (a *App) load(cmd *cobra.Command, args []string) error {
	cfg, err := config.Read(a.cfgPath)
	if err != nil {
		return err
	}

	log, err := logger.NewWithLevel(cfg.Debug, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func (a *App) close(cmd *cobra.Command, args []string) {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// Execute runs the CLI and returns the process exit code. SIGINT and
// SIGTERM cancel the running command.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	f := NewFormatter(os.Stderr)
	switch {
	case errors.Is(err, ErrBatchFailed):
		f.Warning(err.Error())
	case errors.Is(err, context.Canceled):
		f.Warning("interrupted")
	default:
		f.Error(err.Error())
	}
	return 1
}
