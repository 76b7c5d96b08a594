package cli

import (
	"errors"
	"meetscribe/internal/bot"
	"meetscribe/internal/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewBotCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Answer /status and /quota in the configured Telegram chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tg := app.cfg.Telegram
			if tg.Token == "" || tg.ChatID == 0 {
				return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
			}

			store, err := app.newStore()
			if err != nil {
				return err
			}

			b, err := bot.NewBot(tg.Token, tg.ChatID, app.log.Named("bot"))
			if err != nil {
				return err
			}

			var quota bot.QuotaReader
			if q, closeFn, err := app.newQuotaStore(); err != nil {
				app.log.Warn("Quota cache unavailable", zap.Error(err))
			} else if q != nil {
				defer closeFn()
				quota = q
			}

			go func() {
				<-cmd.Context().Done()
				b.Stop()
			}()

			status := func() ([]pipeline.FileStatus, error) {
				return pipeline.Status(app.cfg.Pipeline.SourceDir, store, app.cfg.Pipeline.Extensions)
			}
			return b.Serve(status, quota)
		},
	}
}
