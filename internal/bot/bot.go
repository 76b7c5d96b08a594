package bot

import (
	"context"
	"errors"
	"fmt"
	"meetscribe/internal/pipeline"
	"meetscribe/pkg/cache"
	"meetscribe/pkg/model"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

// Sender is the part of the telebot API used to deliver messages
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// StatusFunc lists the recordings and their artifact state
type StatusFunc func() ([]pipeline.FileStatus, error)

// QuotaReader returns the last known transcription quota
type QuotaReader interface {
	Last(ctx context.Context) (*cache.QuotaRecord, error)
}

// Bot posts batch reports to one chat and answers status queries from it
type Bot struct {
	tb     *tele.Bot
	sender Sender
	chatID int64
	status StatusFunc
	quota  QuotaReader
	log    *zap.Logger
}

func NewBot(token string, chatID int64, log *zap.Logger) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	tb, err := tele.NewBot(tele.Settings{
		Token: token,
		Poller: &tele.LongPoller{
			Timeout: 10 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := NewWithSender(tb, chatID, log)
	b.tb = tb
	b.log.Info("Bot created successfully", zap.Int64("chat_id", chatID))
	return b, nil
}

// NewWithSender builds a report-only bot around any sender
func NewWithSender(sender Sender, chatID int64, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{sender: sender, chatID: chatID, log: log}
}

func (b *Bot) Name() string {
	return "telegram"
}

// Publish posts the batch report to the configured chat
func (b *Bot) Publish(ctx context.Context, report *model.BatchReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := b.sender.Send(tele.ChatID(b.chatID), FormatReport(report)); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	b.log.Info("Batch report sent",
		zap.String("run_id", report.RunID),
		zap.Int64("chat_id", b.chatID))
	return nil
}

// Serve answers /status and /quota in the configured chat until Stop
func (b *Bot) Serve(status StatusFunc, quota QuotaReader) error {
	if b.tb == nil {
		return errors.New("serve requires a connected bot")
	}
	b.status = status
	b.quota = quota
	b.registerHandlers()

	b.log.Info("Bot started")
	b.tb.Start()
	return nil
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle("/status", b.handleStatus)
	b.tb.Handle("/quota", b.handleQuota)
}

func (b *Bot) Stop() {
	if b.tb != nil {
		b.tb.Stop()
		b.log.Info("Bot stopped")
	}
}
