package bot

import (
	"context"
	"errors"
	"fmt"
	"meetscribe/internal/pipeline"
	"meetscribe/pkg/cache"
	"meetscribe/pkg/model"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

// Telegram rejects longer messages
const maxMessageLen = 4096

const quotaTimeout = 5 * time.Second

// authorized drops updates from chats other than the configured one
func (b *Bot) authorized(c tele.Context) bool {
	if c.Chat() == nil || c.Chat().ID != b.chatID {
		if c.Chat() != nil {
			b.log.Info("Ignoring command from unknown chat", zap.Int64("chat_id", c.Chat().ID))
		}
		return false
	}
	return true
}

func (b *Bot) handleStart(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}
	return c.Send("Batch reports are posted here.\n/status lists recordings\n/quota shows the transcription quota")
}

func (b *Bot) handleStatus(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}

	statuses, err := b.status()
	if err != nil {
		b.log.Error("Failed to read status", zap.Error(err))
		return c.Send("Failed to read status: " + err.Error())
	}
	return c.Send(FormatStatus(statuses))
}

func (b *Bot) handleQuota(c tele.Context) error {
	if !b.authorized(c) {
		return nil
	}
	if b.quota == nil {
		return c.Send("Quota cache is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), quotaTimeout)
	defer cancel()

	rec, err := b.quota.Last(ctx)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return c.Send("No quota reported yet")
		}
		b.log.Error("Failed to read quota", zap.Error(err))
		return c.Send("Failed to read quota")
	}
	return c.Send(FormatQuota(rec))
}

// FormatReport renders a batch report as a chat message
func FormatReport(r *model.BatchReport) string {
	processed, alreadyDone, failed := r.Counts()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Meeting batch finished (run %s)\n", shortID(r.RunID))
	fmt.Fprintf(&sb, "Processed: %d | Already done: %d | Failed: %d\n", processed, alreadyDone, failed)
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}

	var done []string
	for _, o := range r.Outcomes {
		if o.Succeeded() && !o.AlreadyDone {
			done = append(done, o.Recording.BaseName)
		}
	}
	if len(done) > 0 {
		sb.WriteString("\nCompleted:\n")
		for _, name := range done {
			fmt.Fprintf(&sb, "• %s\n", name)
		}
	}

	if fails := r.Failed(); len(fails) > 0 {
		sb.WriteString("\nFailed:\n")
		for _, o := range fails {
			fmt.Fprintf(&sb, "• %s: %s (%s)\n", o.Recording.BaseName, o.FailedStage, o.ErrorKind)
		}
	}

	if r.RemainingQuota != nil {
		fmt.Fprintf(&sb, "\nRemaining transcription quota: %.1f minutes\n", *r.RemainingQuota/60)
	}

	return clip(strings.TrimRight(sb.String(), "\n"))
}

// FormatStatus renders the per-file artifact state
func FormatStatus(statuses []pipeline.FileStatus) string {
	if len(statuses) == 0 {
		return "No recordings found"
	}

	var pending int
	var sb strings.Builder
	for _, s := range statuses {
		mark := "✅"
		if s.Pending() {
			mark = "⏳"
			pending++
		}
		c := s.Completion
		fmt.Fprintf(&sb, "%s %s  text:%s pdf:%s summary:%s\n",
			mark, s.Name, yesNo(c.FullText), yesNo(c.TranscriptPDF), yesNo(c.SummaryPDF))
	}
	fmt.Fprintf(&sb, "\n%d of %d pending", pending, len(statuses))

	return clip(sb.String())
}

// FormatQuota renders a cached quota record
func FormatQuota(rec *cache.QuotaRecord) string {
	return fmt.Sprintf("Remaining %s quota: %.1f minutes (reported %s)",
		rec.Provider, rec.RemainingSeconds/60, rec.ReportedAt.Format("2006-01-02 15:04"))
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLen {
		return s
	}
	return string(r[:maxMessageLen-1]) + "…"
}
