package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"meetscribe/internal/pipeline"
	"meetscribe/internal/queue"
	"meetscribe/internal/storage"
	"meetscribe/pkg/cache"
	"meetscribe/pkg/model"
	"strings"
	"time"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

// Report prints the final report of a batch run
func (f *Formatter) Report(r *model.BatchReport) {
	processed, alreadyDone, failed := r.Counts()

	if len(r.Outcomes) == 0 {
		f.Info("No recordings found")
	}

	for _, o := range r.Outcomes {
		name := o.Recording.BaseName
		switch {
		case o.State == model.StateFailed:
			var text string
			if o.ErrorText != nil {
				text = *o.ErrorText
			}
			fmt.Fprintf(f.w, "❌ %s failed at %s: %s\n", name, o.FailedStage, text)
		case o.AlreadyDone:
			fmt.Fprintf(f.w, "⏭️  %s already processed\n", name)
		default:
			fmt.Fprintf(f.w, "✅ %s: %s\n", name, strings.Join(o.Written, ", "))
		}
	}

	fmt.Fprintf(f.w, "\n📊 Processed: %d | Already done: %d | Failed: %d", processed, alreadyDone, failed)
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(f.w, " | Took %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}
	fmt.Fprintln(f.w)

	if r.RemainingQuota != nil {
		fmt.Fprintf(f.w, "⏱️  Remaining transcription quota: %.1f minutes\n", *r.RemainingQuota/60)
	}
}

// StatusList prints the artifact state of every recording
func (f *Formatter) StatusList(statuses []pipeline.FileStatus) {
	if len(statuses) == 0 {
		f.Info("No recordings found")
		return
	}

	fmt.Fprintf(f.w, "📁 Recordings:\n\n")
	pending := 0
	for _, s := range statuses {
		icon := "✅"
		if s.Pending() {
			icon = "⏳"
			pending++
		}
		c := s.Completion
		fmt.Fprintf(f.w, "  %s %s  [text %s] [transcript %s] [summary %s]  %s\n",
			icon, s.Name, check(c.FullText), check(c.TranscriptPDF), check(c.SummaryPDF), s.Location)
	}
	fmt.Fprintf(f.w, "\n%d of %d pending\n", pending, len(statuses))
}

// Quota prints the last cached quota
func (f *Formatter) Quota(rec *cache.QuotaRecord) {
	fmt.Fprintf(f.w, "⏱️  Last known %s quota: %.1f minutes (reported %s)\n",
		rec.Provider, rec.RemainingSeconds/60, rec.ReportedAt.Local().Format("2006-01-02 15:04"))
}

// Runs prints ledger rows, newest first
func (f *Formatter) Runs(runs []storage.RunRecord) {
	if len(runs) == 0 {
		f.Info("No runs recorded")
		return
	}

	fmt.Fprintf(f.w, "🗂️  Recent runs:\n\n")
	for _, r := range runs {
		fmt.Fprintf(f.w, "  %s  %s  processed %d, already done %d, failed %d\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			shortID(r.ID),
			r.Processed, r.AlreadyDone, r.Failed)
	}
}

// Event prints one message from the run events exchange
func (f *Formatter) Event(body []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	switch head.Type {
	case queue.EventOutcome:
		var ev queue.OutcomeEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("failed to decode outcome event: %w", err)
		}
		switch {
		case ev.State == string(model.StateFailed):
			fmt.Fprintf(f.w, "❌ [%s] %s failed at %s (%s)\n", shortID(ev.RunID), ev.File, ev.FailedStage, ev.ErrorKind)
		case ev.AlreadyDone:
			fmt.Fprintf(f.w, "⏭️  [%s] %s already processed\n", shortID(ev.RunID), ev.File)
		default:
			fmt.Fprintf(f.w, "✅ [%s] %s complete\n", shortID(ev.RunID), ev.File)
		}
	case queue.EventBatchEnd:
		var ev queue.BatchEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("failed to decode batch event: %w", err)
		}
		fmt.Fprintf(f.w, "📊 [%s] batch finished: processed %d, already done %d, failed %d\n",
			shortID(ev.RunID), ev.Processed, ev.AlreadyDone, ev.Failed)
	default:
		fmt.Fprintf(f.w, "ℹ️  %s\n", strings.TrimSpace(string(body)))
	}
	return nil
}

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "·"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
