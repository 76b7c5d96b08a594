package bot

import (
	"context"
	"errors"
	"meetscribe/internal/artifact"
	"meetscribe/internal/pipeline"
	"meetscribe/pkg/cache"
	"meetscribe/pkg/model"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	args := m.Called(to, what)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tele.Message), args.Error(1)
}

func sampleReport() *model.BatchReport {
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	quota := 1830.0

	ok := model.NewOutcome(model.InputRecording{BaseName: "standup"})
	ok.SetCompleted()
	old := model.NewOutcome(model.InputRecording{BaseName: "kickoff"})
	old.AlreadyDone = true
	old.SetCompleted()
	bad := model.NewOutcome(model.InputRecording{BaseName: "retro"})
	bad.SetFailed(model.StageSummarization, model.NewSummarizationError("summarize", errors.New("rate limited")))

	return &model.BatchReport{
		RunID:          "3f2a9c1e-0000-4000-8000-000000000000",
		StartedAt:      start,
		FinishedAt:     start.Add(3*time.Minute + 12*time.Second),
		Outcomes:       []*model.Outcome{ok, old, bad},
		RemainingQuota: &quota,
	}
}

func TestFormatReport(t *testing.T) {
	text := FormatReport(sampleReport())

	assert.Contains(t, text, "Meeting batch finished (run 3f2a9c1e)")
	assert.Contains(t, text, "Processed: 1 | Already done: 1 | Failed: 1")
	assert.Contains(t, text, "Duration: 3m12s")
	assert.Contains(t, text, "Completed:\n• standup")
	assert.NotContains(t, text, "• kickoff")
	assert.Contains(t, text, "• retro: summarization (SummarizationError)")
	assert.Contains(t, text, "Remaining transcription quota: 30.5 minutes")
}

func TestFormatReport_Clipped(t *testing.T) {
	r := &model.BatchReport{RunID: "r"}
	for i := 0; i < 500; i++ {
		o := model.NewOutcome(model.InputRecording{BaseName: strings.Repeat("x", 20)})
		o.SetCompleted()
		r.Outcomes = append(r.Outcomes, o)
	}

	text := FormatReport(r)
	assert.LessOrEqual(t, len([]rune(text)), maxMessageLen)
	assert.True(t, strings.HasSuffix(text, "…"))
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "No recordings found", FormatStatus(nil))

	text := FormatStatus([]pipeline.FileStatus{
		{Name: "a.webm", Completion: artifact.Completion{FullText: true, TranscriptPDF: true, SummaryPDF: true}},
		{Name: "b.webm", Completion: artifact.Completion{FullText: true}},
	})
	assert.Contains(t, text, "✅ a.webm  text:yes pdf:yes summary:yes")
	assert.Contains(t, text, "⏳ b.webm  text:yes pdf:no summary:no")
	assert.Contains(t, text, "1 of 2 pending")
}

func TestFormatQuota(t *testing.T) {
	text := FormatQuota(&cache.QuotaRecord{
		Provider:         "speechtext",
		RemainingSeconds: 600,
		ReportedAt:       time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
	})
	assert.Equal(t, "Remaining speechtext quota: 10.0 minutes (reported 2026-10-01 09:30)", text)
}

func TestPublish(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", tele.ChatID(42), mock.AnythingOfType("string")).Return(&tele.Message{}, nil).Once()

	b := NewWithSender(sender, 42, nil)
	require.NoError(t, b.Publish(context.Background(), sampleReport()))
	sender.AssertExpectations(t)
}

func TestPublish_Errors(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("chat not found")).Once()

	b := NewWithSender(sender, 42, nil)
	err := b.Publish(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Publish(ctx, sampleReport()), context.Canceled)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestNewBot_Validation(t *testing.T) {
	_, err := NewBot("", 1, nil)
	assert.Error(t, err)
	_, err = NewBot("token", 0, nil)
	assert.Error(t, err)
}
