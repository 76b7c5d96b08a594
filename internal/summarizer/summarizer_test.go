package summarizer

import (
	"context"
	"errors"
	"meetscribe/pkg/model"
	"meetscribe/pkg/resilience"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, prompt string) (*Completion, error) {
	args := m.Called(ctx, prompt)
	if c := args.Get(0); c != nil {
		return c.(*Completion), args.Error(1)
	}
	return nil, args.Error(1)
}

const structuredResponse = `Here is your summary.

**EXECUTIVE SUMMARY**
The team reviewed the release.

**KEY DECISIONS MADE**
- Ship on Friday

**ACTION ITEMS**
- Update runbook (Owner: Dana)
`

func TestSummarize_Success(t *testing.T) {
	p := new(MockProvider)
	p.On("Complete", mock.Anything, "Summarize:\nhello team").
		Return(&Completion{Text: structuredResponse, Model: "m-1", InputTokens: 10, OutputTokens: 20}, nil)

	s := New(p, Options{MaxTranscriptChars: 1000}, nil)
	res, err := s.Summarize(context.Background(), "hello team", "Summarize:\n{transcript}")
	require.NoError(t, err)

	assert.True(t, res.Structured)
	assert.False(t, res.Truncated)
	assert.Equal(t, "m-1", res.Model)
	assert.Equal(t, 10, res.InputTokens)
	assert.Len(t, res.Sections, 3)
	assert.Equal(t, "Here is your summary.", res.Unstructured)
	p.AssertExpectations(t)
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	p := new(MockProvider)
	s := New(p, Options{}, nil)

	_, err := s.Summarize(context.Background(), "  \n ", DefaultTemplate)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindSummarization))
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	p.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestSummarize_Truncates(t *testing.T) {
	transcript := strings.Repeat("word ", 100)

	p := new(MockProvider)
	p.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return len([]rune(prompt)) <= 50
	})).Return(&Completion{Text: "plain text"}, nil)

	s := New(p, Options{MaxTranscriptChars: 50}, nil)
	res, err := s.Summarize(context.Background(), transcript, "{transcript}")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.False(t, res.Structured)
	assert.Equal(t, "plain text", res.Unstructured)
	p.AssertExpectations(t)
}

func TestSummarize_ProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rate limited", ErrRateLimited},
		{"empty", ErrEmptyResponse},
		{"network", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockProvider)
			p.On("Complete", mock.Anything, mock.Anything).Return(nil, tt.err)

			_, err := New(p, Options{}, nil).Summarize(context.Background(), "text", DefaultTemplate)
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.KindSummarization))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSummarize_BreakerOpens(t *testing.T) {
	p := new(MockProvider)
	p.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Times(2)

	s := New(p, Options{BreakerFailures: 2, BreakerCooldown: time.Hour}, nil)
	for i := 0; i < 2; i++ {
		_, err := s.Summarize(context.Background(), "text", "{transcript}")
		require.Error(t, err)
	}

	_, err := s.Summarize(context.Background(), "text", "{transcript}")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindSummarization))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	p.AssertNumberOfCalls(t, "Complete", 2)
}

func TestSummarize_PermanentErrorsDoNotTripBreaker(t *testing.T) {
	p := new(MockProvider)
	p.On("Complete", mock.Anything, mock.Anything).Return(nil, resilience.Permanent(errors.New("HTTP 400")))

	s := New(p, Options{BreakerFailures: 1, BreakerCooldown: time.Hour}, nil)
	for i := 0; i < 3; i++ {
		_, err := s.Summarize(context.Background(), "text", "{transcript}")
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	p.AssertNumberOfCalls(t, "Complete", 3)
}

func TestTruncate(t *testing.T) {
	out, cut := Truncate("short", 10)
	assert.False(t, cut)
	assert.Equal(t, "short", out)

	out, cut = Truncate("alpha beta gamma", 12)
	assert.True(t, cut)
	assert.Equal(t, "alpha beta", out)

	out, cut = Truncate("ééééé ééé", 7)
	assert.True(t, cut)
	assert.Equal(t, "ééééé", out)

	out, cut = Truncate("nospaceshere", 4)
	assert.True(t, cut)
	assert.Equal(t, "nosp", out)
}

func TestRenderPrompt(t *testing.T) {
	assert.Equal(t, "A x B x", RenderPrompt("A {transcript} B {transcript}", "x"))
	assert.Equal(t, "Summarize.\n\nTRANSCRIPT:\nbody", RenderPrompt("Summarize.\n", "body"))
	assert.Equal(t, "Summarize.\nTRANSCRIPT:\nbody", RenderPrompt("Summarize.\nTRANSCRIPT:\n\n", "body"))
	assert.True(t, strings.HasSuffix(RenderPrompt(DefaultTemplate, "hello"), "TRANSCRIPT:\nhello"))
}
