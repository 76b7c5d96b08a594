package summarizer

import (
	"context"
	"errors"
	"fmt"
	"meetscribe/pkg/model"
	"meetscribe/pkg/resilience"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

type Options struct {
	// MaxTranscriptChars is the rune limit applied before prompting
	MaxTranscriptChars int
	Timeout            time.Duration
	BreakerFailures    uint32
	BreakerCooldown    time.Duration
}

// Summarizer turns transcripts into structured meeting summaries
type Summarizer struct {
	provider Provider
	opts     Options
	breaker  *resilience.CircuitBreaker
	log      *zap.Logger
}

func New(provider Provider, opts Options, log *zap.Logger) *Summarizer {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Summarizer{
		provider: provider,
		opts:     opts,
		breaker:  resilience.NewCircuitBreaker(opts.BreakerFailures, opts.BreakerCooldown),
		log:      log,
	}
}

// Provider returns the name of the configured provider
func (s *Summarizer) Provider() string {
	return s.provider.Name()
}

// Summarize renders the prompt from tmpl, sends one completion request and
// parses the response into sections. Every failure is a SummarizationError.
func (s *Summarizer) Summarize(ctx context.Context, transcript, tmpl string) (*model.SummaryResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, model.NewSummarizationError("summarize", ErrEmptyTranscript)
	}

	text, truncated := Truncate(transcript, s.opts.MaxTranscriptChars)
	if truncated {
		s.log.Warn("Transcript truncated before summarization",
			zap.Int("original_chars", utf8.RuneCountInString(transcript)),
			zap.Int("limit", s.opts.MaxTranscriptChars),
			zap.Int("kept_chars", utf8.RuneCountInString(text)))
	}

	prompt := RenderPrompt(tmpl, text)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	s.log.Info("Generating summary",
		zap.String("provider", s.provider.Name()),
		zap.Int("prompt_chars", utf8.RuneCountInString(prompt)))

	var completion *Completion
	err := s.breaker.Execute(func() error {
		c, err := s.provider.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		completion = c
		return nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, model.NewSummarizationError(s.provider.Name(), fmt.Errorf("provider unavailable: %w", err))
		}
		return nil, model.NewSummarizationError(s.provider.Name(), err)
	}

	res := Parse(completion.Text)
	res.Truncated = truncated
	res.Model = completion.Model
	res.InputTokens = completion.InputTokens
	res.OutputTokens = completion.OutputTokens

	if !res.Structured {
		s.log.Warn("Summary has no recognized sections, keeping raw text",
			zap.String("provider", s.provider.Name()))
	}

	s.log.Info("Summary generated",
		zap.String("model", res.Model),
		zap.Int("sections", len(res.Sections)),
		zap.Int("input_tokens", res.InputTokens),
		zap.Int("output_tokens", res.OutputTokens))

	return res, nil
}
