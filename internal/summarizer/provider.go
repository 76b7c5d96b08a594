package summarizer

import (
	"context"
	"errors"
)

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrEmptyResponse   = errors.New("empty response from provider")
	ErrRateLimited     = errors.New("rate limited by provider")
)

// Completion is the text returned by a provider for one prompt
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider sends a single prompt to a language model
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (*Completion, error)
}
