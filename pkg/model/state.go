package model

import (
	"time"
)

// State represents where a recording is in the pipeline
type State string

const (
	StateDiscovered           State = "discovered"
	StateRelocated            State = "relocated"
	StateTranscriptionPending State = "transcription_pending"
	StateTranscriptionSkipped State = "transcription_skipped"
	StateSummarizationPending State = "summarization_pending"
	StateSummarizationSkipped State = "summarization_skipped"
	StateRendered             State = "rendered"
	StateComplete             State = "complete"
	StateFailed               State = "failed"
)

// Stage names a pipeline step a recording can fail at
type Stage string

const (
	StageDiscovery     Stage = "discovery"
	StageRelocation    Stage = "relocation"
	StageTranscription Stage = "transcription"
	StageSummarization Stage = "summarization"
	StageRendering     Stage = "rendering"
	StagePersistence   Stage = "persistence"
)

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

// Outcome is the per-file result of one batch run
type Outcome struct {
	Recording      InputRecording `json:"recording"`
	State          State          `json:"state"`
	FailedStage    Stage          `json:"failed_stage,omitempty"`
	ErrorKind      ErrorKind      `json:"error_kind,omitempty"`
	ErrorText      *string        `json:"error_text,omitempty"`
	AlreadyDone    bool           `json:"already_done"`
	Transitions    []State        `json:"transitions"`
	Written        []string       `json:"written,omitempty"`
	InputTokens    int            `json:"input_tokens,omitempty"`
	OutputTokens   int            `json:"output_tokens,omitempty"`
	RemainingQuota *float64       `json:"remaining_quota,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// NewOutcome starts tracking a discovered recording
func NewOutcome(rec InputRecording) *Outcome {
	return &Outcome{
		Recording:   rec,
		State:       StateDiscovered,
		Transitions: []State{StateDiscovered},
		StartedAt:   time.Now(),
	}
}

// Transition moves the outcome to the next state. Terminal states are sticky.
func (o *Outcome) Transition(next State) bool {
	if o.State.IsTerminal() {
		return false
	}
	o.State = next
	o.Transitions = append(o.Transitions, next)
	if next.IsTerminal() {
		o.FinishedAt = time.Now()
	}
	return true
}

// SetFailed marks the outcome failed at the given stage
func (o *Outcome) SetFailed(stage Stage, err error) bool {
	if !o.Transition(StateFailed) {
		return false
	}
	o.FailedStage = stage
	o.ErrorKind = KindOf(err)
	if err != nil {
		text := err.Error()
		o.ErrorText = &text
	}
	return true
}

// SetCompleted marks the outcome complete
func (o *Outcome) SetCompleted() bool {
	return o.Transition(StateComplete)
}

// Succeeded returns true if the file finished without failure
func (o *Outcome) Succeeded() bool {
	return o.State == StateComplete
}

// Passed returns true if the outcome went through the given state
func (o *Outcome) Passed(s State) bool {
	for _, t := range o.Transitions {
		if t == s {
			return true
		}
	}
	return false
}

// BatchReport summarizes one invocation of the orchestrator
type BatchReport struct {
	RunID          string     `json:"run_id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	Outcomes       []*Outcome `json:"outcomes"`
	RemainingQuota *float64   `json:"remaining_quota,omitempty"`
}

// Counts returns the number of processed, already complete and failed files
func (r *BatchReport) Counts() (processed, alreadyDone, failed int) {
	for _, o := range r.Outcomes {
		switch {
		case o.State == StateFailed:
			failed++
		case o.AlreadyDone:
			alreadyDone++
		default:
			processed++
		}
	}
	return processed, alreadyDone, failed
}

// Failed returns the failed outcomes in processing order
func (r *BatchReport) Failed() []*Outcome {
	var out []*Outcome
	for _, o := range r.Outcomes {
		if o.State == StateFailed {
			out = append(out, o)
		}
	}
	return out
}

// OK returns true if every file reached complete
func (r *BatchReport) OK() bool {
	return len(r.Failed()) == 0
}
