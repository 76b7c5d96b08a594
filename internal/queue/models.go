package queue

import (
	"meetscribe/pkg/model"
	"time"
)

const (
	EventOutcome  = "recording.outcome"
	EventBatchEnd = "batch.finished"
)

// OutcomeEvent is published once per recording processed in a run
type OutcomeEvent struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id"`
	File        string    `json:"file"`
	State       string    `json:"state"`
	AlreadyDone bool      `json:"already_done"`
	FailedStage string    `json:"failed_stage,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Artifacts   []string  `json:"artifacts,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// BatchEvent closes the stream of outcome events of a run
type BatchEvent struct {
	Type           string    `json:"type"`
	RunID          string    `json:"run_id"`
	Processed      int       `json:"processed"`
	AlreadyDone    int       `json:"already_done"`
	Failed         int       `json:"failed"`
	RemainingQuota *float64  `json:"remaining_quota_seconds,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// NewOutcomeEvent builds the event for one outcome
func NewOutcomeEvent(runID string, o *model.Outcome) OutcomeEvent {
	ev := OutcomeEvent{
		Type:        EventOutcome,
		RunID:       runID,
		File:        o.Recording.BaseName,
		State:       string(o.State),
		AlreadyDone: o.AlreadyDone,
		FailedStage: string(o.FailedStage),
		ErrorKind:   string(o.ErrorKind),
		Artifacts:   o.Written,
		FinishedAt:  o.FinishedAt,
	}
	if o.ErrorText != nil {
		ev.Error = *o.ErrorText
	}
	return ev
}

// NewBatchEvent builds the closing event of a run
func NewBatchEvent(report *model.BatchReport) BatchEvent {
	processed, alreadyDone, failed := report.Counts()
	return BatchEvent{
		Type:           EventBatchEnd,
		RunID:          report.RunID,
		Processed:      processed,
		AlreadyDone:    alreadyDone,
		Failed:         failed,
		RemainingQuota: report.RemainingQuota,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
	}
}
