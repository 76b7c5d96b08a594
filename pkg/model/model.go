package model

import (
	"time"
)

// InputRecording identifies one audio file picked up by discovery
type InputRecording struct {
	Path         string    `json:"path"`
	BaseName     string    `json:"base_name"`
	Size         int64     `json:"size"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Segment is one speaker-tagged piece of a transcript
type Segment struct {
	Speaker    string  `json:"speaker,omitempty"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TranscriptionResult represents a finished transcription
type TranscriptionResult struct {
	TaskID         string    `json:"task_id,omitempty"`
	Text           string    `json:"text"`
	Segments       []Segment `json:"segments,omitempty"`
	RemainingQuota *float64  `json:"remaining_quota,omitempty"`
}

// HasSpeakers reports whether at least one segment carries a speaker label
func (r *TranscriptionResult) HasSpeakers() bool {
	for _, s := range r.Segments {
		if s.Speaker != "" {
			return true
		}
	}
	return false
}

// Duration returns the audio duration covered by the segments
func (r *TranscriptionResult) Duration() time.Duration {
	var end float64
	for _, s := range r.Segments {
		if s.End > end {
			end = s.End
		}
	}
	return time.Duration(end * float64(time.Second))
}

// SectionKind names a well-known summary section
type SectionKind string

const (
	SectionExecutiveSummary SectionKind = "executive_summary"
	SectionDecisions        SectionKind = "decisions"
	SectionActionItems      SectionKind = "action_items"
	SectionTechnicalPoints  SectionKind = "technical_points"
	SectionRisks            SectionKind = "risks"
	SectionNextSteps        SectionKind = "next_steps"
)

// AllSectionKinds lists section kinds in their canonical order
var AllSectionKinds = []SectionKind{
	SectionExecutiveSummary,
	SectionDecisions,
	SectionActionItems,
	SectionTechnicalPoints,
	SectionRisks,
	SectionNextSteps,
}

var sectionTitles = map[SectionKind]string{
	SectionExecutiveSummary: "Executive Summary",
	SectionDecisions:        "Key Decisions Made",
	SectionActionItems:      "Action Items",
	SectionTechnicalPoints:  "Technical Discussion Points",
	SectionRisks:            "Blockers & Risks",
	SectionNextSteps:        "Next Steps",
}

// Title returns the display title of the section kind
func (k SectionKind) Title() string {
	if t, ok := sectionTitles[k]; ok {
		return t
	}
	return string(k)
}

// SummarySection is one recognized section of a summary response
type SummarySection struct {
	Kind  SectionKind `json:"kind"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
}

// SummaryResult represents a generated summary
type SummaryResult struct {
	Raw          string           `json:"raw"`
	Sections     []SummarySection `json:"sections,omitempty"`
	Unstructured string           `json:"unstructured,omitempty"`
	Structured   bool             `json:"structured"`
	Truncated    bool             `json:"truncated"`
	Model        string           `json:"model"`
	InputTokens  int              `json:"input_tokens"`
	OutputTokens int              `json:"output_tokens"`
}

// Section returns the first section of the given kind
func (s *SummaryResult) Section(kind SectionKind) (SummarySection, bool) {
	for _, sec := range s.Sections {
		if sec.Kind == kind {
			return sec, true
		}
	}
	return SummarySection{}, false
}

// DocumentKind selects which document the renderer produces
type DocumentKind string

const (
	DocumentTranscript DocumentKind = "transcript"
	DocumentSummary    DocumentKind = "summary"
)
