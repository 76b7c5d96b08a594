package speechtext

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Task statuses reported by the results endpoint
const (
	StatusProcessing = "processing"
	StatusFinished   = "finished"
	StatusFailed     = "failed"
)

// UploadResponse is returned by the recognize endpoint
type UploadResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// ResultsResponse is one poll of the results endpoint
type ResultsResponse struct {
	Status           *string  `json:"status"`
	RemainingSeconds *float64 `json:"remaining seconds,omitempty"`
	Message          string   `json:"message,omitempty"`
	Results          *Results `json:"results,omitempty"`
}

// Results holds the recognition output of a finished task
type Results struct {
	Transcript      *string       `json:"transcript"`
	WordTimeOffsets []WordOffset  `json:"word_time_offsets,omitempty"`
	Speakers        []SpeakerTurn `json:"speakers,omitempty"`
	Summary         string        `json:"summary,omitempty"`
}

// WordOffset is a recognized word with timing
type WordOffset struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
	Speaker    Label   `json:"speaker,omitempty"`
}

// SpeakerTurn is a time range attributed to one speaker
type SpeakerTurn struct {
	Speaker   Label   `json:"speaker"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Label is a speaker identifier that the service sends either as a string or a number
type Label string

func (l *Label) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = Label(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = Label(n.String())
	return nil
}

// Name returns a display name for the label
func (l Label) Name() string {
	if l == "" {
		return ""
	}
	if _, err := strconv.Atoi(string(l)); err == nil {
		return "Speaker " + string(l)
	}
	return string(l)
}
