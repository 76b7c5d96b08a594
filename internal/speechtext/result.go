package speechtext

import (
	"errors"
	"meetscribe/pkg/model"
	"strings"
)

// Words per segment when the service returns no speaker information
const maxUnlabeledWords = 40

// BuildResult converts a finished results response into a transcription result
func BuildResult(taskID string, resp *ResultsResponse) (*model.TranscriptionResult, error) {
	if resp.Results == nil || resp.Results.Transcript == nil {
		return nil, errors.New("no transcript found in final results")
	}

	text := strings.TrimSpace(*resp.Results.Transcript)
	if text == "" {
		return nil, errors.New("transcript is empty")
	}

	res := &model.TranscriptionResult{
		TaskID:   taskID,
		Text:     text,
		Segments: Segments(resp.Results.WordTimeOffsets, resp.Results.Speakers),
	}
	if resp.RemainingSeconds != nil {
		v := *resp.RemainingSeconds
		res.RemainingQuota = &v
	}

	return res, nil
}

// Segments groups words into speaker turns. Speaker labels come from the
// words themselves or, failing that, from the speaker turn ranges. Without
// any speaker information words are grouped by sentence.
func Segments(words []WordOffset, turns []SpeakerTurn) []model.Segment {
	if len(words) == 0 {
		return nil
	}

	labels := make([]Label, len(words))
	labeled := false
	for i, w := range words {
		labels[i] = w.Speaker
		if w.Speaker != "" {
			labeled = true
		}
	}
	if !labeled && len(turns) > 0 {
		for i, w := range words {
			labels[i] = speakerAt(turns, w.StartTime)
			if labels[i] != "" {
				labeled = true
			}
		}
	}

	var (
		segments []model.Segment
		cur      *model.Segment
		parts    []string
		confSum  float64
	)

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.Join(parts, " ")
		cur.Confidence = confSum / float64(len(parts))
		segments = append(segments, *cur)
		cur, parts, confSum = nil, nil, 0
	}

	for i, w := range words {
		word := strings.TrimSpace(w.Word)
		if word == "" {
			continue
		}
		speaker := labels[i].Name()

		if cur != nil && labeled && speaker != cur.Speaker {
			flush()
		}
		if cur == nil {
			cur = &model.Segment{Speaker: speaker, Start: w.StartTime}
		}

		parts = append(parts, word)
		confSum += w.Confidence
		cur.End = w.EndTime

		if !labeled && (endsSentence(word) || len(parts) >= maxUnlabeledWords) {
			flush()
		}
	}
	flush()

	return segments
}

func speakerAt(turns []SpeakerTurn, t float64) Label {
	for _, turn := range turns {
		if t >= turn.StartTime && t < turn.EndTime {
			return turn.Speaker
		}
	}
	return ""
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "?") || strings.HasSuffix(word, "!")
}
