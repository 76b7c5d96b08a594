package artifact

import (
	"errors"
	"fmt"
	"meetscribe/pkg/model"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	segmentsMarker  = "SEGMENTS:"
	fullTextMarker  = "FINAL COMPLETE TRANSCRIPT:"
	quotaPrefix     = "Remaining seconds: "
	taskPrefix      = "Task ID: "
	headerSeparator = "================================================================================"
)

var (
	ErrNoTranscript = errors.New("full transcript marker not found")

	reSegmentLine = regexp.MustCompile(`^\[(\d+(?:\.\d+)?)s-(\d+(?:\.\d+)?)s\] \((\d+(?:\.\d+)?)\)(?: \[([^\]]*)\])? (.*)$`)
)

// EncodeFullText renders a transcription result as the full transcript text
// artifact. The output is readable and can be parsed back by DecodeFullText.
func EncodeFullText(baseName string, res *model.TranscriptionResult, generated time.Time) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FULL TRANSCRIPT - %s\n", baseName)
	fmt.Fprintf(&sb, "Generated: %s\n", generated.Format("January 02, 2006 at 03:04 PM"))
	if res.TaskID != "" {
		sb.WriteString(taskPrefix + res.TaskID + "\n")
	}
	if res.RemainingQuota != nil {
		sb.WriteString(quotaPrefix + strconv.FormatFloat(*res.RemainingQuota, 'f', 1, 64) + "\n")
	}
	sb.WriteString(headerSeparator + "\n\n")

	if len(res.Segments) > 0 {
		sb.WriteString(segmentsMarker + "\n")
		for _, seg := range res.Segments {
			// speaker slot is always written, "[]" when unknown
			fmt.Fprintf(&sb, "[%.2fs-%.2fs] (%.3f) [%s] %s\n",
				seg.Start, seg.End, seg.Confidence, sanitizeSpeaker(seg.Speaker), singleLine(seg.Text))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fullTextMarker + "\n")
	sb.WriteString(strings.TrimSpace(res.Text))
	sb.WriteString("\n")

	return []byte(sb.String())
}

// DecodeFullText parses a full transcript text artifact
func DecodeFullText(data []byte) (*model.TranscriptionResult, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	idx := strings.Index(content, "\n"+fullTextMarker+"\n")
	if idx < 0 {
		return nil, ErrNoTranscript
	}

	// an empty body is a finished transcription of a silent recording
	head := content[:idx]
	res := &model.TranscriptionResult{
		Text: strings.TrimSpace(content[idx+len(fullTextMarker)+2:]),
	}

	inSegments := false
	for _, line := range strings.Split(head, "\n") {
		switch {
		case strings.HasPrefix(line, taskPrefix) && !inSegments:
			res.TaskID = strings.TrimSpace(strings.TrimPrefix(line, taskPrefix))
		case strings.HasPrefix(line, quotaPrefix) && !inSegments:
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, quotaPrefix)), 64)
			if err == nil {
				res.RemainingQuota = &v
			}
		case line == segmentsMarker:
			inSegments = true
		case inSegments && line != "":
			seg, err := parseSegmentLine(line)
			if err != nil {
				return nil, err
			}
			res.Segments = append(res.Segments, seg)
		}
	}

	return res, nil
}

func parseSegmentLine(line string) (model.Segment, error) {
	m := reSegmentLine.FindStringSubmatch(line)
	if m == nil {
		return model.Segment{}, fmt.Errorf("malformed segment line: %q", line)
	}
	start, _ := strconv.ParseFloat(m[1], 64)
	end, _ := strconv.ParseFloat(m[2], 64)
	conf, _ := strconv.ParseFloat(m[3], 64)
	return model.Segment{
		Start:      start,
		End:        end,
		Confidence: conf,
		Speaker:    m[4],
		Text:       m[5],
	}, nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeSpeaker(s string) string {
	s = strings.NewReplacer("[", "(", "]", ")").Replace(s)
	return singleLine(s)
}
