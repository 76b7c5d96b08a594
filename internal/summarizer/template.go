package summarizer

import (
	"errors"
	"fmt"
	"meetscribe/internal/artifact"
	"os"
	"strings"
)

const (
	Placeholder     = "{transcript}"
	transcriptLabel = "TRANSCRIPT:"
)

// DefaultTemplate is written to the template path when no template exists
const DefaultTemplate = `Please create a professional IT meeting summary from this transcript. Format it with:

**EXECUTIVE SUMMARY** (2-3 sentences highlighting the main purpose and outcomes)

**KEY DECISIONS MADE**
- List all decisions reached during the meeting
- Include rationale where mentioned

**ACTION ITEMS**
- Item description (Owner: Name, Due: Date if mentioned)
- Be specific about who is responsible

**TECHNICAL DISCUSSION POINTS**
- Main technical topics covered
- Any architectural or implementation details discussed

**BLOCKERS & RISKS**
- Issues that need resolution
- Potential risks identified

**NEXT STEPS**
- Immediate next steps
- Follow-up meetings needed

Make it concise, scannable, and suitable for stakeholders. Focus on actionable information.

TRANSCRIPT:
{transcript}`

// LoadTemplate reads the prompt template at path. When the file does not
// exist the default template is written there and returned.
func LoadTemplate(path string) (tmpl string, created bool, err error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if strings.TrimSpace(string(data)) == "" {
			return "", false, fmt.Errorf("prompt template %s is empty", path)
		}
		return string(data), false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", false, fmt.Errorf("read prompt template: %w", err)
	}

	if err := artifact.WriteFileAtomic(path, strings.NewReader(DefaultTemplate)); err != nil {
		return "", false, fmt.Errorf("write default prompt template: %w", err)
	}
	return DefaultTemplate, true, nil
}

// RenderPrompt substitutes the transcript into the template. A template
// without a placeholder gets the transcript appended after a TRANSCRIPT: line.
func RenderPrompt(tmpl, transcript string) string {
	if strings.Contains(tmpl, Placeholder) {
		return strings.ReplaceAll(tmpl, Placeholder, transcript)
	}

	trimmed := strings.TrimRight(tmpl, " \t\r\n")
	if strings.HasSuffix(trimmed, transcriptLabel) {
		return trimmed + "\n" + transcript
	}
	if trimmed == "" {
		return transcriptLabel + "\n" + transcript
	}
	return trimmed + "\n\n" + transcriptLabel + "\n" + transcript
}

// Truncate shortens text to at most limit runes, cutting at a word boundary
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}

	cut := string(runes[:limit])
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\r\n"), true
}
