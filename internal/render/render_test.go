package render

import (
	"bytes"
	"meetscribe/pkg/model"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMeta = Metadata{
	SourceFile:   "standup.webm",
	Generated:    time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
	Duration:     95 * time.Second,
	Provider:     "anthropic",
	Model:        "claude-3-haiku-20240307",
	FullTextName: "standup_full_transcript.txt",
}

func blocksOf(doc Document, kind BlockKind) []Block {
	var out []Block
	for _, b := range doc.Blocks {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

func TestTranscriptLayout_Segments(t *testing.T) {
	res := &model.TranscriptionResult{
		Text: "Morning. Deploy is done.",
		Segments: []model.Segment{
			{Speaker: "Speaker 1", Start: 0, End: 1, Text: "Morning."},
			{Start: 65, End: 70, Text: "Deploy is done."},
			{Start: 71, End: 72, Text: "  "},
		},
	}

	doc := TranscriptLayout(res, testMeta)
	assert.Equal(t, "Meeting Transcript", doc.Title)

	segs := blocksOf(doc, BlockSegment)
	require.Len(t, segs, 2)
	assert.Equal(t, "[00:00]", segs[0].Timestamp)
	assert.Equal(t, "Speaker 1", segs[0].Speaker)
	assert.Equal(t, "[01:05]", segs[1].Timestamp)
	assert.Empty(t, segs[1].Speaker)

	meta := blocksOf(doc, BlockMeta)
	require.NotEmpty(t, meta)
	assert.Contains(t, meta[0].Text, "October 19, 2026 at 09:30 AM")
	assert.Equal(t, "Duration: 01:35", meta[1].Text)
	assert.Contains(t, meta[2].Text, "standup_full_transcript.txt")
}

func TestTranscriptLayout_NoSegments(t *testing.T) {
	res := &model.TranscriptionResult{Text: "First part.\n\nSecond part."}

	doc := TranscriptLayout(res, Metadata{SourceFile: "a.webm"})
	assert.Empty(t, blocksOf(doc, BlockSegment))

	paras := blocksOf(doc, BlockParagraph)
	require.Len(t, paras, 2)
	assert.Equal(t, "First part.", paras[0].Text)
}

func TestParagraphs_GroupsSentences(t *testing.T) {
	text := strings.Repeat("Short one. ", 12)
	paras := Paragraphs(text)
	require.Len(t, paras, 3)
	assert.Equal(t, strings.TrimSpace(strings.Repeat("Short one. ", 5)), paras[0])
	assert.Equal(t, "Short one. Short one.", paras[2])

	long := strings.Repeat("This sentence is deliberately long enough to push the paragraph over the limit. ", 4)
	paras = Paragraphs(long)
	require.Len(t, paras, 2)

	assert.Equal(t, []string{"no punctuation at all"}, Paragraphs("no punctuation at all"))
	assert.Nil(t, Paragraphs("   "))
}

func TestSummaryLayout_Structured(t *testing.T) {
	res := &model.SummaryResult{
		Structured: true,
		Truncated:  true,
		Sections: []model.SummarySection{
			{Kind: model.SectionActionItems, Title: "ACTION ITEMS", Body: "- Fix **CI** (Owner: Dana)\n* Write docs"},
			{Kind: model.SectionExecutiveSummary, Title: "EXECUTIVE SUMMARY", Body: "Release review.\nAll green."},
		},
		Unstructured: "Thanks everyone.",
	}

	doc := SummaryLayout(res, testMeta)

	headings := blocksOf(doc, BlockHeading)
	require.Len(t, headings, 3)
	assert.Equal(t, "Executive Summary", headings[0].Text)
	assert.Equal(t, "Action Items", headings[1].Text)
	assert.Equal(t, "Additional Notes", headings[2].Text)

	bullets := blocksOf(doc, BlockBullet)
	require.Len(t, bullets, 2)
	assert.Equal(t, "Fix CI (Owner: Dana)", bullets[0].Text)

	paras := blocksOf(doc, BlockParagraph)
	assert.Equal(t, "Release review. All green.", paras[0].Text)

	var note bool
	for _, b := range blocksOf(doc, BlockMeta) {
		if strings.Contains(b.Text, "truncated") {
			note = true
		}
	}
	assert.True(t, note)
}

func TestSummaryLayout_Unstructured(t *testing.T) {
	res := &model.SummaryResult{Unstructured: "Just a paragraph.\n\n- and a bullet"}

	doc := SummaryLayout(res, testMeta)
	assert.Empty(t, blocksOf(doc, BlockHeading))
	assert.Len(t, blocksOf(doc, BlockParagraph), 1)
	assert.Len(t, blocksOf(doc, BlockBullet), 1)
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "00:00", Timestamp(-1))
	assert.Equal(t, "00:59", Timestamp(59.9))
	assert.Equal(t, "10:00", Timestamp(600))
	assert.Equal(t, "1:01:01", Timestamp(3661))
}

func TestRenderTranscript_PDF(t *testing.T) {
	var segs []model.Segment
	for i := 0; i < 200; i++ {
		segs = append(segs, model.Segment{
			Speaker: "Speaker 1",
			Start:   float64(i * 10),
			End:     float64(i*10 + 9),
			Text:    "We talked about the café rollout and naïve caching — again.",
		})
	}

	out, err := New(false).Render(model.DocumentTranscript, &model.TranscriptionResult{Text: "x", Segments: segs}, testMeta)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "(Page 1)")
	assert.Contains(t, string(out), "(Page 2)")
}

func TestRenderSummary_PDF(t *testing.T) {
	res := &model.SummaryResult{
		Structured: true,
		Sections:   []model.SummarySection{{Kind: model.SectionNextSteps, Body: "- Ship it"}},
	}

	out, err := New(true).Render(model.DocumentSummary, res, testMeta)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRender_WrongResultType(t *testing.T) {
	r := New(true)

	_, err := r.Render(model.DocumentTranscript, &model.SummaryResult{}, testMeta)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindRender))

	_, err = r.Render(model.DocumentSummary, nil, testMeta)
	assert.True(t, model.IsKind(err, model.KindRender))

	_, err = r.Render("slides", nil, testMeta)
	assert.True(t, model.IsKind(err, model.KindRender))
}
