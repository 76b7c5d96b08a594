package render

import (
	"fmt"
	"meetscribe/pkg/model"
	"regexp"
	"strings"
	"time"
)

// BlockKind identifies how a block is drawn
type BlockKind int

const (
	BlockSubtitle BlockKind = iota
	BlockMeta
	BlockRule
	BlockHeading
	BlockSegment
	BlockParagraph
	BlockBullet
)

// Block is one drawable element of a document
type Block struct {
	Kind      BlockKind
	Text      string
	Timestamp string
	Speaker   string
}

// Document is the renderer-independent layout of a PDF
type Document struct {
	Title  string
	Blocks []Block
}

// Metadata describes the recording a document belongs to
type Metadata struct {
	SourceFile   string
	Generated    time.Time
	Duration     time.Duration
	Provider     string
	Model        string
	FullTextName string
}

const (
	paragraphMinSentences = 3
	paragraphMaxSentences = 5
	paragraphMinChars     = 200
)

var (
	reBlankLines = regexp.MustCompile(`\n\s*\n`)
	reSentence   = regexp.MustCompile(`[^.!?]+(?:[.!?]+["')\]]*|$)`)
	reBullet     = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
	reBoldMarks  = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// TranscriptLayout lays out a transcript document
func TranscriptLayout(res *model.TranscriptionResult, meta Metadata) Document {
	doc := Document{Title: "Meeting Transcript"}
	doc.Blocks = append(doc.Blocks, header("Source: "+meta.SourceFile, meta, "SpeechText.AI")...)

	if meta.FullTextName != "" {
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockMeta, Text: "Complete transcript with timestamps: " + meta.FullTextName})
	}
	doc.Blocks = append(doc.Blocks, Block{Kind: BlockRule})

	if len(res.Segments) == 0 {
		for _, p := range Paragraphs(res.Text) {
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockParagraph, Text: p})
		}
		return doc
	}

	for _, seg := range res.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{
			Kind:      BlockSegment,
			Timestamp: "[" + Timestamp(seg.Start) + "]",
			Speaker:   strings.TrimSpace(seg.Speaker),
			Text:      text,
		})
	}
	return doc
}

// SummaryLayout lays out a summary document
func SummaryLayout(res *model.SummaryResult, meta Metadata) Document {
	doc := Document{Title: "Meeting Summary"}

	provider := meta.Provider
	if meta.Model != "" {
		provider = fmt.Sprintf("%s (%s)", meta.Provider, meta.Model)
	}
	doc.Blocks = append(doc.Blocks, header("Meeting: "+meta.SourceFile, meta, provider)...)
	if res.Truncated {
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockMeta, Text: "Note: the transcript was truncated before summarization."})
	}
	doc.Blocks = append(doc.Blocks, Block{Kind: BlockRule})

	if !res.Structured {
		doc.Blocks = append(doc.Blocks, bodyBlocks(res.Unstructured)...)
		return doc
	}

	for _, kind := range model.AllSectionKinds {
		sec, ok := res.Section(kind)
		if !ok {
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Text: kind.Title()})
		doc.Blocks = append(doc.Blocks, bodyBlocks(sec.Body)...)
	}

	if res.Unstructured != "" {
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Text: "Additional Notes"})
		doc.Blocks = append(doc.Blocks, bodyBlocks(res.Unstructured)...)
	}
	return doc
}

func header(subtitle string, meta Metadata, processedBy string) []Block {
	blocks := []Block{{Kind: BlockSubtitle, Text: subtitle}}

	line := "Generated on " + meta.Generated.Format("January 02, 2006 at 03:04 PM")
	if processedBy != "" {
		line += " | Processed by " + processedBy
	}
	blocks = append(blocks, Block{Kind: BlockMeta, Text: line})

	if meta.Duration > 0 {
		blocks = append(blocks, Block{Kind: BlockMeta, Text: "Duration: " + Timestamp(meta.Duration.Seconds())})
	}
	return blocks
}

// bodyBlocks turns markdown-ish text into bullets and paragraphs
func bodyBlocks(text string) []Block {
	var (
		blocks []Block
		para   []string
	)

	flush := func() {
		if len(para) > 0 {
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: strings.Join(para, " ")})
			para = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case reBullet.MatchString(line):
			flush()
			blocks = append(blocks, Block{Kind: BlockBullet, Text: plain(reBullet.ReplaceAllString(line, ""))})
		case strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") && len(line) > 4:
			flush()
			blocks = append(blocks, Block{Kind: BlockHeading, Text: plain(line)})
		default:
			para = append(para, plain(line))
		}
	}
	flush()

	return blocks
}

// Paragraphs splits transcript text at blank lines, or into groups of
// sentences when the text has no paragraph breaks.
func Paragraphs(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	var out []string
	if parts := reBlankLines.Split(text, -1); len(parts) > 1 {
		for _, p := range parts {
			if p = strings.Join(strings.Fields(p), " "); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	var (
		current []string
		length  int
	)
	for _, s := range reSentence.FindAllString(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		current = append(current, s)
		length += len(s) + 1

		if (len(current) >= paragraphMinSentences && length > paragraphMinChars) || len(current) >= paragraphMaxSentences {
			out = append(out, strings.Join(current, " "))
			current, length = nil, 0
		}
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// Timestamp formats seconds as mm:ss, or h:mm:ss past one hour
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func plain(s string) string {
	s = reBoldMarks.ReplaceAllString(s, "$1")
	return strings.TrimSpace(strings.Trim(s, "*"))
}
