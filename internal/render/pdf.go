package render

import (
	"bytes"
	"fmt"
	"meetscribe/pkg/model"

	"github.com/go-pdf/fpdf"
)

const (
	margin      = 54.0
	bodySize    = 10.5
	lineHeight  = 14.0
	bulletInset = 14.0
)

type rgb struct{ r, g, b int }

var (
	primaryBlue = rgb{46, 79, 171}
	accentBlue  = rgb{64, 115, 217}
	darkGrey    = rgb{51, 51, 51}
	mediumGrey  = rgb{153, 153, 153}
	stampColor  = rgb{102, 102, 204}
)

// Renderer draws transcript and summary documents as PDF
type Renderer struct {
	compress bool
}

func New(compress bool) *Renderer {
	return &Renderer{compress: compress}
}

// Render dispatches on kind. result must be *model.TranscriptionResult
// for transcripts and *model.SummaryResult for summaries.
func (r *Renderer) Render(kind model.DocumentKind, result any, meta Metadata) ([]byte, error) {
	switch kind {
	case model.DocumentTranscript:
		res, ok := result.(*model.TranscriptionResult)
		if !ok || res == nil {
			return nil, model.NewRenderError("render transcript", fmt.Errorf("unexpected result type %T", result))
		}
		return r.RenderTranscript(res, meta)
	case model.DocumentSummary:
		res, ok := result.(*model.SummaryResult)
		if !ok || res == nil {
			return nil, model.NewRenderError("render summary", fmt.Errorf("unexpected result type %T", result))
		}
		return r.RenderSummary(res, meta)
	default:
		return nil, model.NewRenderError("render", fmt.Errorf("unknown document kind %q", kind))
	}
}

func (r *Renderer) RenderTranscript(res *model.TranscriptionResult, meta Metadata) ([]byte, error) {
	out, err := r.draw(TranscriptLayout(res, meta), meta)
	if err != nil {
		return nil, model.NewRenderError("render transcript "+meta.SourceFile, err)
	}
	return out, nil
}

func (r *Renderer) RenderSummary(res *model.SummaryResult, meta Metadata) ([]byte, error) {
	out, err := r.draw(SummaryLayout(res, meta), meta)
	if err != nil {
		return nil, model.NewRenderError("render summary "+meta.SourceFile, err)
	}
	return out, nil
}

func (r *Renderer) draw(doc Document, meta Metadata) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("pdf panic: %v", rec)
		}
	}()

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	if !meta.Generated.IsZero() {
		pdf.SetCreationDate(meta.Generated)
		pdf.SetModificationDate(meta.Generated)
	}
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("meetscribe", true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin + 12)
		pdf.SetFont("Helvetica", "I", 8)
		setText(pdf, mediumGrey)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	width, _ := pdf.GetPageSize()
	contentWidth := width - 2*margin

	pdf.SetFont("Helvetica", "B", 22)
	setText(pdf, primaryBlue)
	pdf.MultiCell(0, 28, tr(doc.Title), "", "L", false)
	pdf.Ln(6)

	for _, b := range doc.Blocks {
		switch b.Kind {
		case BlockSubtitle:
			pdf.SetFont("Helvetica", "B", 12)
			setText(pdf, darkGrey)
			pdf.MultiCell(0, 16, tr(b.Text), "", "L", false)
			pdf.Ln(4)
		case BlockMeta:
			pdf.SetFont("Helvetica", "I", 9)
			setText(pdf, mediumGrey)
			pdf.MultiCell(0, 12, tr(b.Text), "", "L", false)
		case BlockRule:
			pdf.Ln(6)
			y := pdf.GetY()
			pdf.SetDrawColor(accentBlue.r, accentBlue.g, accentBlue.b)
			pdf.SetLineWidth(1)
			pdf.Line(margin, y, margin+contentWidth, y)
			pdf.Ln(14)
		case BlockHeading:
			pdf.Ln(8)
			pdf.SetFont("Helvetica", "B", 14)
			setText(pdf, primaryBlue)
			pdf.MultiCell(0, 18, tr(b.Text), "", "L", false)
			pdf.Ln(2)
		case BlockSegment:
			pdf.SetFont("Helvetica", "B", 9)
			setText(pdf, stampColor)
			label := b.Timestamp
			if b.Speaker != "" {
				label += "  " + b.Speaker
			}
			pdf.MultiCell(0, 12, tr(label), "", "L", false)
			pdf.SetFont("Helvetica", "", bodySize)
			setText(pdf, darkGrey)
			pdf.MultiCell(0, lineHeight, tr(b.Text), "", "L", false)
			pdf.Ln(6)
		case BlockParagraph:
			pdf.SetFont("Helvetica", "", bodySize)
			setText(pdf, darkGrey)
			pdf.MultiCell(0, lineHeight, tr(b.Text), "", "L", false)
			pdf.Ln(6)
		case BlockBullet:
			pdf.SetFont("Helvetica", "", bodySize)
			setText(pdf, darkGrey)
			pdf.SetX(margin + bulletInset)
			pdf.CellFormat(bulletInset, lineHeight, tr("•"), "", 0, "L", false, 0, "")
			pdf.MultiCell(contentWidth-2*bulletInset, lineHeight, tr(b.Text), "", "L", false)
			pdf.Ln(2)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setText(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}
