package artifact

// Artifact name suffixes within the working directory
const (
	FullTextSuffix      = "_full_transcript.txt"
	TranscriptPDFSuffix = "_transcript.pdf"
	SummaryPDFSuffix    = "_summary.pdf"
)

// Names holds the artifact file names for one recording
type Names struct {
	FullText      string
	TranscriptPDF string
	SummaryPDF    string
}

// NamesFor derives artifact names from a recording base name
func NamesFor(baseName string) Names {
	return Names{
		FullText:      baseName + FullTextSuffix,
		TranscriptPDF: baseName + TranscriptPDFSuffix,
		SummaryPDF:    baseName + SummaryPDFSuffix,
	}
}

// All returns the artifact names in write order
func (n Names) All() []string {
	return []string{n.FullText, n.TranscriptPDF, n.SummaryPDF}
}

// Completion reports which artifacts of a recording already exist
type Completion struct {
	Names         Names
	FullText      bool
	TranscriptPDF bool
	SummaryPDF    bool
}

// Done is true when both PDFs exist; nothing is left to do
func (c Completion) Done() bool {
	return c.TranscriptPDF && c.SummaryPDF
}

// NeedsTranscription is true when there is no cached transcript to resume from
func (c Completion) NeedsTranscription() bool {
	return !c.Done() && !c.FullText
}

// NeedsTranscriptPDF is true when the transcript document is missing
func (c Completion) NeedsTranscriptPDF() bool {
	return !c.TranscriptPDF
}

// NeedsSummary is true when the summary document is missing
func (c Completion) NeedsSummary() bool {
	return !c.SummaryPDF
}

// Tracker inspects the working directory for existing artifacts
type Tracker struct {
	store *Store
}

func NewTracker(store *Store) *Tracker {
	return &Tracker{store: store}
}

// Inspect reports the completion state for baseName. No side effects.
func (t *Tracker) Inspect(baseName string) Completion {
	names := NamesFor(baseName)
	return Completion{
		Names:         names,
		FullText:      t.store.Exists(names.FullText),
		TranscriptPDF: t.store.Exists(names.TranscriptPDF),
		SummaryPDF:    t.store.Exists(names.SummaryPDF),
	}
}
