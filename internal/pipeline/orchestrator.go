package pipeline

import (
	"context"
	"errors"
	"fmt"
	"meetscribe/internal/artifact"
	"meetscribe/internal/render"
	"meetscribe/pkg/model"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNameTaken means another recording with the same base name owns the
// artifact names
var ErrNameTaken = errors.New("artifact name already taken")

const (
	transcriptionProvider = "SpeechText.AI"
	sinkTimeout           = 60 * time.Second
)

// Transcriber turns a recording into text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*model.TranscriptionResult, error)
}

// Summarizer turns a transcript into a structured summary
type Summarizer interface {
	Summarize(ctx context.Context, transcript, tmpl string) (*model.SummaryResult, error)
	Provider() string
}

// Renderer produces PDF documents
type Renderer interface {
	Render(kind model.DocumentKind, result any, meta render.Metadata) ([]byte, error)
}

type Options struct {
	SourceDir  string
	Extensions []string
	// Template is the summarization prompt
	Template string
}

// Orchestrator runs the batch: discovery, relocation, then the pending
// stages of every recording, one file at a time.
type Orchestrator struct {
	opts        Options
	store       *artifact.Store
	tracker     *artifact.Tracker
	transcriber Transcriber
	summarizer  Summarizer
	renderer    Renderer
	sink        Sink
	log         *zap.Logger
	now         func() time.Time
}

func NewOrchestrator(
	opts Options,
	store *artifact.Store,
	transcriber Transcriber,
	summarizer Summarizer,
	renderer Renderer,
	sink Sink,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		opts:        opts,
		store:       store,
		tracker:     artifact.NewTracker(store),
		transcriber: transcriber,
		summarizer:  summarizer,
		renderer:    renderer,
		sink:        sink,
		log:         log,
		now:         time.Now,
	}
}

// Run processes every discovered recording and returns the batch report.
// Only a discovery failure or cancellation of ctx returns an error; per-file
// failures are recorded in the report.
func (o *Orchestrator) Run(ctx context.Context) (*model.BatchReport, error) {
	report := &model.BatchReport{
		RunID:     uuid.New().String(),
		StartedAt: o.now(),
	}
	log := o.log.With(zap.String("run_id", report.RunID))

	if removed, err := o.store.CleanupTemp(); err != nil {
		log.Warn("Failed to clean temp files", zap.Error(err))
	} else if len(removed) > 0 {
		log.Info("Removed leftover temp files", zap.Strings("files", removed))
	}

	recordings, err := Discover(o.opts.SourceDir, o.store.Dir(), o.opts.Extensions)
	if err != nil {
		return nil, err
	}

	log.Info("Batch started",
		zap.Int("recordings", len(recordings)),
		zap.String("source_dir", o.opts.SourceDir),
		zap.String("work_dir", o.store.Dir()))

	owners := ArtifactOwners(recordings, o.store.Dir())

	var runErr error
	for i, rec := range recordings {
		if err := ctx.Err(); err != nil {
			log.Warn("Batch interrupted",
				zap.Int("remaining", len(recordings)-i),
				zap.Error(err))
			runErr = err
			break
		}

		log.Info("Processing recording",
			zap.Int("index", i+1),
			zap.Int("total", len(recordings)),
			zap.String("file", filepath.Base(rec.Path)))

		var outcome *model.Outcome
		if owner := owners[rec.BaseName]; owner != rec.Path {
			outcome = o.nameTaken(rec, owner)
		} else {
			outcome = o.Process(ctx, rec)
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.RemainingQuota != nil {
			report.RemainingQuota = outcome.RemainingQuota
		}
	}

	report.FinishedAt = o.now()
	o.logReport(log, report)
	o.publish(ctx, report)

	return report, runErr
}

// Process runs the pending stages of one recording. It never returns an
// error: failures end the outcome in the failed state.
func (o *Orchestrator) Process(ctx context.Context, rec model.InputRecording) *model.Outcome {
	out := model.NewOutcome(rec)
	out.StartedAt = o.now()
	log := o.log.With(zap.String("file", rec.BaseName))

	transition := func(s model.State) {
		if out.Transition(s) {
			log.Info("State changed", zap.String("state", string(s)))
		}
	}
	fail := func(stage model.Stage, err error) *model.Outcome {
		out.SetFailed(stage, err)
		out.FinishedAt = o.now()
		log.Error("Recording failed",
			zap.String("stage", string(stage)),
			zap.String("error_kind", string(out.ErrorKind)),
			zap.Error(err))
		return out
	}

	path, moved, err := Relocate(rec.Path, o.store.Dir())
	if err != nil {
		return fail(model.StageRelocation, err)
	}
	if moved {
		log.Info("Recording moved to working directory", zap.String("path", path))
	} else if path != rec.Path {
		log.Warn("Destination already exists, leaving source in place",
			zap.String("source", rec.Path),
			zap.String("destination", path))
	}
	out.Recording.Path = path
	transition(model.StateRelocated)

	c := o.tracker.Inspect(rec.BaseName)
	if c.Done() {
		out.AlreadyDone = true
		transition(model.StateTranscriptionSkipped)
		transition(model.StateSummarizationSkipped)
		out.SetCompleted()
		out.FinishedAt = o.now()
		log.Info("Already processed, skipping")
		return out
	}

	transcript, err := o.transcript(ctx, out, c, log, transition)
	if err != nil {
		stage := model.StageTranscription
		if model.IsKind(err, model.KindPersistence) {
			stage = model.StagePersistence
		}
		return fail(stage, err)
	}

	meta := render.Metadata{
		SourceFile:   filepath.Base(path),
		Generated:    o.now(),
		Duration:     transcript.Duration(),
		FullTextName: c.Names.FullText,
	}

	if c.NeedsTranscriptPDF() {
		meta.Provider = transcriptionProvider
		if stage, err := o.renderAndWrite(out, model.DocumentTranscript, transcript, meta, c.Names.TranscriptPDF); err != nil {
			return fail(stage, err)
		}
	}

	if c.NeedsSummary() {
		transition(model.StateSummarizationPending)

		summary, err := o.summarizer.Summarize(ctx, transcript.Text, o.opts.Template)
		if err != nil {
			return fail(model.StageSummarization, err)
		}
		out.InputTokens = summary.InputTokens
		out.OutputTokens = summary.OutputTokens

		meta.Provider = o.summarizer.Provider()
		meta.Model = summary.Model
		if stage, err := o.renderAndWrite(out, model.DocumentSummary, summary, meta, c.Names.SummaryPDF); err != nil {
			return fail(stage, err)
		}
	} else {
		transition(model.StateSummarizationSkipped)
	}

	transition(model.StateRendered)
	out.SetCompleted()
	out.FinishedAt = o.now()

	log.Info("Recording complete",
		zap.Strings("written", out.Written),
		zap.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)))

	return out
}

// nameTaken fails a recording whose artifact names belong to another
// recording. The file stays where it is.
func (o *Orchestrator) nameTaken(rec model.InputRecording, owner string) *model.Outcome {
	out := model.NewOutcome(rec)
	out.StartedAt = o.now()
	err := model.NewRelocationError("claim "+rec.BaseName+" artifacts",
		fmt.Errorf("%w: used by %s", ErrNameTaken, filepath.Base(owner)))
	out.SetFailed(model.StageRelocation, err)
	out.FinishedAt = o.now()

	o.log.Error("Recording failed",
		zap.String("file", rec.BaseName),
		zap.String("path", rec.Path),
		zap.String("stage", string(model.StageRelocation)),
		zap.String("error_kind", string(out.ErrorKind)),
		zap.Error(err))
	return out
}

// transcript returns the cached transcript when the full text artifact
// exists, otherwise transcribes the recording and persists the full text.
func (o *Orchestrator) transcript(
	ctx context.Context,
	out *model.Outcome,
	c artifact.Completion,
	log *zap.Logger,
	transition func(model.State),
) (*model.TranscriptionResult, error) {
	if c.FullText {
		cached, err := o.loadFullText(c.Names.FullText)
		if err == nil {
			transition(model.StateTranscriptionSkipped)
			log.Info("Reusing cached transcript",
				zap.String("artifact", c.Names.FullText),
				zap.Int("segments", len(cached.Segments)))
			return cached, nil
		}
		log.Warn("Cached transcript unreadable, transcribing again",
			zap.String("artifact", c.Names.FullText),
			zap.Error(err))
	}

	transition(model.StateTranscriptionPending)

	res, err := o.transcriber.Transcribe(ctx, out.Recording.Path)
	if err != nil {
		return nil, err
	}
	out.RemainingQuota = res.RemainingQuota

	data := artifact.EncodeFullText(out.Recording.BaseName, res, o.now())
	if err := o.store.Write(c.Names.FullText, data); err != nil {
		return nil, model.NewPersistenceError("write "+c.Names.FullText, err)
	}
	out.Written = append(out.Written, c.Names.FullText)

	return res, nil
}

func (o *Orchestrator) loadFullText(name string) (*model.TranscriptionResult, error) {
	data, err := o.store.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return artifact.DecodeFullText(data)
}

func (o *Orchestrator) renderAndWrite(out *model.Outcome, kind model.DocumentKind, result any, meta render.Metadata, name string) (model.Stage, error) {
	pdf, err := o.renderer.Render(kind, result, meta)
	if err != nil {
		if model.KindOf(err) == "" {
			err = model.NewRenderError("render "+string(kind), err)
		}
		return model.StageRendering, err
	}

	if err := o.store.Write(name, pdf); err != nil {
		return model.StagePersistence, model.NewPersistenceError("write "+name, err)
	}
	out.Written = append(out.Written, name)

	o.log.Info("Document written",
		zap.String("file", out.Recording.BaseName),
		zap.String("document", name),
		zap.Int("bytes", len(pdf)))

	return "", nil
}

func (o *Orchestrator) logReport(log *zap.Logger, report *model.BatchReport) {
	processed, alreadyDone, failed := report.Counts()

	log.Info("Batch finished",
		zap.Int("processed", processed),
		zap.Int("already_done", alreadyDone),
		zap.Int("failed", failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	for _, f := range report.Failed() {
		var text string
		if f.ErrorText != nil {
			text = *f.ErrorText
		}
		log.Warn("Failed recording",
			zap.String("file", f.Recording.BaseName),
			zap.String("stage", string(f.FailedStage)),
			zap.String("error_kind", string(f.ErrorKind)),
			zap.String("error", text))
	}

	if report.RemainingQuota != nil {
		log.Info("Transcription quota",
			zap.Float64("remaining_minutes", *report.RemainingQuota/60))
	}
}

// publish hands the report to the sinks. Sinks still run after the batch
// context is cancelled, bounded by their own timeout.
func (o *Orchestrator) publish(ctx context.Context, report *model.BatchReport) {
	if o.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	if err := o.sink.Publish(ctx, report); err != nil && !errors.Is(err, context.Canceled) {
		o.log.Warn("Publishing batch report failed", zap.Error(err))
	}
}
