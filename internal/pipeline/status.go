package pipeline

import (
	"meetscribe/internal/artifact"
	"path/filepath"
)

// FileStatus describes the artifacts present for one recording
type FileStatus struct {
	Name       string
	Location   string
	Completion artifact.Completion
}

// Pending returns true if a run would still do work for the recording
func (s FileStatus) Pending() bool {
	return !s.Completion.Done()
}

// Status inspects every discoverable recording without changing anything
func Status(sourceDir string, store *artifact.Store, exts []string) ([]FileStatus, error) {
	recordings, err := Discover(sourceDir, store.Dir(), exts)
	if err != nil {
		return nil, err
	}

	tracker := artifact.NewTracker(store)
	out := make([]FileStatus, 0, len(recordings))
	for _, rec := range recordings {
		out = append(out, FileStatus{
			Name:       filepath.Base(rec.Path),
			Location:   filepath.Dir(rec.Path),
			Completion: tracker.Inspect(rec.BaseName),
		})
	}
	return out, nil
}
