package metrics

import (
	"context"
	"errors"
	"io"
	"meetscribe/pkg/model"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report() *model.BatchReport {
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	quota := 1200.0

	ok := model.NewOutcome(model.InputRecording{BaseName: "standup"})
	ok.StartedAt = start
	ok.Written = []string{"a", "b", "c"}
	ok.InputTokens, ok.OutputTokens = 1000, 200
	ok.SetCompleted()
	ok.FinishedAt = start.Add(90 * time.Second)

	old := model.NewOutcome(model.InputRecording{BaseName: "kickoff"})
	old.AlreadyDone = true
	old.SetCompleted()

	bad := model.NewOutcome(model.InputRecording{BaseName: "retro"})
	bad.SetFailed(model.StageTranscription, model.NewTranscriptionError("upload", errors.New("401")))

	return &model.BatchReport{
		RunID:          "run-1",
		StartedAt:      start,
		FinishedAt:     start.Add(5 * time.Minute),
		Outcomes:       []*model.Outcome{ok, old, bad},
		RemainingQuota: &quota,
	}
}

func TestBatch_Observe(t *testing.T) {
	b := NewBatch()
	b.Observe(report())

	assert.Equal(t, 1.0, testutil.ToFloat64(b.recordings.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.recordings.WithLabelValues("already_done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.recordings.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.failures.WithLabelValues("transcription", "TranscriptionError")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(b.tokens.WithLabelValues("input")))
	assert.Equal(t, 200.0, testutil.ToFloat64(b.tokens.WithLabelValues("output")))
	assert.Equal(t, 3.0, testutil.ToFloat64(b.artifacts))
	assert.Equal(t, 1200.0, testutil.ToFloat64(b.quota))
	assert.Equal(t, 300.0, testutil.ToFloat64(b.batchSeconds))

	count, err := testutil.GatherAndCount(b.Registry(), "meetscribe_recording_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPusher_Publish(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPusher(srv.URL, "meetscribe", "laptop", nil)
	require.NoError(t, p.Publish(context.Background(), report()))

	assert.Equal(t, "/metrics/job/meetscribe/instance/laptop", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPusher_PublishError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewPusher(srv.URL, "meetscribe", "", nil).Publish(context.Background(), report())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to push metrics"))
}
