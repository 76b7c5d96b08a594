package speechtext

import (
	"context"
	"encoding/json"
	"io"
	"meetscribe/pkg/model"
	"meetscribe/pkg/resilience"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecording(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testClient(baseURL string, mutate func(*Options)) *Client {
	opts := Options{
		APIKey:       "st-key",
		BaseURL:      baseURL,
		Language:     "en-US",
		Punctuation:  true,
		Speakers:     true,
		PollInterval: 5 * time.Millisecond,
		Timeout:      2 * time.Second,
		Extensions:   []string{"webm"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewClient(opts, nil)
}

func TestTranscribe_Success(t *testing.T) {
	var polls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/recognize", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		q := r.URL.Query()
		assert.Equal(t, "st-key", q.Get("key"))
		assert.Equal(t, "webm", q.Get("format"))
		assert.Equal(t, "true", q.Get("speakers"))
		assert.Equal(t, "en-US", q.Get("language"))
		assert.Empty(t, q.Get("summary"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "audio-bytes", string(body))

		w.Write([]byte(`{"id":"task-42"}`))
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "task-42", r.URL.Query().Get("task"))
		if atomic.AddInt32(&polls, 1) < 3 {
			w.Write([]byte(`{"status":"processing","remaining seconds":7200}`))
			return
		}
		w.Write([]byte(`{
			"status": "finished",
			"remaining seconds": 6900.5,
			"results": {
				"transcript": "Hi team. Deploy is green.",
				"word_time_offsets": [
					{"word": "Hi", "start_time": 0.0, "end_time": 0.4, "confidence": 0.9, "speaker": 1},
					{"word": "team.", "start_time": 0.4, "end_time": 0.9, "confidence": 0.8, "speaker": 1},
					{"word": "Deploy", "start_time": 1.2, "end_time": 1.6, "confidence": 1.0, "speaker": "Alice"},
					{"word": "is", "start_time": 1.6, "end_time": 1.7, "confidence": 1.0, "speaker": "Alice"},
					{"word": "green.", "start_time": 1.7, "end_time": 2.1, "confidence": 1.0, "speaker": "Alice"}
				]
			}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL, nil)
	res, err := c.Transcribe(context.Background(), writeRecording(t, "standup.webm", []byte("audio-bytes")))
	require.NoError(t, err)

	assert.Equal(t, "task-42", res.TaskID)
	assert.Equal(t, "Hi team. Deploy is green.", res.Text)
	require.Len(t, res.Segments, 2)
	assert.Equal(t, "Speaker 1", res.Segments[0].Speaker)
	assert.Equal(t, "Hi team.", res.Segments[0].Text)
	assert.InDelta(t, 0.85, res.Segments[0].Confidence, 1e-9)
	assert.Equal(t, "Alice", res.Segments[1].Speaker)
	assert.Equal(t, 1.2, res.Segments[1].Start)
	assert.Equal(t, 2.1, res.Segments[1].End)

	require.NotNil(t, res.RemainingQuota)
	assert.Equal(t, 6900.5, *res.RemainingQuota)
	require.NotNil(t, c.RemainingSeconds())
	assert.Equal(t, 6900.5, *c.RemainingSeconds())
	assert.EqualValues(t, 3, atomic.LoadInt32(&polls))
}

func TestTranscribe_OptionalSummaryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/recognize" {
			assert.Equal(t, "true", r.URL.Query().Get("summary"))
			assert.Equal(t, "15", r.URL.Query().Get("summary_size"))
			w.Write([]byte(`{"id":"t"}`))
			return
		}
		w.Write([]byte(`{"status":"finished","results":{"transcript":"ok"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) {
		o.Summary = true
		o.SummarySize = 15
	})
	res, err := c.Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Nil(t, res.RemainingQuota)
}

func TestTranscribe_Validation(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) { o.MaxUploadBytes = 4 })

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(t.TempDir(), "missing.webm")},
		{"empty", writeRecording(t, "empty.webm", nil)},
		{"too large", writeRecording(t, "big.webm", []byte("12345"))},
		{"unsupported", writeRecording(t, "notes.txt", []byte("1"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Transcribe(context.Background(), tt.path)
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.KindTranscription))
		})
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestTranscribe_ClientErrorNotRetried(t *testing.T) {
	var uploads int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&uploads, 1)
		http.Error(w, `{"message":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) {
		o.Retry = &resilience.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 1}
	})
	_, err := c.Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTranscription))
	assert.Contains(t, err.Error(), "status=401")
	assert.EqualValues(t, 1, atomic.LoadInt32(&uploads))
}

func TestTranscribe_ServerErrorRetried(t *testing.T) {
	var uploads int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/recognize" {
			if atomic.AddInt32(&uploads, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"id":"t"}`))
			return
		}
		w.Write([]byte(`{"status":"finished","results":{"transcript":"retried"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) {
		o.Retry = &resilience.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond, Multiplier: 1}
	})
	res, err := c.Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "retried", res.Text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&uploads))
}

func TestTranscribe_DefaultIsSingleAttempt(t *testing.T) {
	var uploads int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&uploads, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, nil).Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&uploads))
}

func TestTranscribe_TaskFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/recognize" {
			w.Write([]byte(`{"id":"t"}`))
			return
		}
		w.Write([]byte(`{"status":"failed","message":"unsupported codec"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, nil).Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTranscription))
	assert.Contains(t, err.Error(), "unsupported codec")
}

func TestTranscribe_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		results string
		want    string
	}{
		{"no status", `{"results":{}}`, "no status field"},
		{"finished without transcript", `{"status":"finished","results":{}}`, "no transcript"},
		{"finished without results", `{"status":"finished"}`, "no transcript"},
		{"not json", `<html>`, "unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/recognize" {
					w.Write([]byte(`{"id":"t"}`))
					return
				}
				w.Write([]byte(tt.results))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL, nil).Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTranscribe_UploadWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"quota exceeded"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, nil).Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no task id")
}

func TestTranscribe_ConnectionErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := testClient(srv.URL, func(o *Options) { o.APIKey = "SUPERSECRETKEY" })
	_, err := c.Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTranscription))
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
	assert.Contains(t, err.Error(), "redacted")
}

func TestTranscribe_PollConnectionErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/recognize" {
			w.Write([]byte(`{"id":"t"}`))
			return
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) { o.APIKey = "SUPERSECRETKEY" })
	_, err := c.Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
}

func TestRedactKey(t *testing.T) {
	err := redactKey(&url.Error{Op: "Get", URL: "http://h/results?key=abc&task=t1", Err: assert.AnError})
	assert.NotContains(t, err.Error(), "abc")
	assert.Contains(t, err.Error(), "task=t1")
	assert.ErrorIs(t, err, assert.AnError)

	err = redactKey(&url.Error{Op: "parse", URL: "::bad\x7f?key=abc", Err: assert.AnError})
	assert.NotContains(t, err.Error(), "abc")

	assert.Equal(t, assert.AnError, redactKey(assert.AnError))
}

func TestTranscribe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/recognize" {
			w.Write([]byte(`{"id":"t"}`))
			return
		}
		w.Write([]byte(`{"status":"processing"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	_, err := c.Transcribe(context.Background(), writeRecording(t, "a.webm", []byte("x")))
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTranscription))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSegments_SpeakerTurns(t *testing.T) {
	words := []WordOffset{
		{Word: "Morning", StartTime: 0, EndTime: 0.5, Confidence: 1},
		{Word: "all.", StartTime: 0.5, EndTime: 1, Confidence: 1},
		{Word: "Hey.", StartTime: 3, EndTime: 3.4, Confidence: 0.5},
	}
	turns := []SpeakerTurn{
		{Speaker: "A", StartTime: 0, EndTime: 2},
		{Speaker: "B", StartTime: 2, EndTime: 5},
	}

	segs := Segments(words, turns)
	require.Len(t, segs, 2)
	assert.Equal(t, "A", segs[0].Speaker)
	assert.Equal(t, "Morning all.", segs[0].Text)
	assert.Equal(t, "B", segs[1].Speaker)
}

func TestSegments_NoSpeakers(t *testing.T) {
	words := []WordOffset{
		{Word: "One", EndTime: 1, Confidence: 1},
		{Word: "two.", EndTime: 2, Confidence: 1},
		{Word: "Three", EndTime: 3, Confidence: 1},
	}

	segs := Segments(words, nil)
	require.Len(t, segs, 2)
	for _, s := range segs {
		assert.Empty(t, s.Speaker)
	}
	assert.Equal(t, "One two.", segs[0].Text)
	assert.Equal(t, "Three", segs[1].Text)

	assert.Nil(t, Segments(nil, nil))
}

func TestLabel_Unmarshal(t *testing.T) {
	var w WordOffset
	require.NoError(t, json.Unmarshal([]byte(`{"word":"x","speaker":2}`), &w))
	assert.Equal(t, "Speaker 2", w.Speaker.Name())

	require.NoError(t, json.Unmarshal([]byte(`{"word":"x","speaker":" Bob "}`), &w))
	assert.Equal(t, "Bob", w.Speaker.Name())

	w = WordOffset{}
	require.NoError(t, json.Unmarshal([]byte(`{"word":"x","speaker":null}`), &w))
	assert.Empty(t, w.Speaker.Name())
}
