package speechtext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"meetscribe/pkg/model"
	"meetscribe/pkg/resilience"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL      = "https://api.speechtext.ai"
	DefaultPollInterval = 15 * time.Second
	DefaultTimeout      = 2 * time.Hour

	pollRequestTimeout = 60 * time.Second
	maxErrorBody       = 2048
)

// Options configures the SpeechText.AI client
type Options struct {
	APIKey         string
	BaseURL        string
	Language       string
	Punctuation    bool
	Speakers       bool
	Summary        bool
	SummarySize    int
	PollInterval   time.Duration
	Timeout        time.Duration
	MaxUploadBytes int64
	Extensions     []string
	Retry          *resilience.RetryConfig
	UploadInterval time.Duration
}

// Client uploads recordings to SpeechText.AI and polls for the result
type Client struct {
	opts    Options
	client  *http.Client
	limiter *resilience.RateLimiter
	log     *zap.Logger

	mu        sync.Mutex
	remaining *float64
}

func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry == nil {
		opts.Retry = &resilience.RetryConfig{MaxAttempts: 1}
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		opts: opts,
		// Uploads can be large; deadlines come from the request context.
		client:  &http.Client{},
		limiter: resilience.NewRateLimiter(1, opts.UploadInterval),
		log:     log,
	}

	retry := *opts.Retry
	retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.log.Warn("Upload failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	c.opts.Retry = &retry

	return c
}

// RemainingSeconds returns the last quota value reported by the service
func (c *Client) RemainingSeconds() *float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining == nil {
		return nil
	}
	v := *c.remaining
	return &v
}

// Transcribe uploads the recording at path and waits for the finished
// transcript. Every failure is a TranscriptionError.
func (c *Client) Transcribe(ctx context.Context, path string) (*model.TranscriptionResult, error) {
	info, err := c.validate(path)
	if err != nil {
		return nil, model.NewTranscriptionError("validate "+filepath.Base(path), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	taskID, err := c.Upload(ctx, path, info.Size())
	if err != nil {
		return nil, model.NewTranscriptionError("upload "+filepath.Base(path), err)
	}

	res, err := c.Poll(ctx, taskID)
	if err != nil {
		return nil, model.NewTranscriptionError("poll task "+taskID, err)
	}

	return res, nil
}

func (c *Client) validate(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return nil, errors.New("file is empty")
	}
	if c.opts.MaxUploadBytes > 0 && info.Size() > c.opts.MaxUploadBytes {
		return nil, fmt.Errorf("file size %d exceeds upload limit %d", info.Size(), c.opts.MaxUploadBytes)
	}

	ext := Format(path)
	if len(c.opts.Extensions) > 0 && !contains(c.opts.Extensions, ext) {
		return nil, fmt.Errorf("unsupported format %q", ext)
	}

	return info, nil
}

// Upload sends the file and returns the task id
func (c *Client) Upload(ctx context.Context, path string, size int64) (string, error) {
	var taskID string

	err := resilience.RetryWithExponentialBackoff(ctx, c.opts.Retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}

		id, err := c.upload(ctx, path, size)
		if err != nil {
			return err
		}
		taskID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return taskID, nil
}

func (c *Client) upload(ctx context.Context, path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("open: %w", err))
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recognizeURL(path), f)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("failed to create request: %w", redactKey(err)))
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	c.log.Info("Uploading recording",
		zap.String("file", filepath.Base(path)),
		zap.Int64("size", size))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", redactKey(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("upload rejected: status=%d, body=%s", resp.StatusCode, truncate(body))
		if isClientError(resp.StatusCode) {
			return "", resilience.Permanent(err)
		}
		return "", err
	}

	var up UploadResponse
	if err := json.Unmarshal(body, &up); err != nil {
		return "", resilience.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if up.ID == "" {
		return "", resilience.Permanent(fmt.Errorf("upload response has no task id: %s", truncate(body)))
	}

	c.log.Info("Upload accepted", zap.String("task_id", up.ID))

	return up.ID, nil
}

// Poll waits until the task is finished or failed
func (c *Client) Poll(ctx context.Context, taskID string) (*model.TranscriptionResult, error) {
	started := time.Now()

	for poll := 1; ; poll++ {
		resp, err := c.fetchResults(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if resp.RemainingSeconds != nil {
			c.setRemaining(*resp.RemainingSeconds)
		}

		status := *resp.Status
		c.log.Debug("Transcription status",
			zap.String("task_id", taskID),
			zap.String("status", status),
			zap.Int("poll", poll),
			zap.Duration("elapsed", time.Since(started)))

		switch status {
		case StatusFinished:
			res, err := BuildResult(taskID, resp)
			if err != nil {
				return nil, err
			}
			c.log.Info("Transcription finished",
				zap.String("task_id", taskID),
				zap.Int("segments", len(res.Segments)),
				zap.Duration("elapsed", time.Since(started)))
			return res, nil
		case StatusFailed:
			msg := resp.Message
			if msg == "" {
				msg = "no details"
			}
			return nil, fmt.Errorf("task failed: %s", msg)
		}

		timer := time.NewTimer(c.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for task after %d polls: %w", poll, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) fetchResults(ctx context.Context, taskID string) (*ResultsResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, pollRequestTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("key", c.opts.APIKey)
	q.Set("task", taskID)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.opts.BaseURL+"/results?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", redactKey(err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", redactKey(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results request failed: status=%d, body=%s", resp.StatusCode, truncate(body))
	}

	var rr ResultsResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if rr.Status == nil {
		return nil, fmt.Errorf("unexpected response format: no status field: %s", truncate(body))
	}

	return &rr, nil
}

func (c *Client) recognizeURL(path string) string {
	q := url.Values{}
	q.Set("key", c.opts.APIKey)
	q.Set("language", c.opts.Language)
	q.Set("punctuation", strconv.FormatBool(c.opts.Punctuation))
	q.Set("format", Format(path))
	q.Set("speakers", strconv.FormatBool(c.opts.Speakers))
	if c.opts.Summary {
		q.Set("summary", "true")
		q.Set("summary_size", strconv.Itoa(c.opts.SummarySize))
	}
	return c.opts.BaseURL + "/recognize?" + q.Encode()
}

func (c *Client) setRemaining(v float64) {
	c.mu.Lock()
	c.remaining = &v
	c.mu.Unlock()
}

// Format returns the lowercase extension of path without the dot
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// redactKey masks the key query parameter in the URL quoted by transport
// errors, which end up in logs and reports.
func redactKey(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		uerr.URL = "<redacted>"
		return err
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "<redacted>")
		u.RawQuery = q.Encode()
	}
	uerr.URL = u.String()
	return err
}

func isClientError(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimPrefix(s, "."), v) {
			return true
		}
	}
	return false
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
