package cache

import (
	"context"
	"meetscribe/pkg/model"
	"time"
)

// Cache defines the interface for cache operations
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// QuotaRecord is the cached view of a provider's remaining allowance
type QuotaRecord struct {
	Provider         string    `json:"provider"`
	RemainingSeconds float64   `json:"remaining_seconds"`
	ReportedAt       time.Time `json:"reported_at"`
}

// QuotaStore persists the last known quota across runs
type QuotaStore struct {
	cache    Cache
	provider string
}

func NewQuotaStore(c Cache, provider string) *QuotaStore {
	return &QuotaStore{cache: c, provider: provider}
}

// Last returns the previously cached quota, or nil when none is cached
func (q *QuotaStore) Last(ctx context.Context) (*QuotaRecord, error) {
	var rec QuotaRecord
	if err := q.cache.Get(ctx, QuotaCacheKey(q.provider), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save stores the quota reported now
func (q *QuotaStore) Save(ctx context.Context, remainingSeconds float64) error {
	return q.cache.Set(ctx, QuotaCacheKey(q.provider), QuotaRecord{
		Provider:         q.provider,
		RemainingSeconds: remainingSeconds,
		ReportedAt:       time.Now(),
	})
}

func (q *QuotaStore) Name() string {
	return "redis"
}

// Publish caches the quota reported during the run, if any, and the run
// report itself.
func (q *QuotaStore) Publish(ctx context.Context, report *model.BatchReport) error {
	if report.RemainingQuota != nil {
		if err := q.Save(ctx, *report.RemainingQuota); err != nil {
			return err
		}
	}
	return q.cache.Set(ctx, LastRunCacheKey(), report)
}

// LastRun returns the report of the most recent run
func (q *QuotaStore) LastRun(ctx context.Context) (*model.BatchReport, error) {
	var report model.BatchReport
	if err := q.cache.Get(ctx, LastRunCacheKey(), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
