package service

import (
	"context"
	"errors"
	"hash/fnv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

const (
	summaryKeyPrefix = "attendance:summary:"
	versionStripes   = 256
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheService fronts session summaries with Redis and records hit metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool

	// versions are bumped on every invalidation, striped by session id.
	versions [versionStripes]atomic.Uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// SummaryKey is the cache key of a session summary.
func SummaryKey(sessionID string) string {
	return summaryKeyPrefix + sessionID
}

// GetSummary returns a cached summary; ok is false on a miss or cache failure.
func (s *CacheService) GetSummary(ctx context.Context, sessionID string) (*models.AttendanceSummary, bool) {
	if !s.Enabled() {
		return nil, false
	}
	start := time.Now()
	var summary models.AttendanceSummary
	err := s.repo.Get(ctx, SummaryKey(sessionID), &summary)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, false
	}
	return &summary, true
}

// SummaryVersion is read before computing a summary and handed back to
// PutSummary, which skips the write if an invalidation ran in between.
func (s *CacheService) SummaryVersion(sessionID string) uint64 {
	if !s.Enabled() {
		return 0
	}
	return s.stripe(sessionID).Load()
}

func (s *CacheService) stripe(sessionID string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.versions[h.Sum32()%versionStripes]
}

// PutSummary stores a summary computed at version; failures are logged only.
// Versions are per process, so an invalidation on another instance can still
// leave a stale summary for at most the TTL.
func (s *CacheService) PutSummary(ctx context.Context, summary *models.AttendanceSummary, version uint64) {
	if !s.Enabled() || summary == nil {
		return
	}
	if s.stripe(summary.SessionID).Load() != version {
		s.logger.Debug("summary changed while computing, not cached", zap.String("session_id", summary.SessionID))
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, SummaryKey(summary.SessionID), summary, s.defaultTTL)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("session_id", summary.SessionID), zap.Error(err))
	}
}

// InvalidateSummary drops the cached summary after a write to the session.
func (s *CacheService) InvalidateSummary(ctx context.Context, sessionID string) {
	if !s.Enabled() {
		return
	}
	s.stripe(sessionID).Add(1)
	if err := s.repo.Delete(ctx, SummaryKey(sessionID)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
