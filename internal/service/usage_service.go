package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/models"
)

const (
	usageCountKeyPrefix = "usage:count:"
	usageLastKeyPrefix  = "usage:last:"
)

// UsageService keeps per-file access counters in Redis. Counters feed the
// automation scanner; losing them only delays reclassification, so every
// operation here is best-effort.
type UsageService struct {
	client *redis.Client
	logger *zap.Logger
}

// NewUsageService constructs a UsageService.
func NewUsageService(client *redis.Client, logger *zap.Logger) *UsageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageService{client: client, logger: logger}
}

// RecordAccess bumps the access counter and stamps the last access time.
func (s *UsageService) RecordAccess(ctx context.Context, fileID string) {
	if s.client == nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	pipe := s.client.Pipeline()
	pipe.Incr(ctx, usageCountKeyPrefix+fileID)
	pipe.Set(ctx, usageLastKeyPrefix+fileID, now, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("failed to record file access", zap.String("file_id", fileID), zap.Error(err))
	}
}

// Snapshot reads one file's counters. Missing keys read as zero/never.
func (s *UsageService) Snapshot(ctx context.Context, fileID string) (int64, *time.Time) {
	if s.client == nil {
		return 0, nil
	}
	count, err := s.client.Get(ctx, usageCountKeyPrefix+fileID).Int64()
	if err != nil && err != redis.Nil {
		s.logger.Warn("failed to read access counter", zap.String("file_id", fileID), zap.Error(err))
	}
	var last *time.Time
	if raw, err := s.client.Get(ctx, usageLastKeyPrefix+fileID).Result(); err == nil {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			last = &t
		}
	}
	return count, last
}

// Overlay fills access counters onto the scanner's usage rows in place.
func (s *UsageService) Overlay(ctx context.Context, usage []models.FileUsage) {
	if s.client == nil || len(usage) == 0 {
		return
	}
	pipe := s.client.Pipeline()
	counts := make([]*redis.StringCmd, len(usage))
	lasts := make([]*redis.StringCmd, len(usage))
	for i := range usage {
		counts[i] = pipe.Get(ctx, usageCountKeyPrefix+usage[i].FileID)
		lasts[i] = pipe.Get(ctx, usageLastKeyPrefix+usage[i].FileID)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		s.logger.Warn("failed to overlay access counters", zap.Error(err))
	}
	for i := range usage {
		if n, err := counts[i].Int64(); err == nil {
			usage[i].AccessCount = n
		}
		if raw, err := lasts[i].Result(); err == nil {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				usage[i].LastAccessedAt = &t
			}
		}
	}
}

// Reset clears a file's counters, used when the file is hard-deleted.
func (s *UsageService) Reset(ctx context.Context, fileID string) {
	if s.client == nil {
		return
	}
	if err := s.client.Del(ctx, usageCountKeyPrefix+fileID, usageLastKeyPrefix+fileID).Err(); err != nil {
		s.logger.Warn("failed to reset access counters", zap.String("file_id", fileID), zap.Error(err))
	}
}
