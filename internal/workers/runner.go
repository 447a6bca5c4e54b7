package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/internal/service"
	"github.com/harborview/dms-storage-api/pkg/config"
)

type queueDrainer interface {
	Drain(ctx context.Context, batchSize int) (int, error)
	Clean(ctx context.Context, olderThan time.Duration) (int64, error)
	Stats(ctx context.Context) (*models.QueueStats, error)
}

type automationRunner interface {
	Run(ctx context.Context) (int, error)
}

type cacheSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Runner drives the periodic background loops: queue draining, queue
// housekeeping, automation scans, and cache sweeps. Every loop stops
// when the root context is cancelled.
type Runner struct {
	queue      queueDrainer
	automation automationRunner
	cache      cacheSweeper
	metrics    *service.MetricsService
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRunner wires the background loops.
func NewRunner(queue queueDrainer, automation automationRunner, cache cacheSweeper, metrics *service.MetricsService, cfg *config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:      queue,
		automation: automation,
		cache:      cache,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start launches every loop in its own goroutine and returns immediately.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx, "queue_drain", r.cfg.SyncQueue.DrainInterval, r.drainQueue)
	go r.loop(ctx, "queue_clean", 24*time.Hour, r.cleanQueue)
	go r.loop(ctx, "cache_sweep", r.cfg.Cache.SweepInterval, r.sweepCache)
	if r.cfg.Automation.Enabled {
		go r.loop(ctx, "automation_scan", r.cfg.Automation.ScanInterval, r.runAutomation)
	}
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		r.logger.Warn("background loop disabled", zap.String("loop", name))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("background loop started", zap.String("loop", name), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("background loop stopped", zap.String("loop", name))
			return
		case <-ticker.C:
			r.run(ctx, name, fn)
		}
	}
}

// run isolates one tick so a panic never kills the loop.
func (r *Runner) run(ctx context.Context, name string, fn func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("background loop panicked", zap.String("loop", name), zap.Any("panic", rec))
		}
	}()
	fn(ctx)
}

func (r *Runner) drainQueue(ctx context.Context) {
	completed, err := r.queue.Drain(ctx, r.cfg.SyncQueue.DrainBatchSize)
	if err != nil {
		r.logger.Warn("queue drain failed", zap.Error(err))
		return
	}
	r.metrics.RecordQueueCompleted(completed)
	if stats, err := r.queue.Stats(ctx); err == nil {
		r.metrics.SetQueueDepth(stats.Pending, stats.Processing, stats.Completed, stats.Failed)
	}
}

func (r *Runner) cleanQueue(ctx context.Context) {
	olderThan := time.Duration(r.cfg.SyncQueue.CleanAfterDays) * 24 * time.Hour
	if olderThan <= 0 {
		return
	}
	removed, err := r.queue.Clean(ctx, olderThan)
	if err != nil {
		r.logger.Warn("queue clean failed", zap.Error(err))
		return
	}
	if removed > 0 {
		r.logger.Info("queue cleaned", zap.Int64("removed", removed))
	}
}

func (r *Runner) sweepCache(ctx context.Context) {
	evicted, err := r.cache.Sweep(ctx)
	if err != nil {
		r.logger.Warn("cache sweep failed", zap.Error(err))
		return
	}
	r.metrics.RecordCacheEvictions(evicted)
}

func (r *Runner) runAutomation(ctx context.Context) {
	moved, err := r.automation.Run(ctx)
	if err != nil {
		r.logger.Warn("automation scan failed", zap.Error(err))
		return
	}
	if moved > 0 {
		r.logger.Info("automation scan finished", zap.Int("moved", moved))
	}
}
