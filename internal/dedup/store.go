package dedup

import (
	"context"
	"time"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/metrics"
	"chatgate/pkg/tracing"
)

// StoreCache keeps event ids in a shared store so several gateway replicas
// share one dedup window. Entries expire through the store's TTL.
type StoreCache struct {
	repo             Repository
	window           time.Duration
	onStoreError     string
	now              Clock
	logger           logger.Logger
	cancelMetricsCtx context.CancelFunc
}

func NewStoreCache(repo Repository, cfg config.DedupConfig, log logger.Logger) *StoreCache {
	window := cfg.Window
	if window <= 0 {
		window = constants.DefaultDedupWindow
	}
	onStoreError := cfg.OnStoreError
	if onStoreError == "" {
		onStoreError = constants.FallbackAllow
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &StoreCache{
		repo:             repo,
		window:           window,
		onStoreError:     onStoreError,
		now:              time.Now,
		logger:           log,
		cancelMetricsCtx: cancel,
	}

	go s.updateCacheSizeMetrics(ctx, cfg.SweepInterval)

	return s
}

func (s *StoreCache) ShouldProcess(ctx context.Context, eventID string) bool {
	ctx, span := tracing.GetTracer(tracing.TracerName).Start(ctx, "dedup.should_process")
	defer span.End()

	start := time.Now()
	success, err := s.repo.SetNX(ctx, s.key(eventID), s.now().Unix(), s.window)
	duration := time.Since(start)

	if err != nil {
		s.recordMetrics(duration, "error")
		return s.handleStoreError(ctx, err, eventID)
	}

	status := "duplicate"
	if success {
		status = "unique"
	}
	s.recordMetrics(duration, status)
	return success
}

func (s *StoreCache) Release(ctx context.Context, eventID string) {
	if err := s.repo.Del(ctx, s.key(eventID)); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to release dedup entry",
			"event_id", eventID,
			"error", err,
		)
	}
}

func (s *StoreCache) key(eventID string) string {
	return constants.CacheKeyPrefixDedup + eventID
}

func (s *StoreCache) handleStoreError(ctx context.Context, err error, eventID string) bool {
	if s.onStoreError == constants.FallbackDeny {
		metrics.FallbackUsageTotal.WithLabelValues("dedup", "deny_on_error").Inc()
		s.logger.WarnwCtx(ctx, "Dedup store error, dropping event (fallback: deny)",
			"event_id", eventID,
			"error", err,
		)
		return false
	}

	metrics.FallbackUsageTotal.WithLabelValues("dedup", "allow_on_error").Inc()
	s.logger.WarnwCtx(ctx, "Dedup store error, processing event (fallback: allow)",
		"event_id", eventID,
		"error", err,
	)
	return true
}

func (s *StoreCache) recordMetrics(duration time.Duration, status string) {
	metrics.DedupChecksTotal.WithLabelValues(constants.DedupBackendRedis, status).Inc()
	metrics.ObserveDedupDuration(duration, status)
}

func (s *StoreCache) updateCacheSizeMetrics(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			size, err := s.repo.GetCacheSize(ctx, constants.CacheKeyPrefixDedup)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Debugw("Failed to get cache size for metrics",
					"error", err,
				)
				continue
			}
			metrics.SetDedupCacheSize(size)
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the background cache size updater.
func (s *StoreCache) Stop() {
	if s.cancelMetricsCtx != nil {
		s.cancelMetricsCtx()
	}
}
