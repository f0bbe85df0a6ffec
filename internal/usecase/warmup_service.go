package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/softball-stats/internal/domain/stats"
	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

type cacheRefresher interface {
	RefreshStats(ctx context.Context, category stats.Category) error
	RefreshRankings(ctx context.Context) error
}

type WarmupResult struct {
	Refreshed  int
	Failed     int
	DurationMs int64
}

// WarmupService refreshes cached leaderboards and rankings ahead of
// requests. Upstream calls still pass through the shared rate limiter, so
// extra workers only overlap decoding and cache writes.
type WarmupService struct {
	refresher cacheRefresher
	workers   int
	logger    *logging.Logger
}

func NewWarmupService(refresher cacheRefresher, workers int, logger *logging.Logger) *WarmupService {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WarmupService{
		refresher: refresher,
		workers:   workers,
		logger:    logger,
	}
}

type warmupTask struct {
	name string
	run  func(ctx context.Context) error
}

func (s *WarmupService) tasks() []warmupTask {
	out := []warmupTask{{name: "rankings", run: s.refresher.RefreshRankings}}
	for _, category := range stats.Categories() {
		category := category
		out = append(out, warmupTask{
			name: "stats:" + category.String(),
			run: func(ctx context.Context) error {
				return s.refresher.RefreshStats(ctx, category)
			},
		})
	}
	return out
}

// RunOnce refreshes every target once. Individual failures are counted,
// not returned.
func (s *WarmupService) RunOnce(ctx context.Context) (WarmupResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WarmupService.RunOnce")
	defer span.End()

	start := time.Now()
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return WarmupResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		refreshed atomic.Int32
		failed    atomic.Int32
		workers   sync.WaitGroup
	)
	for _, task := range s.tasks() {
		task := task
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			if ctx.Err() != nil {
				failed.Add(1)
				return
			}
			if err := task.run(ctx); err != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "cache warmup task failed", "task", task.name, "error", err)
				return
			}
			refreshed.Add(1)
		}); err != nil {
			workers.Done()
			return WarmupResult{}, fmt.Errorf("submit warmup task %s: %w", task.name, err)
		}
	}
	workers.Wait()

	result := WarmupResult{
		Refreshed:  int(refreshed.Load()),
		Failed:     int(failed.Load()),
		DurationMs: time.Since(start).Milliseconds(),
	}
	s.logger.InfoContext(ctx, "cache warmup finished",
		"refreshed", result.Refreshed,
		"failed", result.Failed,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// Run warms immediately and then every interval until ctx is done.
func (s *WarmupService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "cache warmup run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
