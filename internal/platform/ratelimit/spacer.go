package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

// DefaultInterval is the minimum spacing the stats provider tolerates.
const DefaultInterval = time.Second

// Limiter gates outbound requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Spacer keeps consecutive outbound requests at least interval apart within
// one process. Concurrent callers are handed successive slots, so a burst of
// N callers finishes over roughly (N-1)*interval.
type Spacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	logger   *logging.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSpacer(interval time.Duration, logger *logging.Logger) *Spacer {
	if interval < 0 {
		interval = 0
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Spacer{
		interval: interval,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until the caller's slot is due. The slot is reserved even if
// ctx ends first.
func (s *Spacer) Wait(ctx context.Context) error {
	s.mu.Lock()
	now := s.now()
	slot := now
	if !s.last.IsZero() {
		if earliest := s.last.Add(s.interval); earliest.After(now) {
			slot = earliest
		}
	}
	s.last = slot
	s.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}

	s.logger.DebugContext(ctx, "spacing upstream request", "wait_ms", wait.Milliseconds())
	return s.sleep(ctx, wait)
}

// Last returns the most recently reserved slot.
func (s *Spacer) Last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
