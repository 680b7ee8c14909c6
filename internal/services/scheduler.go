package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace/internal/utils"
)

// Scheduler runs the expiry sweep on a fixed interval. A run that outlasts
// the interval makes the next tick skip instead of overlapping.
type Scheduler struct {
	Expiry   ExpiryService
	Interval time.Duration

	mu sync.Mutex
}

// Start blocks until ctx is cancelled. Call it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	utils.LogEvent("", "scheduler", "start", "interval="+interval.String())

	for {
		select {
		case <-ctx.Done():
			utils.LogEvent("", "scheduler", "stop", "context selesai")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.mu.TryLock() {
		utils.LogEvent("", "scheduler", "tick", "run sebelumnya masih jalan, skip")
		return
	}
	defer s.mu.Unlock()

	report, err := s.Expiry.Run(ctx)
	if err != nil {
		utils.LogEvent("", "scheduler", "run", "error: "+err.Error())
		return
	}
	if report.ArchivedProperties+report.ArchivedTours+report.ReleasedFailed > 0 {
		utils.LogEvent("", "scheduler", "run", fmt.Sprintf(
			"archived_properties=%d archived_tours=%d released_failed=%d",
			report.ArchivedProperties, report.ArchivedTours, report.ReleasedFailed))
	}
}
