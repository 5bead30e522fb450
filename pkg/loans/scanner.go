package loans

import (
	"context"
	"log"
	"time"
)

// Scanner runs the overdue sweep on a fixed interval. It shares the
// status-guarded transition with user-initiated returns, so a return landing
// mid-sweep simply wins for that loan.
type Scanner struct {
	service  *Service
	interval time.Duration
}

func NewScanner(service *Service, interval time.Duration) *Scanner {
	return &Scanner{
		service:  service,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (sc *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			overdue, err := sc.service.OverdueLoans()
			if err != nil {
				log.Printf("overdue scan failed: %v", err)
				continue
			}
			if len(overdue) > 0 {
				log.Printf("overdue scan: %d loans overdue", len(overdue))
			}
		}
	}
}
