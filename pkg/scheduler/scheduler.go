package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evently/ticketing/internal/service"
)

// Scheduler periodically fails payment sessions whose checkout was abandoned
// before the provider ever called back.
type Scheduler struct {
	paymentService service.PaymentService
	interval       time.Duration
	sessionTTL     time.Duration
}

func NewScheduler(paymentService service.PaymentService, interval, sessionTTL time.Duration) *Scheduler {
	return &Scheduler{
		paymentService: paymentService,
		interval:       interval,
		sessionTTL:     sessionTTL,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.paymentService.SweepStaleSessions(ctx, s.sessionTTL); err != nil {
				logrus.Errorf("Error sweeping stale payment sessions: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
