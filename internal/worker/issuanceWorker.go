package worker

import (
	"context"
	"time"

	"github.com/evently/ticketing/internal/service"

	"github.com/sirupsen/logrus"
)

// IssuanceRecoveryWorker periodically finishes tickets that were issued
// without their QR artifact or confirmation email. It makes issuance
// eventually complete even when the original task was lost.
type IssuanceRecoveryWorker struct {
	issuanceSvc service.IssuanceService
	interval    time.Duration
	batchSize   int
}

func NewIssuanceRecoveryWorker(issuanceSvc service.IssuanceService, interval time.Duration, batchSize int) *IssuanceRecoveryWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &IssuanceRecoveryWorker{
		issuanceSvc: issuanceSvc,
		interval:    interval,
		batchSize:   batchSize,
	}
}

func (w *IssuanceRecoveryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Issuance recovery worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Issuance recovery worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *IssuanceRecoveryWorker) sweep(ctx context.Context) {
	processed, err := w.issuanceSvc.RecoverUnfinished(ctx, w.batchSize)
	if err != nil {
		logrus.Errorf("Issuance recovery sweep failed: %v", err)
		return
	}
	if processed > 0 {
		logrus.Infof("Issuance recovery processed %d unfinished tickets", processed)
	}
}
