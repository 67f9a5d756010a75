package services

import (
	"context"
	"time"

	"cookbook/internal/logging"
	"cookbook/internal/metrics"
	"cookbook/internal/storage"
)

// TempJanitor removes avatars of sign-ups that were never verified.
type TempJanitor struct {
	files     storage.Storage
	olderThan time.Duration
	metrics   *metrics.Metrics
	log       logging.Logger
}

func NewTempJanitor(files storage.Storage, olderThan time.Duration, m *metrics.Metrics, log logging.Logger) *TempJanitor {
	return &TempJanitor{files: files, olderThan: olderThan, metrics: m, log: log}
}

func (j *TempJanitor) RunOnce(ctx context.Context) int {
	n, err := j.files.PurgeTemp(ctx, j.olderThan)
	if err != nil {
		j.log.Warn(ctx, "[janitor][temp] purge failed", "removed", n, "err", err)
	}
	if n > 0 {
		j.log.Info(ctx, "[janitor][temp] purged", "removed", n)
		if j.metrics != nil {
			j.metrics.TempPurged.Add(float64(n))
		}
	}
	return n
}

// Run чистит tmp/ каждые interval до отмены ctx.
func (j *TempJanitor) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.RunOnce(ctx)
		}
	}
}
