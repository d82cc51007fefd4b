package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"queuedesk/internal/service"
)

// Reconciler repairs daily statistics from the served tickets.
type Reconciler interface {
	RecentDates(n int) []string
	Reconcile(ctx context.Context, date string) (*service.ReconcileReport, error)
}

// StatisticsReconcileJob periodically recomputes recent daily statistics so
// rows that drifted (lost increments, manual edits) converge to the tickets.
type StatisticsReconcileJob struct {
	stats    Reconciler
	interval time.Duration
	days     int
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	running  sync.Mutex
}

func NewStatisticsReconcileJob(stats Reconciler, interval time.Duration, days int) *StatisticsReconcileJob {
	if days <= 0 {
		days = 1
	}
	return &StatisticsReconcileJob{
		stats:    stats,
		interval: interval,
		days:     days,
		done:     make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval.
func (j *StatisticsReconcileJob) Start(ctx context.Context) {
	slog.Info("Starting statistics reconcile job", "interval", j.interval, "days", j.days)

	j.ticker = time.NewTicker(j.interval)

	go j.RunOnce(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Statistics reconcile job stopped")
				return
			}
		}
	}()
}

func (j *StatisticsReconcileJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

// RunOnce reconciles the configured window. Overlapping runs are skipped.
func (j *StatisticsReconcileJob) RunOnce(ctx context.Context) int {
	if !j.running.TryLock() {
		slog.Debug("Statistics reconcile already running")
		return 0
	}
	defer j.running.Unlock()

	repaired := 0
	for _, date := range j.stats.RecentDates(j.days) {
		report, err := j.stats.Reconcile(ctx, date)
		if err != nil {
			slog.Error("Failed to reconcile statistics", "date", date, "error", err)
			continue
		}
		repaired += len(report.Repaired)
		if len(report.Repaired) > 0 {
			slog.Info("Reconciled statistics", "date", date, "checked", report.Checked, "repaired", len(report.Repaired))
		}
	}
	return repaired
}
