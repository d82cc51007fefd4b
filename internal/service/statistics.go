package service

import (
	"context"
	"math"
	"time"

	"queuedesk/internal/events"
	"queuedesk/internal/logger"
	"queuedesk/internal/models"
	"queuedesk/internal/repository"
	"queuedesk/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// StatisticsService keeps one running (count, mean wait) row per service and day.
type StatisticsService struct {
	store repository.Store
	bus   *events.Bus
	clock clock
}

func NewStatisticsService(store repository.Store, bus *events.Bus, clk clock) *StatisticsService {
	return &StatisticsService{store: store, bus: bus, clock: clk}
}

func statsKey(serviceID, date string) string { return "stats:" + serviceID + ":" + date }

// RecordServed folds one served ticket into the day's statistics.
func (s *StatisticsService) RecordServed(ctx context.Context, serviceID string, createdAt, servedAt time.Time) (stat *models.DailyStatistic, err error) {
	ctx, span := telemetry.StartSpan(ctx, "statistics.record_served", attribute.String("service_id", serviceID))
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		stat, err = s.record(ctx, tx, serviceID, createdAt, servedAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{Kind: events.StatisticsUpdated, ServiceID: serviceID, Statistic: stat})
	return stat, nil
}

// record runs inside the caller's transaction.
func (s *StatisticsService) record(ctx context.Context, tx repository.Tx, serviceID string, createdAt, servedAt time.Time) (*models.DailyStatistic, error) {
	wait := float64(repository.WaitMinutes(createdAt, servedAt))
	_, _, date := s.clock.day(servedAt)

	if err := tx.LockKey(ctx, statsKey(serviceID, date)); err != nil {
		return nil, err
	}
	existing, err := tx.GetDailyStatistic(ctx, date, serviceID)
	if err != nil {
		return nil, err
	}

	stat := &models.DailyStatistic{
		ID:          uuid.NewString(),
		Date:        date,
		ServiceID:   serviceID,
		TotalServed: 1,
		AvgWaitTime: wait,
		UpdatedAt:   s.clock.Now(),
	}
	if existing != nil {
		n := float64(existing.TotalServed)
		stat.ID = existing.ID
		stat.CreatedAt = existing.CreatedAt
		stat.TotalServed = existing.TotalServed + 1
		stat.AvgWaitTime = (existing.AvgWaitTime*n + wait) / (n + 1)
	}

	if err := tx.SaveDailyStatistic(ctx, stat); err != nil {
		return nil, err
	}
	return stat, nil
}

// ReconcileReport lists the rows rewritten by Reconcile.
type ReconcileReport struct {
	Date     string                  `json:"date"`
	Checked  int                     `json:"checked"`
	Repaired []models.DailyStatistic `json:"repaired"`
}

const avgTolerance = 1e-6

// Reconcile recomputes the statistics of date from the served tickets and
// rewrites rows that drifted.
func (s *StatisticsService) Reconcile(ctx context.Context, date string) (report *ReconcileReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "statistics.reconcile", attribute.String("date", date))
	defer func() { telemetry.EndSpan(span, err) }()

	from, to, err := s.clock.parseDate(date)
	if err != nil {
		return nil, err
	}

	report = &ReconcileReport{Date: date, Repaired: []models.DailyStatistic{}}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		live, err := tx.ServedStats(ctx, from, to)
		if err != nil {
			return err
		}

		for _, l := range live {
			if err := tx.LockKey(ctx, statsKey(l.ServiceID, date)); err != nil {
				return err
			}
			stored, err := tx.GetDailyStatistic(ctx, date, l.ServiceID)
			if err != nil {
				return err
			}
			if stored == nil && l.ServedCount == 0 {
				continue
			}
			report.Checked++
			if stored != nil && stored.TotalServed == l.ServedCount &&
				math.Abs(stored.AvgWaitTime-l.AvgWaitTime) < avgTolerance {
				continue
			}

			fixed := &models.DailyStatistic{
				ID:          uuid.NewString(),
				Date:        date,
				ServiceID:   l.ServiceID,
				TotalServed: l.ServedCount,
				AvgWaitTime: l.AvgWaitTime,
				UpdatedAt:   s.clock.Now(),
			}
			if err := tx.SaveDailyStatistic(ctx, fixed); err != nil {
				return err
			}
			report.Repaired = append(report.Repaired, *fixed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range report.Repaired {
		st := report.Repaired[i]
		logger.WithContext(ctx).Warn("Daily statistic repaired",
			"date", date, "service_id", st.ServiceID, "total_served", st.TotalServed, "avg_wait_time", st.AvgWaitTime)
		s.bus.Publish(ctx, events.Event{Kind: events.StatisticsUpdated, ServiceID: st.ServiceID, Statistic: &st})
	}
	return report, nil
}

// RecentDates lists the last n local dates, today first.
func (s *StatisticsService) RecentDates(n int) []string {
	from, _, today := s.clock.day(s.clock.Now())
	dates := []string{today}
	for i := 1; i < n; i++ {
		dates = append(dates, from.AddDate(0, 0, -i).Format(dateLayout))
	}
	return dates
}
