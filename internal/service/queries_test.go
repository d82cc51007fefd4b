package service

import (
	"context"
	"testing"
	"time"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/models"
	"queuedesk/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueStatusGroupsByStatus(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Payments")
	desk := f.counter(svc.ID, "Desk 1")

	f.ticket("v1", svc.ID)
	f.advance(time.Second)
	f.present("p1", svc.ID)
	f.advance(time.Second)
	f.present("p2", svc.ID)
	_, err := f.svcs.Tickets.CallNext(f.ctx, desk.ID, svc.ID, models.RoleCounterStaff)
	require.NoError(t, err)

	status, err := f.svcs.Queries.QueueStatus(f.ctx)
	require.NoError(t, err)
	require.Len(t, status.VirtualTickets, 1)
	assert.Equal(t, "v1", status.VirtualTickets[0].UserID)
	require.Len(t, status.PhysicalTickets, 1)
	assert.Equal(t, "p2", status.PhysicalTickets[0].UserID)
	require.Contains(t, status.CurrentServing, desk.ID)
	assert.Equal(t, "p1", status.CurrentServing[desk.ID].UserID)
	assert.Equal(t, "1Desk 1", status.CurrentServing[desk.ID].RoomNumber)
}

func TestActiveTicket(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Payments")

	got, err := f.svcs.Queries.ActiveTicket(f.ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	tk := f.ticket("u1", svc.ID)
	got, err = f.svcs.Queries.ActiveTicket(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
}

func TestTodayStatisticsWeightsByCount(t *testing.T) {
	f := newFixture(t)
	pay := f.service("Payments")
	acc := f.service("Accounts")
	idle := f.service("Zoning")
	payDesk := f.counter(pay.ID, "P1")
	accDesk := f.counter(acc.ID, "A1")

	f.present("a", pay.ID)
	f.present("b", pay.ID)
	f.present("c", acc.ID)
	for _, step := range []struct {
		desk, svc string
		wait      time.Duration
	}{
		{payDesk.ID, pay.ID, 0},
		{payDesk.ID, pay.ID, 2 * time.Minute}, // a served after 2
		{payDesk.ID, pay.ID, 2 * time.Minute}, // b served after 4
		{accDesk.ID, acc.ID, 0},
		{accDesk.ID, acc.ID, 4 * time.Minute}, // c served after 8
	} {
		f.advance(step.wait)
		_, err := f.svcs.Tickets.CallNext(f.ctx, step.desk, step.svc, models.RoleCounterStaff)
		require.NoError(t, err)
	}

	today, err := f.svcs.Queries.TodayStatistics(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, today.TotalServedToday)
	assert.InDelta(t, (2.0+4.0+8.0)/3.0, today.OverallAvgWaitTime, 1e-9)
	assert.Equal(t, 2, today.ServedTodayByService[pay.ID])
	assert.InDelta(t, 3.0, today.AvgWaitTimeByService[pay.ID], 1e-9)
	assert.Equal(t, 1, today.ServedTodayByService[acc.ID])
	assert.Contains(t, today.ServedTodayByService, idle.ID)
	assert.Zero(t, today.ServedTodayByService[idle.ID])

	daily, err := f.svcs.Queries.Daily(f.ctx, "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, 3, daily.TotalServed)
	assert.Len(t, daily.ServiceStats, 3)
	assert.Equal(t, []models.HourlyStat{{Hour: "09", Count: 3}}, daily.HourlyStats)

	svcStats, err := f.svcs.Queries.ServiceStatistics(f.ctx, pay.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, svcStats.TotalServedToday)
	require.Len(t, svcStats.Last30Days, 1)
	assert.Equal(t, "2025-03-14", svcStats.Last30Days[0].Date)
	assert.Equal(t, 2, svcStats.Last30Days[0].TotalServed)
}

func TestOverviewHistory(t *testing.T) {
	f := newFixture(t)
	a := f.service("Payments")
	b := f.service("Accounts")

	rows := []models.DailyStatistic{
		{ID: "1", Date: "2025-03-01", ServiceID: a.ID, TotalServed: 50, AvgWaitTime: 1}, // older than a week
		{ID: "2", Date: "2025-03-10", ServiceID: a.ID, TotalServed: 1, AvgWaitTime: 2},
		{ID: "3", Date: "2025-03-10", ServiceID: b.ID, TotalServed: 3, AvgWaitTime: 6},
		{ID: "4", Date: "2025-03-12", ServiceID: b.ID, TotalServed: 2, AvgWaitTime: 4},
	}
	require.NoError(t, f.store.WithinTx(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		for i := range rows {
			if err := tx.SaveDailyStatistic(ctx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	overview, err := f.svcs.Queries.Overview(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.DailyPoint{
		{Date: "2025-03-10", TotalServed: 4, AvgWaitTime: 5},
		{Date: "2025-03-12", TotalServed: 2, AvgWaitTime: 4},
	}, overview.HistoricalData.Overall)
	assert.Len(t, overview.HistoricalData.ByService[b.ID], 2)
	assert.Len(t, overview.HistoricalData.ByService[a.ID], 1)

	rng, err := f.svcs.Queries.Range(f.ctx, "2025-03-01", "2025-03-10", "")
	require.NoError(t, err)
	assert.Len(t, rng.Statistics, 3)
}

func TestStatisticsValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svcs.Queries.Daily(f.ctx, "2025-3-14")
	assert.ErrorIs(t, err, apperrors.ErrInvalidDate)

	_, err = f.svcs.Queries.Daily(f.ctx, "2025-02-30")
	assert.ErrorIs(t, err, apperrors.ErrInvalidDate)

	_, err = f.svcs.Queries.Range(f.ctx, "2025-03-10", "2025-03-01", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)

	_, err = f.svcs.Queries.Range(f.ctx, "2023-01-01", "2025-01-01", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)

	_, err = f.svcs.Queries.ServiceStatistics(f.ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrServiceNotFound)

	_, err = f.svcs.Queries.GetCounter(f.ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrCounterNotFound)
}

type fakeSearcher struct {
	got models.TicketSearchRequest
}

func (s *fakeSearcher) SearchTickets(_ context.Context, req models.TicketSearchRequest) (*models.TicketSearchResponse, error) {
	s.got = req
	return &models.TicketSearchResponse{Total: 1, Tickets: []models.Ticket{{ID: "t1"}}}, nil
}

func TestSearchTickets(t *testing.T) {
	f := newFixture(t)

	_, err := f.svcs.Queries.SearchTickets(f.ctx, models.TicketSearchRequest{Query: "PA"})
	assert.ErrorIs(t, err, apperrors.ErrSearchDisabled)

	searcher := &fakeSearcher{}
	q := NewQueryService(f.store, newClock(time.UTC, nil), searcher)

	_, err = q.SearchTickets(f.ctx, models.TicketSearchRequest{Status: "lost"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	res, err := q.SearchTickets(f.ctx, models.TicketSearchRequest{Query: "  PA25 ", PageSize: 1000})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
	assert.Equal(t, "PA25", searcher.got.Query)
	assert.Equal(t, 1, searcher.got.Page)
	assert.Equal(t, 100, searcher.got.PageSize)
}
