package service

import (
	"context"
	"strings"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/models"
	"queuedesk/internal/repository"
)

const (
	overviewDays     = 7
	serviceStatsDays = 30
	maxRangeDays     = 366
)

// QueryService serves read-only projections. It never mutates the store.
type QueryService struct {
	store    repository.Store
	clock    clock
	searcher TicketSearcher
}

func NewQueryService(store repository.Store, clk clock, searcher TicketSearcher) *QueryService {
	return &QueryService{store: store, clock: clk, searcher: searcher}
}

var waitingStatuses = []models.TicketStatus{models.StatusVirtual, models.StatusPhysical, models.StatusServing}

// QueueStatus returns waiting tickets oldest first and the ticket served at each counter.
func (s *QueryService) QueueStatus(ctx context.Context) (*models.QueueStatus, error) {
	tickets, err := s.store.ListTickets(ctx, repository.TicketFilter{Statuses: waitingStatuses})
	if err != nil {
		return nil, err
	}

	status := &models.QueueStatus{
		VirtualTickets:  []models.Ticket{},
		PhysicalTickets: []models.Ticket{},
		CurrentServing:  map[string]models.Ticket{},
	}
	for _, t := range tickets {
		switch t.Status {
		case models.StatusVirtual:
			status.VirtualTickets = append(status.VirtualTickets, t)
		case models.StatusPhysical:
			status.PhysicalTickets = append(status.PhysicalTickets, t)
		case models.StatusServing:
			if t.CounterID != nil {
				status.CurrentServing[*t.CounterID] = t
			}
		}
	}
	return status, nil
}

// ActiveTicket returns the user's latest ticket that is not served, or nil.
func (s *QueryService) ActiveTicket(ctx context.Context, userID string) (*models.Ticket, error) {
	return s.store.ActiveTicketForUser(ctx, userID)
}

func (s *QueryService) ListServices(ctx context.Context) ([]models.Service, error) {
	return s.store.ListServices(ctx)
}

func (s *QueryService) GetService(ctx context.Context, id string) (*models.Service, error) {
	service, err := s.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, apperrors.ErrServiceNotFound
	}
	return service, nil
}

func (s *QueryService) ListCounters(ctx context.Context, serviceID string) ([]models.Counter, error) {
	return s.store.ListCounters(ctx, serviceID)
}

func (s *QueryService) GetCounter(ctx context.Context, id string) (*models.Counter, error) {
	counter, err := s.store.GetCounter(ctx, id)
	if err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, apperrors.ErrCounterNotFound
	}
	return counter, nil
}

// TodayStatistics is computed live from today's served tickets.
func (s *QueryService) TodayStatistics(ctx context.Context) (*models.TodayStatistics, error) {
	from, to, _ := s.clock.day(s.clock.Now())
	stats, err := s.store.ServedStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	today := summarize(stats)
	return &today, nil
}

func summarize(stats []models.ServiceDayStat) models.TodayStatistics {
	out := models.TodayStatistics{
		ServedTodayByService: make(map[string]int, len(stats)),
		AvgWaitTimeByService: make(map[string]float64, len(stats)),
	}
	var waitSum float64
	for _, st := range stats {
		out.ServedTodayByService[st.ServiceID] = st.ServedCount
		out.AvgWaitTimeByService[st.ServiceID] = st.AvgWaitTime
		out.TotalServedToday += st.ServedCount
		waitSum += st.AvgWaitTime * float64(st.ServedCount)
	}
	if out.TotalServedToday > 0 {
		out.OverallAvgWaitTime = waitSum / float64(out.TotalServedToday)
	}
	return out
}

// Overview is today's live figures plus the stored history of the last week.
func (s *QueryService) Overview(ctx context.Context) (*models.StatisticsOverview, error) {
	today, err := s.TodayStatistics(ctx)
	if err != nil {
		return nil, err
	}

	from, _, todayLabel := s.clock.day(s.clock.Now())
	rows, err := s.store.ListDailyStatistics(ctx, from.AddDate(0, 0, -overviewDays).Format(dateLayout), todayLabel, "")
	if err != nil {
		return nil, err
	}

	return &models.StatisticsOverview{
		TodayStatistics: *today,
		HistoricalData:  history(rows),
	}, nil
}

// history folds stored rows into an overall series, weighting each day's
// mean by the served count, and a per-service series.
func history(rows []models.DailyStatistic) models.HistoricalData {
	h := models.HistoricalData{
		Overall:   []models.DailyPoint{},
		ByService: map[string][]models.DailyPoint{},
	}

	index := map[string]int{}
	waitSums := map[string]float64{}
	for _, r := range rows {
		i, ok := index[r.Date]
		if !ok {
			i = len(h.Overall)
			index[r.Date] = i
			h.Overall = append(h.Overall, models.DailyPoint{Date: r.Date})
		}
		h.Overall[i].TotalServed += r.TotalServed
		waitSums[r.Date] += r.AvgWaitTime * float64(r.TotalServed)

		h.ByService[r.ServiceID] = append(h.ByService[r.ServiceID], models.DailyPoint{
			Date:        r.Date,
			TotalServed: r.TotalServed,
			AvgWaitTime: r.AvgWaitTime,
		})
	}
	for i := range h.Overall {
		if n := h.Overall[i].TotalServed; n > 0 {
			h.Overall[i].AvgWaitTime = waitSums[h.Overall[i].Date] / float64(n)
		}
	}
	return h
}

// Daily reports one day computed from the served tickets, with an hourly breakdown.
func (s *QueryService) Daily(ctx context.Context, date string) (*models.DailyStatistics, error) {
	from, to, err := s.clock.parseDate(date)
	if err != nil {
		return nil, err
	}

	stats, err := s.store.ServedStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	hourly, err := s.store.HourlyServed(ctx, from, to, s.clock.loc)
	if err != nil {
		return nil, err
	}

	sum := summarize(stats)
	return &models.DailyStatistics{
		Date:         date,
		TotalServed:  sum.TotalServedToday,
		AvgWaitTime:  sum.OverallAvgWaitTime,
		ServiceStats: stats,
		HourlyStats:  hourly,
	}, nil
}

// ServiceStatistics reports one service: today live, then the stored last 30 days.
func (s *QueryService) ServiceStatistics(ctx context.Context, serviceID string) (*models.ServiceStatistics, error) {
	service, err := s.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	from, to, todayLabel := s.clock.day(s.clock.Now())
	stats, err := s.store.ServedStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListDailyStatistics(ctx,
		from.AddDate(0, 0, -serviceStatsDays).Format(dateLayout), todayLabel, serviceID)
	if err != nil {
		return nil, err
	}

	out := &models.ServiceStatistics{Service: *service, Last30Days: []models.DailyPoint{}}
	for _, st := range stats {
		if st.ServiceID == serviceID {
			out.TotalServedToday = st.ServedCount
			out.AvgWaitTimeToday = st.AvgWaitTime
		}
	}
	for _, r := range rows {
		out.Last30Days = append(out.Last30Days, models.DailyPoint{
			Date:        r.Date,
			TotalServed: r.TotalServed,
			AvgWaitTime: r.AvgWaitTime,
		})
	}
	return out, nil
}

// Range lists stored rows for fromDate..toDate inclusive.
func (s *QueryService) Range(ctx context.Context, fromDate, toDate, serviceID string) (*models.StatisticsRange, error) {
	from, _, err := s.clock.parseDate(fromDate)
	if err != nil {
		return nil, err
	}
	to, _, err := s.clock.parseDate(toDate)
	if err != nil {
		return nil, err
	}
	if to.Before(from) || to.Sub(from).Hours()/24 > maxRangeDays {
		return nil, apperrors.ErrInvalidRange
	}

	rows, err := s.store.ListDailyStatistics(ctx, fromDate, toDate, serviceID)
	if err != nil {
		return nil, err
	}
	return &models.StatisticsRange{From: fromDate, To: toDate, Statistics: rows}, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SearchTickets queries the ticket index.
func (s *QueryService) SearchTickets(ctx context.Context, req models.TicketSearchRequest) (*models.TicketSearchResponse, error) {
	if s.searcher == nil {
		return nil, apperrors.ErrSearchDisabled
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Status != "" {
		if _, err := models.ParseTicketStatus(req.Status); err != nil {
			return nil, err
		}
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	return s.searcher.SearchTickets(ctx, req)
}
