package memory

import (
	"context"
	"time"

	"queuedesk/internal/models"
	"queuedesk/internal/repository"
)

// Store methods outside WithinTx take the mutex for a single call.

func (s *Store) LockKey(ctx context.Context, key string) error { return nil }

func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	t, done := s.view()
	defer done()
	return t.UpsertUser(ctx, user)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	t, done := s.view()
	defer done()
	return t.GetUser(ctx, id)
}

func (s *Store) CreateService(ctx context.Context, service *models.Service) error {
	t, done := s.view()
	defer done()
	return t.CreateService(ctx, service)
}

func (s *Store) GetService(ctx context.Context, id string) (*models.Service, error) {
	t, done := s.view()
	defer done()
	return t.GetService(ctx, id)
}

func (s *Store) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	t, done := s.view()
	defer done()
	return t.GetServiceByName(ctx, name)
}

func (s *Store) ListServices(ctx context.Context) ([]models.Service, error) {
	t, done := s.view()
	defer done()
	return t.ListServices(ctx)
}

func (s *Store) DeleteService(ctx context.Context, id string) (bool, error) {
	t, done := s.view()
	defer done()
	return t.DeleteService(ctx, id)
}

func (s *Store) CreateCounter(ctx context.Context, counter *models.Counter) error {
	t, done := s.view()
	defer done()
	return t.CreateCounter(ctx, counter)
}

func (s *Store) GetCounter(ctx context.Context, id string) (*models.Counter, error) {
	t, done := s.view()
	defer done()
	return t.GetCounter(ctx, id)
}

func (s *Store) ListCounters(ctx context.Context, serviceID string) ([]models.Counter, error) {
	t, done := s.view()
	defer done()
	return t.ListCounters(ctx, serviceID)
}

func (s *Store) DeleteCounter(ctx context.Context, id string) (bool, error) {
	t, done := s.view()
	defer done()
	return t.DeleteCounter(ctx, id)
}

func (s *Store) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	t, done := s.view()
	defer done()
	return t.CreateTicket(ctx, ticket)
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	t, done := s.view()
	defer done()
	return t.GetTicket(ctx, id)
}

func (s *Store) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	t, done := s.view()
	defer done()
	return t.UpdateTicket(ctx, ticket)
}

func (s *Store) ActiveTicketForUser(ctx context.Context, userID string) (*models.Ticket, error) {
	t, done := s.view()
	defer done()
	return t.ActiveTicketForUser(ctx, userID)
}

func (s *Store) LatestTicketForService(ctx context.Context, serviceID string, from, to time.Time) (*models.Ticket, error) {
	t, done := s.view()
	defer done()
	return t.LatestTicketForService(ctx, serviceID, from, to)
}

func (s *Store) ServingTicketForCounter(ctx context.Context, counterID string) (*models.Ticket, error) {
	t, done := s.view()
	defer done()
	return t.ServingTicketForCounter(ctx, counterID)
}

func (s *Store) NextTicket(ctx context.Context, serviceID string, status models.TicketStatus) (*models.Ticket, error) {
	t, done := s.view()
	defer done()
	return t.NextTicket(ctx, serviceID, status)
}

func (s *Store) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]models.Ticket, error) {
	t, done := s.view()
	defer done()
	return t.ListTickets(ctx, filter)
}

func (s *Store) ServedStats(ctx context.Context, from, to time.Time) ([]models.ServiceDayStat, error) {
	t, done := s.view()
	defer done()
	return t.ServedStats(ctx, from, to)
}

func (s *Store) HourlyServed(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.HourlyStat, error) {
	t, done := s.view()
	defer done()
	return t.HourlyServed(ctx, from, to, loc)
}

func (s *Store) GetDailyStatistic(ctx context.Context, date, serviceID string) (*models.DailyStatistic, error) {
	t, done := s.view()
	defer done()
	return t.GetDailyStatistic(ctx, date, serviceID)
}

func (s *Store) SaveDailyStatistic(ctx context.Context, stat *models.DailyStatistic) error {
	t, done := s.view()
	defer done()
	return t.SaveDailyStatistic(ctx, stat)
}

func (s *Store) ListDailyStatistics(ctx context.Context, fromDate, toDate, serviceID string) ([]models.DailyStatistic, error) {
	t, done := s.view()
	defer done()
	return t.ListDailyStatistics(ctx, fromDate, toDate, serviceID)
}
