// Package memory is an in-process implementation of repository.Store used
// by single-node development setups and by the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/models"
	"queuedesk/internal/repository"
)

type ticketRow struct {
	ticket models.Ticket
	seq    int64
}

type statKey struct {
	date      string
	serviceID string
}

type dataset struct {
	users    map[string]models.User
	services map[string]models.Service
	counters map[string]models.Counter
	tickets  map[string]ticketRow
	stats    map[statKey]models.DailyStatistic
	seq      int64
}

func newDataset() *dataset {
	return &dataset{
		users:    make(map[string]models.User),
		services: make(map[string]models.Service),
		counters: make(map[string]models.Counter),
		tickets:  make(map[string]ticketRow),
		stats:    make(map[statKey]models.DailyStatistic),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.services {
		c.services[k] = v
	}
	for k, v := range d.counters {
		c.counters[k] = v
	}
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	for k, v := range d.stats {
		c.stats[k] = v
	}
	c.seq = d.seq
	return c
}

// Store keeps everything behind one mutex. A transaction holds the mutex for
// its whole duration and restores a snapshot when it fails.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newDataset()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, &tx{d: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) view() (*tx, func()) {
	s.mu.Lock()
	return &tx{d: s.data}, s.mu.Unlock
}

// tx operates on the dataset without locking; the caller holds Store.mu.
type tx struct {
	d *dataset
}

// LockKey is a no-op: the store mutex already serializes transactions.
func (t *tx) LockKey(ctx context.Context, key string) error { return nil }

// Users

func (t *tx) UpsertUser(ctx context.Context, user *models.User) error {
	if user.Email != "" {
		for id, u := range t.d.users {
			if id != user.ID && strings.EqualFold(u.Email, user.Email) {
				return apperrors.New(apperrors.ErrConflict, "Email is already used by another user")
			}
		}
	}
	if existing, ok := t.d.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	t.d.users[user.ID] = *user
	return nil
}

func (t *tx) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Services

func (t *tx) CreateService(ctx context.Context, service *models.Service) error {
	for _, s := range t.d.services {
		if s.Name == service.Name {
			return apperrors.ErrServiceExists
		}
	}
	t.d.services[service.ID] = *service
	return nil
}

func (t *tx) GetService(ctx context.Context, id string) (*models.Service, error) {
	s, ok := t.d.services[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *tx) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	for _, s := range t.d.services {
		if s.Name == name {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (t *tx) ListServices(ctx context.Context) ([]models.Service, error) {
	services := make([]models.Service, 0, len(t.d.services))
	for _, s := range t.d.services {
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}

func (t *tx) DeleteService(ctx context.Context, id string) (bool, error) {
	if _, ok := t.d.services[id]; !ok {
		return false, nil
	}
	delete(t.d.services, id)
	for cid, c := range t.d.counters {
		if c.ServiceID == id {
			t.deleteCounter(cid)
		}
	}
	for tid, row := range t.d.tickets {
		if row.ticket.ServiceID == id {
			delete(t.d.tickets, tid)
		}
	}
	for k := range t.d.stats {
		if k.serviceID == id {
			delete(t.d.stats, k)
		}
	}
	return true, nil
}

// Counters

func (t *tx) CreateCounter(ctx context.Context, counter *models.Counter) error {
	if _, ok := t.d.services[counter.ServiceID]; !ok {
		return apperrors.ErrServiceNotFound
	}
	c := *counter
	c.ServiceName = ""
	t.d.counters[c.ID] = c
	return nil
}

func (t *tx) GetCounter(ctx context.Context, id string) (*models.Counter, error) {
	c, ok := t.d.counters[id]
	if !ok {
		return nil, nil
	}
	c.ServiceName = t.d.services[c.ServiceID].Name
	return &c, nil
}

func (t *tx) ListCounters(ctx context.Context, serviceID string) ([]models.Counter, error) {
	counters := []models.Counter{}
	for _, c := range t.d.counters {
		if serviceID != "" && c.ServiceID != serviceID {
			continue
		}
		c.ServiceName = t.d.services[c.ServiceID].Name
		counters = append(counters, c)
	}
	sort.Slice(counters, func(i, j int) bool {
		if counters[i].ServiceName != counters[j].ServiceName {
			return counters[i].ServiceName < counters[j].ServiceName
		}
		return counters[i].Name < counters[j].Name
	})
	return counters, nil
}

func (t *tx) DeleteCounter(ctx context.Context, id string) (bool, error) {
	if _, ok := t.d.counters[id]; !ok {
		return false, nil
	}
	t.deleteCounter(id)
	return true, nil
}

// deleteCounter mirrors ON DELETE SET NULL on tickets.counter_id.
func (t *tx) deleteCounter(id string) {
	delete(t.d.counters, id)
	for tid, row := range t.d.tickets {
		if row.ticket.CounterID != nil && *row.ticket.CounterID == id {
			row.ticket.CounterID = nil
			t.d.tickets[tid] = row
		}
	}
}

// Tickets

func (t *tx) hydrate(row ticketRow) models.Ticket {
	ticket := row.ticket
	ticket.CustomerName = t.d.users[ticket.UserID].Name
	ticket.ServiceName = t.d.services[ticket.ServiceID].Name
	ticket.CounterName, ticket.RoomNumber = "", ""
	if ticket.CounterID != nil {
		if c, ok := t.d.counters[*ticket.CounterID]; ok {
			ticket.CounterName = c.Name
			ticket.RoomNumber = c.RoomNumber
		}
	}
	return ticket
}

// checkTicket enforces the unique indexes of the tickets table.
func (t *tx) checkTicket(ticket *models.Ticket) error {
	for id, row := range t.d.tickets {
		if id == ticket.ID {
			continue
		}
		other := row.ticket
		if ticket.Status.Active() && other.Status.Active() && other.UserID == ticket.UserID {
			return apperrors.ErrActiveTicketExists
		}
		if ticket.Status == models.StatusServing && other.Status == models.StatusServing &&
			ticket.CounterID != nil && other.CounterID != nil && *ticket.CounterID == *other.CounterID {
			return apperrors.ErrCounterBusy
		}
		if other.ServiceID == ticket.ServiceID && other.TicketNumber == ticket.TicketNumber {
			return apperrors.New(apperrors.ErrConflict, "Ticket number already issued")
		}
	}
	return nil
}

func stripJoined(ticket models.Ticket) models.Ticket {
	ticket.CustomerName, ticket.ServiceName, ticket.CounterName, ticket.RoomNumber = "", "", "", ""
	if ticket.CounterID != nil {
		id := *ticket.CounterID
		ticket.CounterID = &id
	}
	if ticket.ServedAt != nil {
		at := *ticket.ServedAt
		ticket.ServedAt = &at
	}
	return ticket
}

func (t *tx) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if _, ok := t.d.services[ticket.ServiceID]; !ok {
		return apperrors.ErrServiceNotFound
	}
	if _, ok := t.d.users[ticket.UserID]; !ok {
		return apperrors.New(apperrors.ErrNotFound, "User not found")
	}
	if err := t.checkTicket(ticket); err != nil {
		return err
	}
	t.d.seq++
	t.d.tickets[ticket.ID] = ticketRow{ticket: stripJoined(*ticket), seq: t.d.seq}
	return nil
}

func (t *tx) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	row, ok := t.d.tickets[id]
	if !ok {
		return nil, nil
	}
	ticket := t.hydrate(row)
	return &ticket, nil
}

func (t *tx) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	row, ok := t.d.tickets[ticket.ID]
	if !ok {
		return apperrors.ErrTicketNotFound
	}
	if ticket.CounterID != nil {
		if _, ok := t.d.counters[*ticket.CounterID]; !ok {
			return apperrors.ErrCounterNotFound
		}
	}
	if err := t.checkTicket(ticket); err != nil {
		return err
	}
	updated := stripJoined(*ticket)
	row.ticket.Status = updated.Status
	row.ticket.CounterID = updated.CounterID
	row.ticket.UpdatedAt = updated.UpdatedAt
	row.ticket.ServedAt = updated.ServedAt
	t.d.tickets[ticket.ID] = row
	return nil
}

// sorted returns matching rows ordered by creation time then insertion order.
func (t *tx) sorted(match func(models.Ticket) bool) []ticketRow {
	var rows []ticketRow
	for _, row := range t.d.tickets {
		if match(row.ticket) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].ticket.CreatedAt, rows[j].ticket.CreatedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return rows[i].seq < rows[j].seq
	})
	return rows
}

func (t *tx) first(rows []ticketRow) *models.Ticket {
	if len(rows) == 0 {
		return nil
	}
	ticket := t.hydrate(rows[0])
	return &ticket
}

func (t *tx) last(rows []ticketRow) *models.Ticket {
	if len(rows) == 0 {
		return nil
	}
	ticket := t.hydrate(rows[len(rows)-1])
	return &ticket
}

func (t *tx) ActiveTicketForUser(ctx context.Context, userID string) (*models.Ticket, error) {
	return t.last(t.sorted(func(tk models.Ticket) bool {
		return tk.UserID == userID && tk.Status.Active()
	})), nil
}

func (t *tx) LatestTicketForService(ctx context.Context, serviceID string, from, to time.Time) (*models.Ticket, error) {
	return t.last(t.sorted(func(tk models.Ticket) bool {
		return tk.ServiceID == serviceID && !tk.CreatedAt.Before(from) && tk.CreatedAt.Before(to)
	})), nil
}

func (t *tx) ServingTicketForCounter(ctx context.Context, counterID string) (*models.Ticket, error) {
	return t.first(t.sorted(func(tk models.Ticket) bool {
		return tk.Status == models.StatusServing && tk.CounterID != nil && *tk.CounterID == counterID
	})), nil
}

func (t *tx) NextTicket(ctx context.Context, serviceID string, status models.TicketStatus) (*models.Ticket, error) {
	return t.first(t.sorted(func(tk models.Ticket) bool {
		return tk.ServiceID == serviceID && tk.Status == status
	})), nil
}

func (t *tx) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]models.Ticket, error) {
	rows := t.sorted(func(tk models.Ticket) bool {
		if filter.ServiceID != "" && tk.ServiceID != filter.ServiceID {
			return false
		}
		if len(filter.Statuses) == 0 {
			return true
		}
		for _, st := range filter.Statuses {
			if tk.Status == st {
				return true
			}
		}
		return false
	})
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	tickets := make([]models.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, t.hydrate(row))
	}
	return tickets, nil
}

func servedIn(tk models.Ticket, from, to time.Time) bool {
	return tk.Status == models.StatusServed && tk.ServedAt != nil &&
		!tk.ServedAt.Before(from) && tk.ServedAt.Before(to)
}

func (t *tx) ServedStats(ctx context.Context, from, to time.Time) ([]models.ServiceDayStat, error) {
	services, _ := t.ListServices(ctx)
	stats := make([]models.ServiceDayStat, 0, len(services))
	for _, s := range services {
		st := models.ServiceDayStat{ServiceID: s.ID, ServiceName: s.Name}
		total := 0
		for _, row := range t.d.tickets {
			if row.ticket.ServiceID != s.ID || !servedIn(row.ticket, from, to) {
				continue
			}
			st.ServedCount++
			total += repository.WaitMinutes(row.ticket.CreatedAt, *row.ticket.ServedAt)
		}
		if st.ServedCount > 0 {
			st.AvgWaitTime = float64(total) / float64(st.ServedCount)
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func (t *tx) HourlyServed(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.HourlyStat, error) {
	if loc == nil {
		loc = time.UTC
	}
	counts := make(map[string]int)
	for _, row := range t.d.tickets {
		if servedIn(row.ticket, from, to) {
			counts[row.ticket.ServedAt.In(loc).Format("15")]++
		}
	}
	stats := make([]models.HourlyStat, 0, len(counts))
	for hour, n := range counts {
		stats = append(stats, models.HourlyStat{Hour: hour, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Hour < stats[j].Hour })
	return stats, nil
}

// Statistics

func (t *tx) GetDailyStatistic(ctx context.Context, date, serviceID string) (*models.DailyStatistic, error) {
	st, ok := t.d.stats[statKey{date: date, serviceID: serviceID}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (t *tx) SaveDailyStatistic(ctx context.Context, stat *models.DailyStatistic) error {
	if _, ok := t.d.services[stat.ServiceID]; !ok {
		return apperrors.ErrServiceNotFound
	}
	key := statKey{date: stat.Date, serviceID: stat.ServiceID}
	if existing, ok := t.d.stats[key]; ok {
		stat.ID = existing.ID
		stat.CreatedAt = existing.CreatedAt
	} else {
		stat.CreatedAt = stat.UpdatedAt
	}
	t.d.stats[key] = *stat
	return nil
}

func (t *tx) ListDailyStatistics(ctx context.Context, fromDate, toDate, serviceID string) ([]models.DailyStatistic, error) {
	stats := []models.DailyStatistic{}
	for k, st := range t.d.stats {
		if k.date < fromDate || k.date > toDate {
			continue
		}
		if serviceID != "" && k.serviceID != serviceID {
			continue
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Date != stats[j].Date {
			return stats[i].Date < stats[j].Date
		}
		return stats[i].ServiceID < stats[j].ServiceID
	})
	return stats, nil
}
