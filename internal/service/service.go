package service

import (
	"context"
	"regexp"
	"time"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/events"
	"queuedesk/internal/keylock"
	"queuedesk/internal/models"
	"queuedesk/internal/repository"
)

// TicketSearcher is the full-text ticket index.
type TicketSearcher interface {
	SearchTickets(ctx context.Context, req models.TicketSearchRequest) (*models.TicketSearchResponse, error)
}

type Options struct {
	// Location decides where a day starts for ticket numbers and statistics.
	Location *time.Location
	// Now replaces the wall clock in tests.
	Now      func() time.Time
	Searcher TicketSearcher
}

type Services struct {
	Tickets    *TicketService
	Statistics *StatisticsService
	Queries    *QueryService
	Admin      *AdminService
}

func NewServices(store repository.Store, bus *events.Bus, locks *keylock.Locker, opts Options) *Services {
	clk := newClock(opts.Location, opts.Now)
	if locks == nil {
		locks = keylock.New()
	}

	stats := NewStatisticsService(store, bus, clk)
	return &Services{
		Tickets:    NewTicketService(store, bus, locks, stats, clk),
		Statistics: stats,
		Queries:    NewQueryService(store, clk, opts.Searcher),
		Admin:      NewAdminService(store, bus, locks, clk),
	}
}

type clock struct {
	loc *time.Location
	now func() time.Time
}

func newClock(loc *time.Location, now func() time.Time) clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return clock{loc: loc, now: now}
}

// Now is truncated to the precision Postgres keeps.
func (c clock) Now() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

// day returns the bounds and the YYYY-MM-DD label of the local day containing t.
func (c clock) day(t time.Time) (from, to time.Time, date string) {
	local := t.In(c.loc)
	from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return from, from.AddDate(0, 0, 1), from.Format(dateLayout)
}

const dateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// parseDate reads a YYYY-MM-DD label as a local day.
func (c clock) parseDate(date string) (from, to time.Time, err error) {
	if !dateRe.MatchString(date) {
		return time.Time{}, time.Time{}, apperrors.ErrInvalidDate
	}
	from, err = time.ParseInLocation(dateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.ErrInvalidDate
	}
	return from, from.AddDate(0, 0, 1), nil
}
