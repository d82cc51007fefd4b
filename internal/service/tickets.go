package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/events"
	"queuedesk/internal/keylock"
	"queuedesk/internal/logger"
	"queuedesk/internal/metrics"
	"queuedesk/internal/models"
	"queuedesk/internal/repository"
	"queuedesk/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const noCustomersWaiting = "No customers waiting"

type TicketService struct {
	store repository.Store
	bus   *events.Bus
	locks *keylock.Locker
	stats *StatisticsService
	clock clock
}

func NewTicketService(store repository.Store, bus *events.Bus, locks *keylock.Locker, stats *StatisticsService, clk clock) *TicketService {
	return &TicketService{
		store: store,
		bus:   bus,
		locks: locks,
		stats: stats,
		clock: clk,
	}
}

func userKey(userID string) string { return "user:" + userID }

func numberKey(serviceID string, day time.Time) string {
	return "number:" + serviceID + ":" + day.Format("060102")
}

func serviceKey(serviceID string) string { return "service:" + serviceID }

// TicketPrefix is the first two characters of the service name, upper-cased,
// followed by the YYMMDD of day.
func TicketPrefix(serviceName string, day time.Time) string {
	runes := []rune(serviceName)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes)) + day.Format("060102")
}

// FormatTicketNumber renders a ticket number such as "PA250314007".
func FormatTicketNumber(serviceName string, day time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", TicketPrefix(serviceName, day), seq)
}

// NextSequence derives the sequence following the previous ticket number of
// the same day. Unparseable numbers restart the sequence at 1.
func NextSequence(previous, prefix string) int {
	suffix := strings.TrimPrefix(previous, prefix)
	if suffix == previous && len(previous) >= 3 {
		suffix = previous[len(previous)-3:]
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 1
	}
	return n + 1
}

// CreateVirtualTicket issues a virtual ticket for the caller. A user holds
// at most one ticket that is not yet served.
func (s *TicketService) CreateVirtualTicket(ctx context.Context, identity models.Identity, serviceID string) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "tickets.create_virtual", attribute.String("service_id", serviceID))
	defer func() { telemetry.EndSpan(span, err) }()

	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return nil, apperrors.ErrServiceIDRequired
	}
	if identity.UserID == "" {
		return nil, apperrors.ErrMissingToken
	}

	now := s.clock.Now()
	from, to, _ := s.clock.day(now)
	keys := []string{userKey(identity.UserID), numberKey(serviceID, from)}

	unlock := s.locks.LockAll(keys...)
	defer unlock()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, key := range keys {
			if err := tx.LockKey(ctx, key); err != nil {
				return err
			}
		}

		service, err := tx.GetService(ctx, serviceID)
		if err != nil {
			return err
		}
		if service == nil {
			return apperrors.ErrServiceNotFound
		}

		active, err := tx.ActiveTicketForUser(ctx, identity.UserID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperrors.ErrActiveTicketExists
		}

		if err := tx.UpsertUser(ctx, &models.User{
			ID:    identity.UserID,
			Name:  identity.Name,
			Email: identity.Email,
			Role:  identity.Role,
		}); err != nil {
			return err
		}

		seq := 1
		latest, err := tx.LatestTicketForService(ctx, serviceID, from, to)
		if err != nil {
			return err
		}
		if latest != nil {
			seq = NextSequence(latest.TicketNumber, TicketPrefix(service.Name, from))
		}

		ticket = &models.Ticket{
			ID:           uuid.NewString(),
			TicketNumber: FormatTicketNumber(service.Name, from, seq),
			ServiceID:    service.ID,
			UserID:       identity.UserID,
			Status:       models.StatusVirtual,
			CreatedAt:    now,
			UpdatedAt:    now,
			CustomerName: identity.Name,
			ServiceName:  service.Name,
		}
		return tx.CreateTicket(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}
	unlock()

	logger.WithContext(ctx).Info("Virtual ticket created",
		"ticket_id", ticket.ID, "ticket_number", ticket.TicketNumber, "service_id", serviceID)
	s.bus.Publish(ctx, events.Event{Kind: events.TicketCreated, ServiceID: serviceID, Ticket: ticket, At: now})
	return ticket, nil
}

// MarkPresent converts the owner's virtual ticket into a physical one.
func (s *TicketService) MarkPresent(ctx context.Context, ticketID, userID string) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "tickets.mark_present", attribute.String("ticket_id", ticketID))
	defer func() { telemetry.EndSpan(span, err) }()

	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	now := s.clock.Now()
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockKey(ctx, userKey(userID)); err != nil {
			return err
		}

		t, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if t == nil {
			return apperrors.ErrTicketNotFound
		}
		if t.UserID != userID {
			return apperrors.ErrNotTicketUser
		}
		if err := t.Apply(models.ActionPresent, now); err != nil {
			return err
		}
		if err := tx.UpdateTicket(ctx, t); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	unlock()

	logger.WithContext(ctx).Info("Ticket marked present", "ticket_id", ticket.ID, "ticket_number", ticket.TicketNumber)
	s.bus.Publish(ctx, events.Event{Kind: events.TicketPresent, ServiceID: ticket.ServiceID, Ticket: ticket, At: now})
	return ticket, nil
}

// counterFor loads the counter and checks it belongs to serviceID.
func counterFor(ctx context.Context, tx repository.Tx, counterID, serviceID string) (*models.Counter, error) {
	counter, err := tx.GetCounter(ctx, counterID)
	if err != nil {
		return nil, err
	}
	if counter == nil || counter.ServiceID != serviceID {
		return nil, apperrors.ErrCounterNotInService
	}
	return counter, nil
}

func checkStaffCall(counterID, serviceID string, role models.Role) error {
	if !role.IsStaff() {
		return apperrors.ErrStaffOnly
	}
	if strings.TrimSpace(counterID) == "" || strings.TrimSpace(serviceID) == "" {
		return apperrors.ErrCallNextArgs
	}
	return nil
}

// CallNext finishes the counter's current customer, if any, and calls the
// oldest physical ticket of the service, falling back to the oldest missed one.
func (s *TicketService) CallNext(ctx context.Context, counterID, serviceID string, role models.Role) (result *models.CallNextResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "tickets.call_next",
		attribute.String("counter_id", counterID), attribute.String("service_id", serviceID))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := checkStaffCall(counterID, serviceID, role); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(serviceKey(serviceID))
	defer unlock()

	now := s.clock.Now()
	result = &models.CallNextResult{}
	var (
		stat    *models.DailyStatistic
		outcome = "empty"
	)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockKey(ctx, serviceKey(serviceID)); err != nil {
			return err
		}
		counter, err := counterFor(ctx, tx, counterID, serviceID)
		if err != nil {
			return err
		}

		current, err := tx.ServingTicketForCounter(ctx, counter.ID)
		if err != nil {
			return err
		}
		if current != nil {
			if err := current.Apply(models.ActionComplete, now); err != nil {
				return err
			}
			if err := tx.UpdateTicket(ctx, current); err != nil {
				return err
			}
			stat, err = s.stats.record(ctx, tx, current.ServiceID, current.CreatedAt, *current.ServedAt)
			if err != nil {
				return err
			}
			result.Served = current
		}

		next, action, err := nextInLine(ctx, tx, serviceID)
		if err != nil {
			return err
		}
		if next == nil {
			result.Message = noCustomersWaiting
			return nil
		}
		if err := next.Apply(action, now); err != nil {
			return err
		}
		next.AssignCounter(counter)
		if err := tx.UpdateTicket(ctx, next); err != nil {
			return err
		}
		result.Ticket = next
		outcome = string(action)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Events go out with the key released. unlock is idempotent.
	unlock()

	metrics.CallNextOutcomes.WithLabelValues(outcome).Inc()
	log := logger.WithContext(ctx).With("counter_id", counterID, "service_id", serviceID)

	if result.Served != nil {
		log.Info("Ticket served", "ticket_id", result.Served.ID, "ticket_number", result.Served.TicketNumber)
		s.bus.Publish(ctx, events.Event{
			Kind: events.TicketServed, ServiceID: serviceID, CounterID: counterID, Ticket: result.Served, At: now,
		})
		s.bus.Publish(ctx, events.Event{
			Kind: events.StatisticsUpdated, ServiceID: serviceID, Statistic: stat, At: now,
		})
	}
	if result.Ticket != nil {
		log.Info("Ticket called", "ticket_id", result.Ticket.ID, "ticket_number", result.Ticket.TicketNumber, "via", outcome)
		s.bus.Publish(ctx, events.Event{
			Kind: events.TicketCalled, ServiceID: serviceID, CounterID: counterID, Ticket: result.Ticket, At: now,
		})
	} else {
		log.Debug(noCustomersWaiting)
	}

	return result, nil
}

// nextInLine picks the oldest physical ticket, then the oldest missed one.
func nextInLine(ctx context.Context, tx repository.Tx, serviceID string) (*models.Ticket, models.TicketAction, error) {
	next, err := tx.NextTicket(ctx, serviceID, models.StatusPhysical)
	if err != nil || next != nil {
		return next, models.ActionCall, err
	}
	next, err = tx.NextTicket(ctx, serviceID, models.StatusMissed)
	return next, models.ActionRecall, err
}

// SkipCurrent marks the counter's current customer as missed. The ticket
// keeps the counter reference and can be recalled by any counter later.
func (s *TicketService) SkipCurrent(ctx context.Context, counterID, serviceID string, role models.Role) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "tickets.skip_current",
		attribute.String("counter_id", counterID), attribute.String("service_id", serviceID))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := checkStaffCall(counterID, serviceID, role); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(serviceKey(serviceID))
	defer unlock()

	now := s.clock.Now()
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockKey(ctx, serviceKey(serviceID)); err != nil {
			return err
		}
		counter, err := counterFor(ctx, tx, counterID, serviceID)
		if err != nil {
			return err
		}
		current, err := tx.ServingTicketForCounter(ctx, counter.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.ErrNothingToSkip
		}
		if err := current.Apply(models.ActionSkip, now); err != nil {
			return err
		}
		if err := tx.UpdateTicket(ctx, current); err != nil {
			return err
		}
		ticket = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	unlock()

	logger.WithContext(ctx).Info("Ticket skipped", "ticket_id", ticket.ID, "counter_id", counterID)
	s.bus.Publish(ctx, events.Event{
		Kind: events.TicketMissed, ServiceID: serviceID, CounterID: counterID, Ticket: ticket, At: now,
	})
	return ticket, nil
}
