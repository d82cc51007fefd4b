package service

import (
	"context"
	"strings"

	apperrors "queuedesk/internal/errors"
	"queuedesk/internal/events"
	"queuedesk/internal/keylock"
	"queuedesk/internal/logger"
	"queuedesk/internal/models"
	"queuedesk/internal/repository"

	"github.com/google/uuid"
)

// AdminService manages services and counters.
type AdminService struct {
	store repository.Store
	bus   *events.Bus
	locks *keylock.Locker
	clock clock
}

func NewAdminService(store repository.Store, bus *events.Bus, locks *keylock.Locker, clk clock) *AdminService {
	return &AdminService{store: store, bus: bus, locks: locks, clock: clk}
}

func (s *AdminService) CreateService(ctx context.Context, req models.CreateServiceRequest) (*models.Service, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.ErrServiceNameRequired
	}

	service := &models.Service{ID: uuid.NewString(), Name: name, CreatedAt: s.clock.Now()}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.GetServiceByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.ErrServiceExists
		}
		return tx.CreateService(ctx, service)
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("Service created", "service_id", service.ID, "name", service.Name)
	s.bus.Publish(ctx, events.Event{Kind: events.ServiceCreated, ServiceID: service.ID, Service: service})
	return service, nil
}

// DeleteService removes the service together with its counters, tickets and statistics.
func (s *AdminService) DeleteService(ctx context.Context, id string) error {
	unlock := s.locks.Lock(serviceKey(id))
	defer unlock()

	var service *models.Service
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockKey(ctx, serviceKey(id)); err != nil {
			return err
		}
		var err error
		service, err = tx.GetService(ctx, id)
		if err != nil {
			return err
		}
		if service == nil {
			return apperrors.ErrServiceNotFound
		}
		deleted, err := tx.DeleteService(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return apperrors.ErrServiceNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	unlock()

	logger.WithContext(ctx).Info("Service deleted", "service_id", id, "name", service.Name)
	s.bus.Publish(ctx, events.Event{Kind: events.ServiceDeleted, ServiceID: id, Service: service})
	return nil
}

func (s *AdminService) CreateCounter(ctx context.Context, req models.CreateCounterRequest) (*models.Counter, error) {
	counter := &models.Counter{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		RoomNumber: strings.TrimSpace(req.RoomNumber),
		ServiceID:  strings.TrimSpace(req.ServiceID),
		CreatedAt:  s.clock.Now(),
	}
	switch {
	case counter.Name == "":
		return nil, apperrors.ErrCounterNameRequired
	case counter.RoomNumber == "":
		return nil, apperrors.ErrRoomNumberRequired
	case counter.ServiceID == "":
		return nil, apperrors.ErrServiceIDRequired
	}

	unlock := s.locks.Lock(serviceKey(counter.ServiceID))
	defer unlock()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		service, err := tx.GetService(ctx, counter.ServiceID)
		if err != nil {
			return err
		}
		if service == nil {
			return apperrors.ErrServiceNotFound
		}
		counter.ServiceName = service.Name
		return tx.CreateCounter(ctx, counter)
	})
	if err != nil {
		return nil, err
	}
	unlock()

	logger.WithContext(ctx).Info("Counter created",
		"counter_id", counter.ID, "service_id", counter.ServiceID, "room_number", counter.RoomNumber)
	s.bus.Publish(ctx, events.Event{
		Kind: events.CounterCreated, ServiceID: counter.ServiceID, CounterID: counter.ID, Counter: counter,
	})
	return counter, nil
}

// DeleteCounter removes the counter. Tickets it touched keep their status
// and lose the counter reference.
func (s *AdminService) DeleteCounter(ctx context.Context, id string) error {
	counter, err := s.store.GetCounter(ctx, id)
	if err != nil {
		return err
	}
	if counter == nil {
		return apperrors.ErrCounterNotFound
	}

	// Serialize with call-next on the same service.
	unlock := s.locks.Lock(serviceKey(counter.ServiceID))
	defer unlock()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockKey(ctx, serviceKey(counter.ServiceID)); err != nil {
			return err
		}
		deleted, err := tx.DeleteCounter(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return apperrors.ErrCounterNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	unlock()

	logger.WithContext(ctx).Info("Counter deleted", "counter_id", id, "service_id", counter.ServiceID)
	s.bus.Publish(ctx, events.Event{
		Kind: events.CounterDeleted, ServiceID: counter.ServiceID, CounterID: id, Counter: counter,
	})
	return nil
}
