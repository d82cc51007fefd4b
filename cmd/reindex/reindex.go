package main

import (
	"context"
	"fmt"
	"log/slog"

	"queuedesk/internal/models"
	"queuedesk/internal/repository"
)

// Index is the part of the search client a rebuild needs.
type Index interface {
	DropIndex(ctx context.Context) error
	EnsureIndex(ctx context.Context) error
	IndexTicket(ctx context.Context, ticket *models.Ticket) error
}

// Source lists what gets indexed.
type Source interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	ListTickets(ctx context.Context, filter repository.TicketFilter) ([]models.Ticket, error)
}

// Reindex recreates the ticket index from the store, one service at a time.
// Returns the number of indexed tickets.
func Reindex(ctx context.Context, src Source, index Index, drop bool) (int, error) {
	if drop {
		if err := index.DropIndex(ctx); err != nil {
			return 0, fmt.Errorf("dropping index: %w", err)
		}
	}
	if err := index.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("creating index: %w", err)
	}

	services, err := src.ListServices(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, svc := range services {
		tickets, err := src.ListTickets(ctx, repository.TicketFilter{ServiceID: svc.ID})
		if err != nil {
			return total, fmt.Errorf("listing tickets of %s: %w", svc.ID, err)
		}
		for i := range tickets {
			if err := index.IndexTicket(ctx, &tickets[i]); err != nil {
				return total, fmt.Errorf("indexing ticket %s: %w", tickets[i].ID, err)
			}
			total++
		}
		slog.Info("Service reindexed", "service", svc.Name, "tickets", len(tickets))
	}
	return total, nil
}
