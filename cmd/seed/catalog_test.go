package main

import (
	"context"
	"testing"

	"queuedesk/internal/events"
	"queuedesk/internal/repository/memory"
	"queuedesk/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
services:
  - name: Payments
    counters:
      - name: Desk 1
        room: "101"
      - name: Desk 2
        room: "102"
  - name: Accounts
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	require.Len(t, catalog.Services, 2)
	assert.Equal(t, "Payments", catalog.Services[0].Name)
	assert.Equal(t, CounterSeed{Name: "Desk 2", Room: "102"}, catalog.Services[0].Counters[1])
	assert.Empty(t, catalog.Services[1].Counters)

	_, err = ParseCatalog([]byte("services: []"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("services: ["))
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svcs := service.NewServices(memory.New(), events.NewBus(nil), nil, service.Options{})
	catalog, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	result, err := Seed(ctx, svcs, catalog)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Services: 2, Counters: 2}, result)

	result, err = Seed(ctx, svcs, catalog)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, result)

	counters, err := svcs.Queries.ListCounters(ctx, "")
	require.NoError(t, err)
	assert.Len(t, counters, 2)
}

func TestSeedRejectsIncompleteCounter(t *testing.T) {
	svcs := service.NewServices(memory.New(), events.NewBus(nil), nil, service.Options{})
	catalog := &Catalog{Services: []ServiceSeed{{Name: "Payments", Counters: []CounterSeed{{Name: "Desk"}}}}}

	_, err := Seed(context.Background(), svcs, catalog)
	assert.ErrorContains(t, err, `counter "Desk" of "Payments"`)
}
