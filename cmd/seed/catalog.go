package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"queuedesk/internal/models"
	"queuedesk/internal/service"

	"gopkg.in/yaml.v3"
)

// Catalog is the seed file layout.
//
//	services:
//	  - name: Payments
//	    counters:
//	      - name: Desk 1
//	        room: "101"
type Catalog struct {
	Services []ServiceSeed `yaml:"services"`
}

type ServiceSeed struct {
	Name     string        `yaml:"name"`
	Counters []CounterSeed `yaml:"counters"`
}

type CounterSeed struct {
	Name string `yaml:"name"`
	Room string `yaml:"room"`
}

// LoadCatalog reads and parses a seed file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(catalog.Services) == 0 {
		return nil, fmt.Errorf("catalog defines no services")
	}
	return &catalog, nil
}

// SeedResult counts what Seed created. Entries that already existed are skipped.
type SeedResult struct {
	Services int
	Counters int
}

// Seed creates the catalog's services and counters. Running it twice is a no-op.
func Seed(ctx context.Context, svcs *service.Services, catalog *Catalog) (SeedResult, error) {
	var result SeedResult

	existing, err := svcs.Queries.ListServices(ctx)
	if err != nil {
		return result, err
	}
	byName := make(map[string]models.Service, len(existing))
	for _, s := range existing {
		byName[strings.ToLower(s.Name)] = s
	}

	for _, seed := range catalog.Services {
		svc, ok := byName[strings.ToLower(strings.TrimSpace(seed.Name))]
		if !ok {
			created, err := svcs.Admin.CreateService(ctx, models.CreateServiceRequest{Name: seed.Name})
			if err != nil {
				return result, fmt.Errorf("service %q: %w", seed.Name, err)
			}
			svc = *created
			result.Services++
		}

		counters, err := svcs.Queries.ListCounters(ctx, svc.ID)
		if err != nil {
			return result, err
		}
		have := make(map[string]bool, len(counters))
		for _, c := range counters {
			have[c.Name] = true
		}

		for _, cs := range seed.Counters {
			if have[strings.TrimSpace(cs.Name)] {
				continue
			}
			_, err := svcs.Admin.CreateCounter(ctx, models.CreateCounterRequest{
				Name:       cs.Name,
				RoomNumber: cs.Room,
				ServiceID:  svc.ID,
			})
			if err != nil {
				return result, fmt.Errorf("counter %q of %q: %w", cs.Name, seed.Name, err)
			}
			result.Counters++
		}
	}
	return result, nil
}
