package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"queuedesk/internal/config"
	"queuedesk/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient maintains the ticket search index
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient creates the client and makes sure the index exists
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// ticketDocument is the indexed form of a ticket
type ticketDocument struct {
	ID           string     `json:"id"`
	TicketNumber string     `json:"ticketNumber"`
	ServiceID    string     `json:"serviceId"`
	ServiceName  string     `json:"serviceName"`
	UserID       string     `json:"userId"`
	CustomerName string     `json:"customerName"`
	CounterID    *string    `json:"counterId,omitempty"`
	CounterName  string     `json:"counterName,omitempty"`
	RoomNumber   string     `json:"roomNumber,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ServedAt     *time.Time `json:"servedAt,omitempty"`
}

func toDocument(t *models.Ticket) ticketDocument {
	return ticketDocument{
		ID:           t.ID,
		TicketNumber: t.TicketNumber,
		ServiceID:    t.ServiceID,
		ServiceName:  t.ServiceName,
		UserID:       t.UserID,
		CustomerName: t.CustomerName,
		CounterID:    t.CounterID,
		CounterName:  t.CounterName,
		RoomNumber:   t.RoomNumber,
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		ServedAt:     t.ServedAt,
	}
}

func (d ticketDocument) ticket() models.Ticket {
	return models.Ticket{
		ID:           d.ID,
		TicketNumber: d.TicketNumber,
		ServiceID:    d.ServiceID,
		ServiceName:  d.ServiceName,
		UserID:       d.UserID,
		CustomerName: d.CustomerName,
		CounterID:    d.CounterID,
		CounterName:  d.CounterName,
		RoomNumber:   d.RoomNumber,
		Status:       models.TicketStatus(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		ServedAt:     d.ServedAt,
	}
}

var indexMapping = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 0,
		"analysis": map[string]interface{}{
			"normalizer": map[string]interface{}{
				"lowercase_normalizer": map[string]interface{}{
					"type":   "custom",
					"filter": []string{"lowercase"},
				},
			},
		},
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id": map[string]interface{}{"type": "keyword"},
			"ticketNumber": map[string]interface{}{
				"type":       "keyword",
				"normalizer": "lowercase_normalizer",
			},
			"serviceId":    map[string]interface{}{"type": "keyword"},
			"serviceName":  map[string]interface{}{"type": "text"},
			"userId":       map[string]interface{}{"type": "keyword"},
			"customerName": map[string]interface{}{"type": "text"},
			"counterId":    map[string]interface{}{"type": "keyword"},
			"counterName":  map[string]interface{}{"type": "text"},
			"roomNumber":   map[string]interface{}{"type": "keyword"},
			"status":       map[string]interface{}{"type": "keyword"},
			"createdAt":    map[string]interface{}{"type": "date"},
			"updatedAt":    map[string]interface{}{"type": "date"},
			"servedAt":     map[string]interface{}{"type": "date"},
		},
	},
}

// EnsureIndex creates the ticket index if it does not exist
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// DropIndex removes the ticket index; a missing index is not an error
func (c *ElasticsearchClient) DropIndex(ctx context.Context) error {
	req := esapi.IndicesDeleteRequest{Index: []string{c.config.Index}}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index error: %s", res.String())
	}
	return nil
}

// IndexTicket upserts the ticket document under its id
func (c *ElasticsearchClient) IndexTicket(ctx context.Context, ticket *models.Ticket) error {
	body, err := json.Marshal(toDocument(ticket))
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: ticket.ID,
		Body:       bytes.NewReader(body),
		Refresh:    c.config.Refresh,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteByService drops every document of a deleted service
func (c *ElasticsearchClient) DeleteByService(ctx context.Context, serviceID string) error {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"serviceId": serviceID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req := esapi.DeleteByQueryRequest{
		Index:     []string{c.config.Index},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete by query error: %s", res.String())
	}
	return nil
}

// buildSearchQuery combines free text with keyword filters
func buildSearchQuery(req models.TicketSearchRequest) map[string]interface{} {
	var must []map[string]interface{}
	var filter []map[string]interface{}

	if q := strings.TrimSpace(req.Query); q != "" {
		must = append(must, map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"prefix": map[string]interface{}{
						"ticketNumber": map[string]interface{}{"value": strings.ToLower(q), "boost": 3},
					}},
					{"multi_match": map[string]interface{}{
						"query":     q,
						"fields":    []string{"customerName^2", "serviceName", "counterName"},
						"fuzziness": "AUTO",
					}},
				},
				"minimum_should_match": 1,
			},
		})
	}
	if req.ServiceID != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"serviceId": req.ServiceID}})
	}
	if req.Status != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"status": req.Status}})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"bool": boolQuery}
}

func buildSortQuery(query string) []map[string]interface{} {
	if strings.TrimSpace(query) != "" {
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"createdAt": map[string]interface{}{"order": "desc"}},
		}
	}
	return []map[string]interface{}{
		{"createdAt": map[string]interface{}{"order": "desc"}},
	}
}

// SearchTickets runs a paged search. Page and PageSize are expected to be normalized.
func (c *ElasticsearchClient) SearchTickets(ctx context.Context, sr models.TicketSearchRequest) (*models.TicketSearchResponse, error) {
	from := 0
	if sr.Page > 0 && sr.PageSize > 0 {
		from = (sr.Page - 1) * sr.PageSize
	}
	size := sr.PageSize
	if size <= 0 {
		size = 20
	}

	searchJSON, err := json.Marshal(map[string]interface{}{
		"query":            buildSearchQuery(sr),
		"sort":             buildSortQuery(sr.Query),
		"from":             from,
		"size":             size,
		"track_total_hits": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source ticketDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	tickets := make([]models.Ticket, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		tickets[i] = hit.Source.ticket()
	}

	return &models.TicketSearchResponse{Total: response.Hits.Total.Value, Tickets: tickets}, nil
}

// HealthCheck waits for at least yellow cluster health
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
