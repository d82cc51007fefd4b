package models

// CreateVirtualTicketRequest - запрос на получение виртуального талона
type CreateVirtualTicketRequest struct {
	ServiceID string `json:"serviceId"`
}

// CallNextRequest - вызов следующего клиента к стойке
type CallNextRequest struct {
	CounterID string `json:"counterId"`
	ServiceID string `json:"serviceId"`
}

// CallNextResult is the outcome of a call-next. Ticket is nil when nobody is waiting.
type CallNextResult struct {
	Ticket  *Ticket `json:"ticket,omitempty"`
	Served  *Ticket `json:"served,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Waiting reports whether a customer was called.
func (r *CallNextResult) Waiting() bool {
	return r != nil && r.Ticket != nil
}

// CreateServiceRequest - создание услуги
type CreateServiceRequest struct {
	Name string `json:"name"`
}

// CreateCounterRequest - создание стойки
type CreateCounterRequest struct {
	Name       string `json:"name"`
	RoomNumber string `json:"roomNumber"`
	ServiceID  string `json:"serviceId"`
}

// QueueStatus is the queue projection pushed to viewers
type QueueStatus struct {
	VirtualTickets  []Ticket          `json:"virtualTickets"`
	PhysicalTickets []Ticket          `json:"physicalTickets"`
	CurrentServing  map[string]Ticket `json:"currentServing"`
}

// TodayStatistics is the statistics projection pushed to viewers
type TodayStatistics struct {
	TotalServedToday     int                `json:"totalServedToday"`
	OverallAvgWaitTime   float64            `json:"overallAvgWaitTime"`
	ServedTodayByService map[string]int     `json:"servedTodayByService"`
	AvgWaitTimeByService map[string]float64 `json:"avgWaitTimeByService"`
}

// ServiceDayStat aggregates served tickets of one service over a period
type ServiceDayStat struct {
	ServiceID   string  `json:"serviceId"`
	ServiceName string  `json:"serviceName"`
	ServedCount int     `json:"servedCount"`
	AvgWaitTime float64 `json:"avgWaitTime"`
}

// HourlyStat counts served tickets per hour of day
type HourlyStat struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// DailyPoint is one day of a statistics history
type DailyPoint struct {
	Date        string  `json:"date"`
	TotalServed int     `json:"totalServed"`
	AvgWaitTime float64 `json:"avgWaitTime"`
}

// HistoricalData groups history overall and per service
type HistoricalData struct {
	Overall   []DailyPoint            `json:"overall"`
	ByService map[string][]DailyPoint `json:"byService"`
}

// StatisticsOverview - статистика для администратора
type StatisticsOverview struct {
	TodayStatistics
	HistoricalData HistoricalData `json:"historicalData"`
}

// DailyStatistics - статистика за конкретный день
type DailyStatistics struct {
	Date         string           `json:"date"`
	TotalServed  int              `json:"totalServed"`
	AvgWaitTime  float64          `json:"avgWaitTime"`
	ServiceStats []ServiceDayStat `json:"serviceStats"`
	HourlyStats  []HourlyStat     `json:"hourlyStats"`
}

// ServiceStatistics - статистика по услуге
type ServiceStatistics struct {
	Service          Service      `json:"service"`
	TotalServedToday int          `json:"totalServedToday"`
	AvgWaitTimeToday float64      `json:"avgWaitTimeToday"`
	Last30Days       []DailyPoint `json:"last30Days"`
}

// StatisticsRange lists stored daily rows between two dates
type StatisticsRange struct {
	From       string           `json:"from"`
	To         string           `json:"to"`
	Statistics []DailyStatistic `json:"statistics"`
}

// TicketSearchRequest - параметры поиска талонов
type TicketSearchRequest struct {
	Query     string
	ServiceID string
	Status    string
	Page      int
	PageSize  int
}

// TicketSearchResponse - результат поиска талонов
type TicketSearchResponse struct {
	Total   int64    `json:"total"`
	Tickets []Ticket `json:"tickets"`
}
