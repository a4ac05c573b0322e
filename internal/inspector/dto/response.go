package dto

import "time"

// NamesResponse lists registered dump plugins or inspector modules.
type NamesResponse struct {
	Names []string `json:"names"`
}

// NetworkEvent is one recorded HTTP exchange.
type NetworkEvent struct {
	ID             string            `json:"id"`
	StartedAt      time.Time         `json:"started_at"`
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	Status         int               `json:"status,omitempty"`
	Error          string            `json:"error,omitempty"`
	DurationMS     float64           `json:"duration_ms"`
	ResponseSize   int64             `json:"response_size"`
}

// NetworkEventsResponse represents the response for GET /inspector/network/.
type NetworkEventsResponse struct {
	Events []NetworkEvent `json:"events"`
	Total  int            `json:"total"`
}

// RuntimeResponse is a snapshot of Go runtime statistics.
type RuntimeResponse struct {
	GoVersion    string `json:"go_version"`
	Goroutines   int    `json:"goroutines"`
	HeapAlloc    uint64 `json:"heap_alloc"`
	HeapObjects  uint64 `json:"heap_objects"`
	TotalAlloc   uint64 `json:"total_alloc"`
	NumGC        uint32 `json:"num_gc"`
	PauseTotalNs uint64 `json:"pause_total_ns"`
}
