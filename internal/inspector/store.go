package inspector

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Event is one HTTP exchange seen by the network interceptor.
type Event struct {
	ID             string
	StartedAt      time.Time
	Method         string
	URL            string
	RequestHeaders map[string]string
	Status         int
	Error          string
	Duration       time.Duration
	ResponseSize   int64
}

// Store keeps the most recent events, evicting the oldest when full.
type Store struct {
	cache *lru.Cache[string, Event]
}

// NewStore creates a Store holding up to size events.
func NewStore(size int) (*Store, error) {
	cache, err := lru.New[string, Event](size)
	if err != nil {
		return nil, fmt.Errorf("create event cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Add records an event.
func (s *Store) Add(e Event) {
	s.cache.Add(e.ID, e)
}

// Get returns the event with the given ID.
func (s *Store) Get(id string) (Event, bool) {
	return s.cache.Peek(id)
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (s *Store) Recent(limit int) []Event {
	keys := s.cache.Keys()
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}

	events := make([]Event, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(events) < limit; i-- {
		if e, ok := s.cache.Peek(keys[i]); ok {
			events = append(events, e)
		}
	}
	return events
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	return s.cache.Len()
}

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"X-Auth-Token":  true,
}

// flattenHeaders copies h into a single-valued map with credentials redacted.
func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if redactedHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}
