package inspector

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtlprog/chatboot/internal/inspector/dto"
)

// InspectorModule serves one inspection domain under /inspector/{domain}/.
type InspectorModule interface {
	Domain() string
	http.Handler
}

// InspectorModulesProvider returns the inspector modules to expose.
type InspectorModulesProvider func(env Env) []InspectorModule

// DefaultInspectorModules exposes the network, runtime and metrics modules.
func DefaultInspectorModules(env Env) []InspectorModule {
	return []InspectorModule{
		networkModule{store: env.Store},
		runtimeModule{},
		metricsModule{handler: promhttp.HandlerFor(env.Registry, promhttp.HandlerOpts{})},
	}
}

type networkModule struct {
	store *Store
}

func (networkModule) Domain() string { return "network" }

// ServeHTTP lists events at "/" (optionally ?limit=N) and returns one event at "/{id}".
func (m networkModule) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(r.URL.Path, "/")
	if id != "" {
		e, ok := m.store.Get(id)
		if !ok {
			respondError(w, http.StatusNotFound, "EVENT_NOT_FOUND", "no such event")
			return
		}
		respondJSON(w, http.StatusOK, eventResponse(e))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recent := m.store.Recent(limit)
	events := make([]dto.NetworkEvent, 0, len(recent))
	for _, e := range recent {
		events = append(events, eventResponse(e))
	}
	respondJSON(w, http.StatusOK, dto.NetworkEventsResponse{Events: events, Total: m.store.Len()})
}

func eventResponse(e Event) dto.NetworkEvent {
	return dto.NetworkEvent{
		ID:             e.ID,
		StartedAt:      e.StartedAt.UTC(),
		Method:         e.Method,
		URL:            e.URL,
		RequestHeaders: e.RequestHeaders,
		Status:         e.Status,
		Error:          e.Error,
		DurationMS:     float64(e.Duration) / float64(time.Millisecond),
		ResponseSize:   e.ResponseSize,
	}
}

type runtimeModule struct{}

func (runtimeModule) Domain() string { return "runtime" }

func (runtimeModule) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	respondJSON(w, http.StatusOK, dto.RuntimeResponse{
		GoVersion:    runtime.Version(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    ms.HeapAlloc,
		HeapObjects:  ms.HeapObjects,
		TotalAlloc:   ms.TotalAlloc,
		NumGC:        ms.NumGC,
		PauseTotalNs: ms.PauseTotalNs,
	})
}

type metricsModule struct {
	handler http.Handler
}

func (metricsModule) Domain() string { return "metrics" }

func (m metricsModule) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}
