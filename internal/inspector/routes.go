package inspector

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mtlprog/chatboot/internal/inspector/dto"
	"github.com/mtlprog/chatboot/internal/static"
)

// RegisterRoutes registers all inspector routes.
func (in *Inspector) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", in.handleHealthz)

	mux.Handle("GET /{$}", in.auth.Authenticate(http.HandlerFunc(in.handleIndex)))

	// Dump plugins
	mux.Handle("GET /dumpapp", in.auth.Authenticate(http.HandlerFunc(in.handleListPlugins)))
	mux.Handle("GET /dumpapp/{plugin}", in.auth.Authenticate(http.HandlerFunc(in.handleDump)))

	// Inspector modules
	mux.Handle("GET /inspector", in.auth.Authenticate(http.HandlerFunc(in.handleListModules)))
	for domain, m := range in.modules {
		prefix := "/inspector/" + domain
		mux.Handle(prefix+"/", in.auth.Authenticate(http.StripPrefix(prefix, m)))
	}
}

// handleHealthz returns 200 OK if the database is reachable.
func (in *Inspector) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := in.env.DB.Ping(r.Context()); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (in *Inspector) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.IndexHTML))
}

func (in *Inspector) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, dto.NamesResponse{Names: in.Plugins()})
}

func (in *Inspector) handleListModules(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, dto.NamesResponse{Names: in.Modules()})
}

// handleDump runs a dump plugin. Repeated ?arg= values are passed as arguments.
func (in *Inspector) handleDump(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("plugin")
	plugin, ok := in.plugins[name]
	if !ok {
		respondError(w, http.StatusNotFound, "PLUGIN_NOT_FOUND", "no such dump plugin: "+name)
		return
	}

	// Buffer so a failing plugin does not leave a half-written 200.
	var buf bytes.Buffer
	if err := plugin.Dump(r.Context(), &buf, r.URL.Query()["arg"]); err != nil {
		slog.Error("dump plugin failed", "plugin", name, "error", err)
		respondError(w, http.StatusInternalServerError, "DUMP_FAILED", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}
