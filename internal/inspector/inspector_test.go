package inspector_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/chatboot/internal/database"
	"github.com/mtlprog/chatboot/internal/httpclient"
	"github.com/mtlprog/chatboot/internal/inspector"
	"github.com/mtlprog/chatboot/internal/inspector/dto"
)

func newInspector(t *testing.T, cfg inspector.Config) *inspector.Inspector {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.DumperPlugins == nil {
		cfg.DumperPlugins = inspector.DefaultDumperPlugins
	}
	if cfg.InspectorModules == nil {
		cfg.InspectorModules = inspector.DefaultInspectorModules
	}
	in, err := inspector.New(cfg)
	require.NoError(t, err)
	return in
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestConfigValidate(t *testing.T) {
	base := inspector.Config{
		Addr:             "127.0.0.1:0",
		DumperPlugins:    inspector.DefaultDumperPlugins,
		InspectorModules: inspector.DefaultInspectorModules,
	}
	require.NoError(t, base.Validate())

	noAddr := base
	noAddr.Addr = ""
	assert.ErrorIs(t, noAddr.Validate(), inspector.ErrInvalidConfig)

	noPlugins := base
	noPlugins.DumperPlugins = nil
	assert.ErrorIs(t, noPlugins.Validate(), inspector.ErrInvalidConfig)

	noModules := base
	noModules.InspectorModules = nil
	assert.ErrorIs(t, noModules.Validate(), inspector.ErrInvalidConfig)

	negative := base
	negative.HistorySize = -1
	assert.ErrorIs(t, negative.Validate(), inspector.ErrInvalidConfig)
}

func TestNewRejectsDuplicatePlugins(t *testing.T) {
	_, err := inspector.New(inspector.Config{
		Addr: "127.0.0.1:0",
		DumperPlugins: func(env inspector.Env) []inspector.DumperPlugin {
			return append(inspector.DefaultDumperPlugins(env), inspector.DefaultDumperPlugins(env)...)
		},
		InspectorModules: inspector.DefaultInspectorModules,
	})
	assert.ErrorIs(t, err, inspector.ErrInvalidConfig)
}

func TestDefaultsWithoutDatabase(t *testing.T) {
	in := newInspector(t, inspector.Config{})

	assert.Equal(t, []string{"build", "network"}, in.Plugins())
	assert.Equal(t, []string{"metrics", "network", "runtime"}, in.Modules())
}

func TestInterceptorRecordsExchanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	in := newInspector(t, inspector.Config{HistorySize: 2})
	client := httpclient.New(httpclient.DefaultConfig())
	client.AddNetworkInterceptor(in.Interceptor())

	for _, path := range []string{"/a", "/b", "/missing"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("X-Auth-Token", "secret")
		resp, err := client.HTTP().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	events := in.Store().Recent(0)
	require.Len(t, events, 2, "history is bounded")
	assert.Equal(t, srv.URL+"/missing", events[0].URL)
	assert.Equal(t, http.StatusNotFound, events[0].Status)
	assert.Equal(t, srv.URL+"/b", events[1].URL)
	assert.Equal(t, "[redacted]", events[0].RequestHeaders["X-Auth-Token"])

	got, ok := in.Store().Get(events[1].ID)
	require.True(t, ok)
	assert.Equal(t, http.MethodGet, got.Method)
}

func TestInterceptorRecordsTransportErrors(t *testing.T) {
	in := newInspector(t, inspector.Config{})
	failing := httpclient.RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})
	client := httpclient.NewWithTransport(failing, 0, in.Interceptor())

	_, err := client.HTTP().Get("http://chat.invalid/api/info")
	require.Error(t, err)

	events := in.Store().Recent(1)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Error, io.ErrUnexpectedEOF.Error())
	assert.Zero(t, events[0].Status)
}

func TestRoutes(t *testing.T) {
	in := newInspector(t, inspector.Config{})
	h := in.Handler()

	client := httpclient.NewWithTransport(httpclient.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req, ContentLength: 0}, nil
	}), 0, in.Interceptor())
	resp, err := client.HTTP().Get("http://chat.example/api/info")
	require.NoError(t, err)
	resp.Body.Close()

	t.Run("index", func(t *testing.T) {
		w := get(t, h, "/", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "chatboot inspector")
	})

	t.Run("list plugins", func(t *testing.T) {
		w := get(t, h, "/dumpapp", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body dto.NamesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, []string{"build", "network"}, body.Names)
	})

	t.Run("dump build", func(t *testing.T) {
		w := get(t, h, "/dumpapp/build", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "chatboot "))
	})

	t.Run("dump network", func(t *testing.T) {
		w := get(t, h, "/dumpapp/network?arg=5", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "http://chat.example/api/info")
	})

	t.Run("dump network bad arg", func(t *testing.T) {
		w := get(t, h, "/dumpapp/network?arg=x", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("unknown plugin", func(t *testing.T) {
		w := get(t, h, "/dumpapp/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list modules", func(t *testing.T) {
		w := get(t, h, "/inspector", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body dto.NamesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, []string{"metrics", "network", "runtime"}, body.Names)
	})

	t.Run("network module", func(t *testing.T) {
		w := get(t, h, "/inspector/network/?limit=10", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body dto.NetworkEventsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Events, 1)
		assert.Equal(t, 1, body.Total)

		one := get(t, h, "/inspector/network/"+body.Events[0].ID, "")
		assert.Equal(t, http.StatusOK, one.Code)

		missing := get(t, h, "/inspector/network/does-not-exist", "")
		assert.Equal(t, http.StatusNotFound, missing.Code)

		bad := get(t, h, "/inspector/network/?limit=-1", "")
		assert.Equal(t, http.StatusBadRequest, bad.Code)
	})

	t.Run("runtime module", func(t *testing.T) {
		w := get(t, h, "/inspector/runtime/", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body dto.RuntimeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Positive(t, body.Goroutines)
	})

	t.Run("metrics module", func(t *testing.T) {
		w := get(t, h, "/inspector/metrics/", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `chatboot_http_client_requests_total{code="200",method="GET"} 1`)
	})

	t.Run("healthz without database", func(t *testing.T) {
		w := get(t, h, "/healthz", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRoutesRequireToken(t *testing.T) {
	in := newInspector(t, inspector.Config{Token: "s3cret"})
	h := in.Handler()

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/dumpapp", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/inspector/network/", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/dumpapp", "s3cret").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/healthz", "").Code, "healthz stays open")
}

func TestDatabasePlugin(t *testing.T) {
	ctx := context.Background()
	db, err := database.Initializer{DataDir: t.TempDir()}.Init(ctx, database.Config{Name: "rocketchat.db", Version: 2})
	require.NoError(t, err)
	defer db.Close()

	in := newInspector(t, inspector.Config{Env: inspector.Env{DB: db}})
	h := in.Handler()

	assert.Equal(t, []string{"build", "database", "network"}, in.Plugins())

	w := get(t, h, "/dumpapp/database", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "driver:    sqlite")
	assert.Contains(t, body, "version:   2")
	assert.Contains(t, body, "  accounts\n")

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", "").Code)
}

func TestStartAndShutdown(t *testing.T) {
	ctx := context.Background()

	in, err := inspector.Initializer{}.Initialize(ctx, inspector.Config{
		Addr:             "127.0.0.1:0",
		DumperPlugins:    inspector.DefaultDumperPlugins,
		InspectorModules: inspector.DefaultInspectorModules,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, in.Start(ctx), inspector.ErrAlreadyStarted)

	resp, err := http.Get("http://" + in.Addr() + "/dumpapp/build")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, in.Shutdown(ctx))
	require.NoError(t, in.Shutdown(ctx), "second shutdown is a no-op")
}

func TestShutdownThenRestart(t *testing.T) {
	ctx := context.Background()
	in := newInspector(t, inspector.Config{})

	for i := 0; i < 3; i++ {
		require.NoError(t, in.Start(ctx))

		resp, err := http.Get("http://" + in.Addr() + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		require.NoError(t, in.Shutdown(ctx))
	}
}

func TestStartFailsOnBusyAddress(t *testing.T) {
	ctx := context.Background()

	first := newInspector(t, inspector.Config{})
	require.NoError(t, first.Start(ctx))
	defer first.Shutdown(ctx)

	second := newInspector(t, inspector.Config{Addr: first.Addr()})
	assert.Error(t, second.Start(ctx))
}

func TestShutdownNilSafe(t *testing.T) {
	var in *inspector.Inspector
	assert.NoError(t, in.Shutdown(context.Background()))
}
