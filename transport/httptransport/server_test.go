package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/componentregistry"
	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/query"
)

func newEngine(t *testing.T) *query.Engine {
	t.Helper()

	app := component.MustClass("Application")
	require.NoError(t, app.DeclareMethod("greet", component.MethodOptions{
		Exposure: component.Exposure{Call: component.Public()},
		Impl: func(_ context.Context, _ *component.Component, args []any) (any, error) {
			name, _ := args[0].(string)
			return "hello " + name, nil
		},
	}))

	registry := componentregistry.NewRegistry()
	registry.MustRegister(app)

	engine, err := query.NewEngine(registry, app)
	require.NoError(t, err)
	return engine
}

func newTestServer(t *testing.T, config Config) (*Server, *httptest.Server) {
	t.Helper()

	if config.Addr == "" {
		config.Addr = "127.0.0.1:0"
	}
	server, err := NewServer(newEngine(t), config)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())

	cfg = Config{Addr: ":4400"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/query", cfg.Path)

	cfg = Config{Addr: ":4400", RateLimit: -1}
	require.Error(t, cfg.Validate())

	cfg = Config{Addr: ":4400", RateLimit: 10}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.RateBurst)
}

func TestQueryOverHTTP(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	client, err := query.NewClient(NewTransport(ts.URL+"/query", ts.Client()))
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))

	method, err := client.Root().GetMethod("greet")
	require.NoError(t, err)

	result, err := method.Call(context.Background(), client.Root(), []any{"world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)
}

func TestQueryErrorCarriesEnvelope(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := ts.Client().Post(ts.URL+"/query", "application/json",
		strings.NewReader(`{"version": 99, "query": {"introspect=>": {"()": []}}}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestQueryRejectsGet(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := ts.Client().Get(ts.URL + "/query")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestQueryRateLimit(t *testing.T) {
	_, ts := newTestServer(t, Config{RateLimit: 1, RateBurst: 1})

	body := `{"version": 1, "query": {"introspect=>": {"()": []}}}`

	resp, err := ts.Client().Post(ts.URL+"/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Post(ts.URL+"/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestQueryOverWebSocket(t *testing.T) {
	_, ts := newTestServer(t, Config{AllowedOrigins: []string{"*"}})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/query/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	request := query.NewRequest(query.Document{Method: query.IntrospectMethod})
	require.NoError(t, conn.WriteJSON(request))

	var response map[string]any
	require.NoError(t, conn.ReadJSON(&response))
	require.NoError(t, query.ErrorFromEnvelope(response))

	shape, err := query.ShapeFromValue(response[query.ResultKey])
	require.NoError(t, err)
	assert.Equal(t, "Application", shape.Name)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusForError(errors.ErrUnauthorized))
	assert.Equal(t, http.StatusUpgradeRequired, statusForError(errors.ErrVersionMismatch))
	assert.Equal(t, http.StatusNotFound, statusForError(errors.ErrUnknownComponent))
	assert.Equal(t, http.StatusConflict, statusForError(errors.ErrIdentityConflict))
	assert.Equal(t, http.StatusBadRequest, statusForError(errors.ErrInvalidQuery))
	assert.Equal(t, http.StatusInternalServerError, statusForError(context.Canceled))
}
