package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/qiufen/internal/netutil"
	"github.com/getmockd/qiufen/pkg/config"
	"github.com/getmockd/qiufen/pkg/operation"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	port, err := netutil.FreePort()
	require.NoError(t, err)
	cfg := &config.Config{
		Port:       port,
		Host:       "127.0.0.1",
		Path:       "/graphql",
		SchemaFile: "schema.graphql",
	}
	cfg.ApplyDefaults()
	cfg.Subscription.Interval = "10ms"
	return cfg
}

func startServer(t *testing.T, cfg *config.Config, cat *operation.Catalog) *Server {
	t.Helper()
	srv := New()
	require.NoError(t, srv.Start(cfg, mustSchema(t, testSDL), cat))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv
}

func postJSON(t *testing.T, url, body string) *Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return &out
}

func TestServer_StartServesGraphQL(t *testing.T) {
	cfg := testConfig(t)
	srv := startServer(t, cfg, nil)
	assert.Equal(t, StateListening, srv.State())

	resp := postJSON(t, "http://"+srv.Addr()+"/graphql", `{"query":"{ user { id name } }"}`)
	assert.Empty(t, resp.Errors)
	user := resp.Data.(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "Hello World", user["name"])
	assert.NotContains(t, user, "pet")
}

func TestServer_SecondInstanceOnSamePort(t *testing.T) {
	cfg := testConfig(t)
	first := startServer(t, cfg, nil)

	second := New()
	err := second.Start(cfg, mustSchema(t, testSDL), nil)
	var inUse *PortInUseError
	require.True(t, errors.As(err, &inUse), "got %v", err)
	assert.Equal(t, cfg.Addr(), inUse.Addr)
	assert.Equal(t, StateStopped, second.State())

	assert.Equal(t, StateListening, first.State())
	resp := postJSON(t, "http://"+first.Addr()+"/graphql", `{"query":"{ hello }"}`)
	assert.Empty(t, resp.Errors)
}

func TestServer_InvalidAddress(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		t.Run(fmt.Sprint(port), func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Port = port

			srv := New()
			err := srv.Start(cfg, mustSchema(t, testSDL), nil)
			var invalid *AddressInvalidError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, StateStopped, srv.State())
		})
	}
}

func TestServer_StopIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	srv := New()
	require.NoError(t, srv.Stop(context.Background()), "stop before start")

	require.NoError(t, srv.Start(cfg, mustSchema(t, testSDL), nil))
	assert.ErrorIs(t, srv.Start(cfg, mustSchema(t, testSDL), nil), ErrAlreadyRunning)

	require.NoError(t, srv.Stop(context.Background()))
	require.NoError(t, srv.Stop(context.Background()))
	assert.Equal(t, StateStopped, srv.State())
	assert.Empty(t, srv.Addr())

	// The port is released.
	assert.True(t, netutil.IsAvailable(cfg.Host, cfg.Port))
	require.NoError(t, srv.Start(cfg, mustSchema(t, testSDL), nil))
	require.NoError(t, srv.Stop(context.Background()))
}

func TestServer_InvalidOverrideFailsStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Overrides = map[string]any{"User.name": map[string]any{"expr": "path +"}}

	srv := New()
	err := srv.Start(cfg, mustSchema(t, testSDL), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidOverride)
	assert.Equal(t, StateStopped, srv.State())
}

func TestServer_OverridesFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Overrides = map[string]any{
		"User.name": "Ada",
		"Pet":       map[string]any{"name": "Rex"},
	}
	srv := startServer(t, cfg, nil)

	resp := postJSON(t, "http://"+srv.Addr()+"/graphql", `{"query":"{ user { name pet { name } } }"}`)
	require.Empty(t, resp.Errors)
	b, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"name":"Ada","pet":{"name":"Rex"}}}`, string(b))
}

func TestServer_AuxiliaryRoutes(t *testing.T) {
	cat := operation.Parse(operation.Document{Name: "a.graphql", Source: `query Hello { hello }`})
	srv := startServer(t, testConfig(t), cat)
	base := "http://" + srv.Addr()

	resp, err := http.Get(base + OperationsPath)
	require.NoError(t, err)
	var entries []operation.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	_ = resp.Body.Close()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello", entries[0].Name)
	assert.Equal(t, operation.KindQuery, entries[0].Kind)

	resp, err = http.Get(base + HealthPath)
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, "listening", health["status"])

	postJSON(t, base+"/graphql", `{"query":"{ hello }"}`)
	resp, err = http.Get(base + MetricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `qiufen_requests_total{kind="query",status="200"} 1`)
}

func TestServer_StopDuringRequests(t *testing.T) {
	cfg := testConfig(t)
	srv := New()
	require.NoError(t, srv.Start(cfg, mustSchema(t, testSDL), nil))
	url := "http://" + srv.Addr() + "/graphql"

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			resp, err := http.Post(url, "application/json", bytes.NewBufferString(`{"query":"{ users { id } }"}`))
			if err != nil {
				return
			}
			_ = resp.Body.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	<-done
	assert.Equal(t, StateStopped, srv.State())
}
