package osdu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu/auth"
	"github.com/c360/osdugate/osdu/introspect"
	"github.com/c360/osdugate/osdu/querybuilder"
	"github.com/c360/osdugate/pkg/retry"
)

// fastRetry keeps test retries quick
func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestClient(t *testing.T, service, endpoint string) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Partition.Default = "osdu"
	cfg.Services = map[string]config.ServiceConfig{
		service: {Endpoint: endpoint, Timeout: config.Duration(5 * time.Second)},
	}

	client, err := NewClient(cfg, auth.StaticSource("test-token"),
		WithRetryConfig(fastRetry()))
	require.NoError(t, err)
	return client
}

func graphqlOK(data string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":` + data + `}`))
	}
}

func TestExecuteSendsHeaders(t *testing.T) {
	var gotAuth, gotPartition string
	var gotBody graphqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPartition = r.Header.Get("data-partition-id")
		json.NewDecoder(r.Body).Decode(&gotBody)
		graphqlOK(`{"ok":true}`)(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	data, err := client.Execute(context.Background(), "search", "tenant-a",
		"query { ok }", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "tenant-a", gotPartition)
	assert.Equal(t, "query { ok }", gotBody.Query)
}

func TestExecuteDefaultPartition(t *testing.T) {
	var gotPartition string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPartition = r.Header.Get("data-partition-id")
		graphqlOK(`{"ok":true}`)(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	_, err := client.Execute(context.Background(), "search", "", "query { ok }", nil)
	require.NoError(t, err)
	assert.Equal(t, "osdu", gotPartition)
}

func TestExecuteUnknownService(t *testing.T) {
	client := newTestClient(t, "search", "http://unused.invalid")

	_, err := client.Execute(context.Background(), "seismic", "osdu", "query { ok }", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestExecuteRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		graphqlOK(`{"ok":true}`)(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	_, err := client.Execute(context.Background(), "search", "osdu", "query { ok }", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteDoesNotRetryInvalid(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	_, err := client.Execute(context.Background(), "search", "osdu", "query { ok }", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteUnauthorizedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	_, err := client.Execute(context.Background(), "search", "osdu", "query { ok }", nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestExecuteGraphQLValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"Cannot query field \"schemas\" on type \"Query\""}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, "schema", srv.URL)

	_, err := client.Execute(context.Background(), "schema", "osdu", "query { schemas }", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestExecutePartitionNotAllowed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		graphqlOK(`{"ok":true}`)(w, r)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Partition.Default = "osdu"
	cfg.Partition.Allowed = []string{"osdu", "tenant-a"}
	cfg.Services = map[string]config.ServiceConfig{
		"search": {Endpoint: srv.URL, Timeout: config.Duration(5 * time.Second)},
	}
	client, err := NewClient(cfg, auth.StaticSource("test-token"),
		WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), "search", "tenant-b", "query { ok }", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "not in allow list")
	assert.Equal(t, int32(0), calls.Load(), "disallowed partitions must not reach upstream")

	_, err = client.Execute(context.Background(), "search", "tenant-a", "query { ok }", nil)
	require.NoError(t, err)

	// Empty partition resolves to the default, which is allowed
	_, err = client.Execute(context.Background(), "search", "", "query { ok }", nil)
	require.NoError(t, err)
}

func TestExecuteChainFallsBack(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		json.NewDecoder(r.Body).Decode(&req)
		calls.Add(1)

		// Only the legacy root field exists on this deployment
		if !strings.Contains(req.Query, "query(") {
			w.Write([]byte(`{"errors":[{"message":"Cannot query field \"search\" on type \"Query\""}]}`))
			return
		}
		graphqlOK(`{"query":{"totalCount":1,"results":[{"id":"r1","kind":"k"}]}}`)(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	op, err := querybuilder.Lookup("search", querybuilder.OpSearch)
	require.NoError(t, err)

	data, shape, err := client.ExecuteChain(context.Background(), "search", "osdu",
		op, map[string]any{"kind": "k"})
	require.NoError(t, err)
	assert.Equal(t, "query", shape)
	assert.Contains(t, string(data), "totalCount")
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecuteChainInvalidOnLastShapeIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"Cannot query field \"x\""}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	op, err := querybuilder.Lookup("search", querybuilder.OpSearch)
	require.NoError(t, err)

	_, _, err = client.ExecuteChain(context.Background(), "search", "osdu", op, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestExecuteChainFatalStopsChain(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	op, err := querybuilder.Lookup("search", querybuilder.OpSearch)
	require.NoError(t, err)

	_, _, err = client.ExecuteChain(context.Background(), "search", "osdu", op, nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, int32(1), calls.Load(), "fatal errors must not advance the chain")
}

func TestExecuteChainExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)

	op, err := querybuilder.Lookup("search", querybuilder.OpSearch)
	require.NoError(t, err)

	_, _, err = client.ExecuteChain(context.Background(), "search", "osdu", op, nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestExecuteChainDiscoveredShape(t *testing.T) {
	const introspection = `{"__schema":{"queryType":{"name":"Query"},"types":[
		{"name":"Query","kind":"OBJECT","fields":[
			{"name":"query","type":{"name":"QueryResponse","kind":"OBJECT"}}]},
		{"name":"QueryResponse","kind":"OBJECT","fields":[
			{"name":"totalCount","type":{"name":"Int","kind":"SCALAR"}},
			{"name":"took","type":{"name":"Int","kind":"SCALAR"}}]}]}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch {
		case strings.Contains(req.Query, "__schema"):
			graphqlOK(introspection)(w, r)
		case strings.Contains(req.Query, "results"):
			// This deployment's result type carries no results list, so
			// every hand-written shape is rejected
			w.Write([]byte(`{"errors":[{"message":"Cannot query field \"results\" on type \"QueryResponse\""}]}`))
		default:
			graphqlOK(`{"query":{"totalCount":7,"took":12}}`)(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)
	manager, err := introspect.NewManager(context.Background(), client, time.Minute)
	require.NoError(t, err)
	client.UseIntrospection(manager)

	op, err := querybuilder.Lookup("search", querybuilder.OpSearch)
	require.NoError(t, err)

	data, shape, err := client.ExecuteChain(context.Background(), "search", "osdu",
		op, map[string]any{"kind": "k"})
	require.NoError(t, err)
	assert.Equal(t, "discovered:query", shape)
	assert.Contains(t, string(data), "totalCount")
}

func TestExecuteChainDiscoveredRootMissing(t *testing.T) {
	// The discovered schema exposes none of the operation's root fields,
	// so the chain still ends with the last shape's invalid error.
	const introspection = `{"__schema":{"queryType":{"name":"Query"},"types":[
		{"name":"Query","kind":"OBJECT","fields":[
			{"name":"unrelated","type":{"name":"String","kind":"SCALAR"}}]}]}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Query, "__schema") {
			graphqlOK(introspection)(w, r)
			return
		}
		w.Write([]byte(`{"errors":[{"message":"Cannot query field \"search\" on type \"Query\""}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, "search", srv.URL)
	manager, err := introspect.NewManager(context.Background(), client, time.Minute)
	require.NoError(t, err)
	client.UseIntrospection(manager)

	op, err := querybuilder.Lookup("search", querybuilder.OpSearch)
	require.NoError(t, err)

	_, _, err = client.ExecuteChain(context.Background(), "search", "osdu", op, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNormalizeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		invalid bool
	}{
		{"data only", `{"data":{"a":1}}`, false, false},
		{"null data", `{"data":null}`, true, true},
		{"empty body", `{}`, true, true},
		{"not json", `<html>`, true, false},
		{"validation error", `{"errors":[{"message":"Unknown argument \"q\""}]}`, true, true},
		{"server error", `{"errors":[{"message":"internal failure"}]}`, true, false},
		{"extension code", `{"errors":[{"message":"bad","extensions":{"code":"BAD_USER_INPUT"}}]}`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := normalizeEnvelope([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.invalid, errors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, data)
		})
	}
}

func TestUnwrapRoot(t *testing.T) {
	data, err := unwrapRoot(json.RawMessage(`{"search":{"totalCount":0}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalCount":0}`, string(data))

	_, err = unwrapRoot(json.RawMessage(`{"a":1,"b":2}`))
	assert.Error(t, err)

	_, err = unwrapRoot(json.RawMessage(`[]`))
	assert.Error(t, err)
}

func TestClassifyHTTPStatus(t *testing.T) {
	assert.NoError(t, classifyHTTPStatus(200))
	assert.True(t, errors.IsFatal(classifyHTTPStatus(401)))
	assert.True(t, errors.IsFatal(classifyHTTPStatus(403)))
	assert.True(t, errors.IsInvalid(classifyHTTPStatus(404)))
	assert.True(t, errors.IsTransient(classifyHTTPStatus(429)))
	assert.True(t, errors.IsTransient(classifyHTTPStatus(503)))
	assert.True(t, errors.IsInvalid(classifyHTTPStatus(400)))
}
