package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/filestore"
	"github.com/c360/osdugate/gateway/chat"
	"github.com/c360/osdugate/health"
	"github.com/c360/osdugate/metric"
	"github.com/c360/osdugate/osdu"
	"github.com/c360/osdugate/osdu/auth"
	"github.com/c360/osdugate/pkg/retry"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// newGateway builds a server whose OSDU services all point at upstream
func newGateway(t *testing.T, upstream http.Handler, opts ...Option) *Server {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Partition.Default = "osdu"
	cfg.Services = map[string]config.ServiceConfig{}
	for _, name := range []string{config.ServiceSchema, config.ServiceLegal,
		config.ServiceEntitlements, config.ServiceSearch, config.ServiceStorage} {
		cfg.Services[name] = config.ServiceConfig{
			Endpoint: srv.URL,
			Timeout:  config.Duration(5 * time.Second),
		}
	}

	client, err := osdu.NewClient(cfg, auth.StaticSource("test-token"),
		osdu.WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	gw, err := NewServer(cfg.Gateway, client, opts...)
	require.NoError(t, err)
	require.NoError(t, gw.Setup())
	return gw
}

// graphqlData writes a GraphQL envelope with the given data payload
func graphqlData(data string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":%s}`, data)
	}
}

func doJSON(t *testing.T, gw *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	var gotPartition string
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPartition = r.Header.Get("data-partition-id")
		graphqlData(`{"search":{"totalCount":2,"cursor":"next","results":[
			{"id":"osdu:wellbore:1","kind":"osdu:wks:wellbore:1.0.0"},
			{"id":"osdu:wellbore:2","kind":"osdu:wks:wellbore:1.0.0"}]}}`)(w, r)
	}))

	rec := doJSON(t, gw, http.MethodPost, "/api/search",
		`{"kind":"osdu:wks:wellbore:1.0.0","query":"data.FacilityName:\"A-1\"","limit":10}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "osdu", gotPartition)

	var result osdu.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, "next", result.Cursor)
	assert.Len(t, result.Results, 2)
}

func TestSearchPartitionHeader(t *testing.T) {
	var gotPartition string
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPartition = r.Header.Get("data-partition-id")
		graphqlData(`{"search":{"totalCount":0,"results":[]}}`)(w, r)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"kind":"osdu:wks:wellbore:1.0.0"}`))
	req.Header.Set(partitionHeader, "tenant-b")
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tenant-b", gotPartition)
}

func TestSearchValidation(t *testing.T) {
	gw := newGateway(t, graphqlData(`{}`))

	rec := doJSON(t, gw, http.MethodPost, "/api/search", `{"query":"missing kind"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "kind is required")

	rec = doJSON(t, gw, http.MethodPost, "/api/search", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchemaNotFound(t *testing.T) {
	gw := newGateway(t, graphqlData(`{"schema":null}`))

	rec := doJSON(t, gw, http.MethodGet, "/api/schemas/osdu:wks:wellbore:1.0.0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "resource not found")
}

func TestCreateLegalTag(t *testing.T) {
	gw := newGateway(t, graphqlData(`{"createLegalTag":{"name":"osdu-public","description":"demo"}}`))

	rec := doJSON(t, gw, http.MethodPost, "/api/legal-tags",
		`{"name":"osdu-public","description":"demo","properties":{"countryOfOrigin":["US"]}}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var tag osdu.LegalTag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tag))
	assert.Equal(t, "osdu-public", tag.Name)

	rec = doJSON(t, gw, http.MethodPost, "/api/legal-tags", `{"description":"unnamed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveMember(t *testing.T) {
	gw := newGateway(t, graphqlData(`{"removeMember":true}`))

	rec := doJSON(t, gw, http.MethodDelete,
		"/api/groups/viewers@osdu.example.com/members/user@example.com", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpstreamErrorSanitized(t *testing.T) {
	gw := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token endpoint https://internal.example.com rejected", http.StatusUnauthorized)
	}))

	rec := doJSON(t, gw, http.MethodGet, "/api/records/osdu:wellbore:1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream authentication failed")
	assert.NotContains(t, rec.Body.String(), "internal.example.com")
}

func TestGraphQLPassThrough(t *testing.T) {
	gw := newGateway(t, graphqlData(`{"ok":true}`))

	rec := doJSON(t, gw, http.MethodPost, "/graphql/search", `{"query":"query { ok }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"ok":true}}`, rec.Body.String())

	rec = doJSON(t, gw, http.MethodPost, "/graphql/search", `{"variables":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraphQLUnknownService(t *testing.T) {
	gw := newGateway(t, graphqlData(`{"ok":true}`))

	rec := doJSON(t, gw, http.MethodPost, "/graphql/seismic", `{"query":"query { ok }"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "errors")
}

func TestRequestIDHeader(t *testing.T) {
	gw := newGateway(t, graphqlData(`{"ok":true}`))

	rec := doJSON(t, gw, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-abc-123")
	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-abc-123", rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	gw := newGateway(t, graphqlData(`{"ok":true}`))

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://explorer.example.com")
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://explorer.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), partitionHeader)
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("no monitor", func(t *testing.T) {
		gw := newGateway(t, graphqlData(`{"ok":true}`))

		rec := doJSON(t, gw, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "healthy")
	})

	t.Run("failing component", func(t *testing.T) {
		monitor := health.NewMonitor()
		monitor.Register("filestore", func(context.Context) error {
			return fmt.Errorf("connection refused")
		})

		gw := newGateway(t, graphqlData(`{"ok":true}`), WithMonitor(monitor))

		rec := doJSON(t, gw, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		require.Len(t, resp.Components, 1)
		assert.Equal(t, "filestore", resp.Components[0].Component)
	})
}

// s3Stub emulates GetObject and bucket probes for the "artifacts" bucket
func s3Stub(objects map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/artifacts"), "/")
		if key == "" {
			if _, ok := r.URL.Query()["location"]; ok {
				// bucket location lookup issued before signed requests
				w.Header().Set("Content-Type", "application/xml")
				fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		data, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key><BucketName>artifacts</BucketName></Error>`, key)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"stub"`)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte(data))
	}
}

func newTestFilestore(t *testing.T, objects map[string]string, opts ...filestore.Option) *filestore.Store {
	t.Helper()
	srv := httptest.NewServer(s3Stub(objects))
	t.Cleanup(srv.Close)

	store, err := filestore.New(config.StorageConfig{
		Endpoint:  srv.URL,
		AccessKey: "stub-access",
		SecretKey: "stub-secret",
		Bucket:    "artifacts",
	}, opts...)
	require.NoError(t, err)
	return store
}

func TestFilePreview(t *testing.T) {
	store := newTestFilestore(t, map[string]string{
		"logs/run-1.las": "~Version Information\n",
	})
	gw := newGateway(t, graphqlData(`{"ok":true}`), WithFilestore(store))

	rec := doJSON(t, gw, http.MethodGet, "/file/logs/run-1.las", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "~Version Information\n", rec.Body.String())
}

func TestFileNotFound(t *testing.T) {
	store := newTestFilestore(t, nil)
	gw := newGateway(t, graphqlData(`{"ok":true}`), WithFilestore(store))

	rec := doJSON(t, gw, http.MethodGet, "/file/missing.las", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilePresignRedirect(t *testing.T) {
	store := newTestFilestore(t, map[string]string{"big.segy": "0123456789"},
		filestore.WithPreviewLimit(4))
	gw := newGateway(t, graphqlData(`{"ok":true}`), WithFilestore(store))

	// Explicit presign request
	rec := doJSON(t, gw, http.MethodGet, "/file/big.segy?presign=true", "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "X-Amz-Signature")

	// Object above the preview limit falls back to a redirect
	rec = doJSON(t, gw, http.MethodGet, "/file/big.segy", "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "big.segy")
}

func TestChatUpgradeWithMetrics(t *testing.T) {
	handler, err := chat.NewHandler(config.ChatConfig{Model: "test-model"}, nil)
	require.NoError(t, err)

	gw := newGateway(t, graphqlData(`{"ok":true}`),
		WithChat(handler), WithMetrics(metric.NewRegistry().CoreMetrics()))

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	// A recorder cannot take over the connection, so dial a real server.
	// The upgrade must survive every wrapping middleware.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "websocket upgrade through the middleware chain")
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first chat.Envelope
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "session", first.Type)
	assert.NotEmpty(t, first.SessionID)
}

func TestValidateRecordEndpoint(t *testing.T) {
	definition := `{"type":"object","required":["WellboreID"],"properties":{"WellboreID":{"type":"string"}}}`
	gw := newGateway(t, graphqlData(
		`{"schema":{"status":"PUBLISHED","schema":`+definition+`}}`),
		WithValidation())

	rec := doJSON(t, gw, http.MethodPost, "/api/records/validate",
		`{"kind":"osdu:wks:Wellbore:1.0.0","data":{"WellboreID":"wb-1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Valid  bool     `json:"valid"`
		Issues []string `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)

	rec = doJSON(t, gw, http.MethodPost, "/api/records/validate",
		`{"kind":"osdu:wks:Wellbore:1.0.0","data":{"WellboreID":42}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Issues)

	rec = doJSON(t, gw, http.MethodPost, "/api/records/validate", `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "kind is required")
}

func TestPartitionAllowList(t *testing.T) {
	srv := httptest.NewServer(graphqlData(`{"search":{"totalCount":0,"results":[]}}`))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Partition.Default = "osdu"
	cfg.Partition.Allowed = []string{"osdu"}
	cfg.Services = map[string]config.ServiceConfig{
		config.ServiceSearch: {Endpoint: srv.URL, Timeout: config.Duration(5 * time.Second)},
	}

	client, err := osdu.NewClient(cfg, auth.StaticSource("test-token"),
		osdu.WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	gw, err := NewServer(cfg.Gateway, client)
	require.NoError(t, err)
	require.NoError(t, gw.Setup())

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"kind":"osdu:wks:wellbore:1.0.0"}`))
	req.Header.Set(partitionHeader, "tenant-b")
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request")

	// The configured partition still passes
	rec = doJSON(t, gw, http.MethodPost, "/api/search", `{"kind":"osdu:wks:wellbore:1.0.0"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/api/search":                "/api/search",
		"/api/legal-tags/tag-1":      "/api/legal-tags",
		"/graphql/search":            "/graphql",
		"/file/logs/a.las":           "/file",
		"/health":                    "/health",
		"/favicon.ico":               "/other",
	}
	for path, want := range tests {
		assert.Equal(t, want, routeLabel(path), path)
	}
}
