//go:build integration

package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
)

// startMinio runs a MinIO container and returns storage config pointing at it
func startMinio(t *testing.T) config.StorageConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		WaitingFor: wait.ForHTTP("/minio/health/ready").
			WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start MinIO container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return config.StorageConfig{
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "artifacts-it",
	}
}

func TestStoreRoundTrip(t *testing.T) {
	cfg := startMinio(t)
	ctx := context.Background()

	store, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, store.EnsureBucket(ctx))
	// idempotent
	require.NoError(t, store.EnsureBucket(ctx))
	require.NoError(t, store.HealthCheck(ctx))

	body := "DEPT.M    GR.GAPI\n1000.0    45.2\n"
	err = store.Put(ctx, "logs/run-1.las", "text/plain", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	obj, err := store.Fetch(ctx, "logs/run-1.las")
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, int64(len(body)), obj.Size)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	keys, err := store.List(ctx, "logs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"logs/run-1.las"}, keys)

	_, err = store.Fetch(ctx, "logs/run-2.las")
	assert.True(t, errors.IsNotFound(err))
}

func TestStorePresignedDownload(t *testing.T) {
	cfg := startMinio(t)
	ctx := context.Background()

	store, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, store.EnsureBucket(ctx))

	body := "trace data"
	require.NoError(t, store.Put(ctx, "seismic/vol.segy", "application/octet-stream", strings.NewReader(body), int64(len(body))))

	u, err := store.PresignedURL(ctx, "seismic/vol.segy", 5*time.Minute)
	require.NoError(t, err)

	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}
