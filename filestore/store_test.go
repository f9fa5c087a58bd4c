package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
)

type stubObject struct {
	contentType string
	data        []byte
}

// objectHandler emulates enough of the S3 REST surface for GetObject and
// BucketExists against the "artifacts" bucket.
func objectHandler(objects map[string]stubObject) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/artifacts"), "/")
		if key == "" {
			if _, ok := r.URL.Query()["location"]; ok {
				// bucket location lookup issued before signed requests
				w.Header().Set("Content-Type", "application/xml")
				fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
				return
			}
			// bucket probe
			w.WriteHeader(http.StatusOK)
			return
		}
		obj, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key><BucketName>artifacts</BucketName></Error>`, key)
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"stub"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(obj.data)
	}
}

func newStubStore(t *testing.T, handler http.Handler, opts ...Option) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := New(config.StorageConfig{
		Endpoint:  srv.URL,
		AccessKey: "stub-access",
		SecretKey: "stub-secret",
		Bucket:    "artifacts",
	}, opts...)
	require.NoError(t, err)
	return store
}

func TestNewValidation(t *testing.T) {
	base := config.StorageConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "artifacts",
	}

	t.Run("valid", func(t *testing.T) {
		store, err := New(base)
		require.NoError(t, err)
		assert.Equal(t, "artifacts", store.Bucket())
	})

	t.Run("missing endpoint", func(t *testing.T) {
		cfg := base
		cfg.Endpoint = ""
		_, err := New(cfg)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("missing bucket", func(t *testing.T) {
		cfg := base
		cfg.Bucket = ""
		_, err := New(cfg)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("missing credentials", func(t *testing.T) {
		cfg := base
		cfg.SecretKey = ""
		_, err := New(cfg)
		assert.True(t, errors.IsInvalid(err))
	})
}

func TestFetch(t *testing.T) {
	store := newStubStore(t, objectHandler(map[string]stubObject{
		"logs/wellbore-a.las": {contentType: "text/plain", data: []byte("~Version Information\nVERS. 2.0\n")},
	}))

	obj, err := store.Fetch(context.Background(), "logs/wellbore-a.las")
	require.NoError(t, err)
	defer obj.Body.Close()

	assert.Equal(t, "logs/wellbore-a.las", obj.Key)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, int64(30), obj.Size)

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "~Version Information\nVERS. 2.0\n", string(data))
}

func TestFetchNotFound(t *testing.T) {
	store := newStubStore(t, objectHandler(nil))

	_, err := store.Fetch(context.Background(), "missing.las")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.True(t, errors.IsNotFound(err))
}

func TestFetchEmptyKey(t *testing.T) {
	store := newStubStore(t, objectHandler(nil))

	_, err := store.Fetch(context.Background(), "")
	assert.True(t, errors.IsInvalid(err))
}

func TestFetchPreviewLimit(t *testing.T) {
	store := newStubStore(t, objectHandler(map[string]stubObject{
		"big.segy": {contentType: "application/octet-stream", data: []byte("0123456789")},
	}), WithPreviewLimit(4))

	_, err := store.Fetch(context.Background(), "big.segy")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "preview limit")
}

func TestPresignedURL(t *testing.T) {
	store := newStubStore(t, objectHandler(nil))

	u, err := store.PresignedURL(context.Background(), "logs/wellbore-a.las", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "logs/wellbore-a.las")
	assert.Contains(t, u, "X-Amz-Signature")

	_, err = store.PresignedURL(context.Background(), "", time.Minute)
	assert.True(t, errors.IsInvalid(err))
}

func TestHealthCheck(t *testing.T) {
	t.Run("bucket present", func(t *testing.T) {
		store := newStubStore(t, objectHandler(nil))
		assert.NoError(t, store.HealthCheck(context.Background()))
	})

	t.Run("bucket missing", func(t *testing.T) {
		store := newStubStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		err := store.HealthCheck(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestClassify(t *testing.T) {
	store := &Store{bucket: "artifacts"}

	tests := []struct {
		name      string
		err       error
		transient bool
		invalid   bool
		fatal     bool
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey"}, false, true, false},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, false, true, false},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied"}, false, false, true},
		{"bad signature", minio.ErrorResponse{Code: "SignatureDoesNotMatch"}, false, false, true},
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), true, false, false},
		{"timeout", fmt.Errorf("context deadline exceeded"), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.classify(tt.err, "Fetch", "some/key")
			assert.Equal(t, tt.transient, errors.IsTransient(err))
			assert.Equal(t, tt.invalid, errors.IsInvalid(err))
			assert.Equal(t, tt.fatal, errors.IsFatal(err))
		})
	}
}
