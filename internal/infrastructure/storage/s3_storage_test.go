package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the handful of path-style object calls the archive uses
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3Storage(t *testing.T) (*S3ObjectStorage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3ObjectStorage(context.Background(), config.StorageConfig{
		Bucket:          "mdfe-archive",
		Region:          "sa-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	return s, fake
}

func TestNewS3ObjectStorage_RequiresBucket(t *testing.T) {
	_, err := NewS3ObjectStorage(context.Background(), config.StorageConfig{})
	assert.ErrorContains(t, err, "bucket is required")
}

func TestS3ObjectStorage_PutGetDelete(t *testing.T) {
	s, fake := newFakeS3Storage(t)
	ctx := context.Background()
	key := "tenant/2024/10/35241011222333000181580010000001231123456780-mdfe.xml"

	require.NoError(t, s.Put(ctx, key, []byte("<MDFe/>"), "application/xml"))
	assert.Equal(t, "application/xml", fake.types["mdfe-archive/"+key])

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "<MDFe/>", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestS3ObjectStorage_PresignGet(t *testing.T) {
	s, _ := newFakeS3Storage(t)

	u, expiresAt, err := s.PresignGet(context.Background(), "a/b.pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "/mdfe-archive/a/b.pdf")
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=300")
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	u, _, err = s.PresignGet(context.Background(), "a/b.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, u, "X-Amz-Expires=900")
}

func TestS3ObjectStorage_EmptyKey(t *testing.T) {
	s, _ := newFakeS3Storage(t)
	ctx := context.Background()

	assert.Error(t, s.Put(ctx, "", nil, "text/plain"))
	_, err := s.Get(ctx, "")
	assert.Error(t, err)
	_, _, err = s.PresignGet(ctx, "", 0)
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, ""))
	assert.Equal(t, "mdfe-archive", s.Bucket())
}

func TestMemoryObjectStorage(t *testing.T) {
	s := NewMemoryObjectStorage()
	ctx := context.Background()

	payload := []byte("pdf")
	require.NoError(t, s.Put(ctx, "k", payload, "application/pdf"))
	payload[0] = 'x'

	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data), "stored bytes are copied")

	u, _, err := s.PresignGet(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, s.BaseURL+"/k?expires="))

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
