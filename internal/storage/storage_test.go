package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePutListRemove(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), "https://cdn.example.com/")
	require.NoError(t, err)

	url, err := store.Put(ctx, "jobs/j1/translations/t1/v1", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/jobs/j1/translations/t1/v1.png", url)
	_, err = store.Put(ctx, "jobs/j1/expanded/a.jpg", []byte("jpg"), "image/jpeg")
	require.NoError(t, err)
	_, err = store.Put(ctx, "jobs/j2/other.png", []byte("x"), "image/png")
	require.NoError(t, err)

	keys, err := store.List(ctx, "jobs/j1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs/j1/expanded/a.jpg", "jobs/j1/translations/t1/v1.png"}, keys)

	removed, err := store.RemovePrefix(ctx, "jobs/j1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, statErr := os.Stat(filepath.Join(store.BasePath(), "jobs", "j1"))
	assert.True(t, os.IsNotExist(statErr), "emptied directories are pruned")
	keys, err = store.List(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs/j2/other.png"}, keys)
}

func TestFileStoreListMissingPrefix(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	keys, err := store.List(context.Background(), "nothing/here")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "..", "../etc/passwd", "a/../../b"} {
		_, err := sanitizeKey(key)
		assert.Error(t, err, key)
	}
	got, err := sanitizeKey("/jobs//a/./b.png")
	require.NoError(t, err)
	assert.Equal(t, "jobs/a/b.png", got)
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	data, contentType, err := NewFetcher(nil, 3, time.Millisecond).Download(context.Background(), server.URL+"/out.png")
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcherDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, _, err := NewFetcher(nil, 3, time.Millisecond).Download(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileStoreReadByURL(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), "https://cdn.example.com")
	require.NoError(t, err)

	url, err := store.Put(ctx, "jobs/j1/translations/t1/task-1", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	data, err := store.Read(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = store.Read(ctx, "https://elsewhere.example.com/jobs/j1/x.png")
	assert.ErrorIs(t, err, ErrForeignURL)
	_, err = store.Read(ctx, "https://cdn.example.com/../etc/passwd")
	assert.Error(t, err)
}
