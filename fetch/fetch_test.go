package fetch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitboard/arrivals/fetch"
)

func TestHTTPGet(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		fmt.Fprint(w, "feed bytes")
	}))
	defer srv.Close()

	body, err := fetch.HTTPGet(
		context.Background(),
		srv.URL,
		map[string]string{"X-Api-Key": "secret"},
		fetch.Options{Timeout: time.Second},
	)
	require.NoError(t, err)
	assert.Equal(t, "feed bytes", string(body))
	assert.Equal(t, "secret", gotHeader)
}

func TestHTTPGetNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := fetch.HTTPGet(context.Background(), srv.URL, nil, fetch.Options{})
	assert.Error(t, err)
}

func TestHTTPGetMaxSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0123456789")
	}))
	defer srv.Close()

	body, err := fetch.HTTPGet(context.Background(), srv.URL, nil, fetch.Options{MaxSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "0123", string(body))
}

func TestMemoryFetcherCaching(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprintf(w, "response %d", requests)
	}))
	defer srv.Close()

	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	f := fetch.NewMemoryFetcher()
	f.TimeNow = func() time.Time { return now }

	options := fetch.Options{Cache: true, CacheTTL: time.Minute}

	body, err := f.Get(context.Background(), srv.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, "response 1", string(body))

	// Within TTL: served from cache
	body, err = f.Get(context.Background(), srv.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, "response 1", string(body))
	assert.Equal(t, 1, requests)

	// Past TTL: fetched again
	now = now.Add(2 * time.Minute)
	body, err = f.Get(context.Background(), srv.URL, nil, options)
	require.NoError(t, err)
	assert.Equal(t, "response 2", string(body))
	assert.Equal(t, 2, requests)
}

func TestMemoryFetcherNoCache(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := fetch.NewMemoryFetcher()

	_, err := f.Get(context.Background(), srv.URL, nil, fetch.Options{})
	require.NoError(t, err)
	_, err = f.Get(context.Background(), srv.URL, nil, fetch.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestFeedOptionDefaults(t *testing.T) {
	static := fetch.StaticOptions()
	assert.True(t, static.Cache)
	assert.Equal(t, 800<<20, static.MaxSize)
	assert.Equal(t, 12*time.Hour, static.CacheTTL)

	realtime := fetch.RealtimeOptions()
	assert.False(t, realtime.Cache)
	assert.Equal(t, 1<<20, realtime.MaxSize)
	assert.Equal(t, 30*time.Second, realtime.Timeout)
}
