package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Options struct {
	MaxSize  int
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration
}

// Defaults for a static dataset zip: large, changes rarely, worth
// caching.
func StaticOptions() Options {
	return Options{
		MaxSize:  800 << 20, // 800 MB
		Timeout:  60 * time.Second,
		Cache:    true,
		CacheTTL: 12 * time.Hour,
	}
}

// Defaults for a realtime protobuf: small, stale within a minute,
// never cached.
func RealtimeOptions() Options {
	return Options{
		MaxSize: 1 << 20, // 1 MB
		Timeout: 30 * time.Second,
	}
}

// A thing capable of retrieving feed bytes over HTTP, optionally with
// caching. Static zips and realtime protobufs both come through here.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string, options Options) ([]byte, error)
}

// Gets a URL. Doesn't cache. Provided as convenience for implementing
// custom Fetchers.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options Options) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return body, nil
}
