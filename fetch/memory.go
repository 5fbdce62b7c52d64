package fetch

import (
	"context"
	"sync"
	"time"
)

// Caches fetched feeds in memory. Useful when a static dataset URL
// gets consulted on every refresh cycle.
type MemoryFetcher struct {
	mutex sync.Mutex
	cache map[string]cacheEntry

	TimeNow func() time.Time
}

func NewMemoryFetcher() *MemoryFetcher {
	return &MemoryFetcher{
		cache:   make(map[string]cacheEntry),
		TimeNow: time.Now,
	}
}

type cacheEntry struct {
	data       []byte
	expiration time.Time
}

func (f *MemoryFetcher) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options Options,
) ([]byte, error) {
	if options.Cache {
		f.mutex.Lock()
		defer f.mutex.Unlock()

		if entry, ok := f.cache[url]; ok {
			if entry.expiration.After(f.TimeNow()) {
				return entry.data, nil
			}
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache {
		f.cache[url] = cacheEntry{
			data:       body,
			expiration: f.TimeNow().Add(options.CacheTTL),
		}
	}

	return body, nil
}
