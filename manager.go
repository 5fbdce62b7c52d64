package arrivals

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/transitboard/arrivals/fetch"
	"github.com/transitboard/arrivals/parse"
	"github.com/transitboard/arrivals/storage"
)

// Manager ties the fetch and storage collaborators to the core. It
// downloads static datasets, persists them keyed by content hash, and
// feeds realtime bytes into a FeedCache.
type Manager struct {
	Static   fetch.Options
	Realtime fetch.Options
	Fetcher  fetch.Fetcher

	storage storage.Storage
	logger  *slog.Logger
}

func NewManager(s storage.Storage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		Static:   fetch.StaticOptions(),
		Realtime: fetch.RealtimeOptions(),
		Fetcher:  fetch.NewMemoryFetcher(),

		storage: s,
		logger:  logger,
	}
}

// Bundles the read-only core built from one static dataset, plus a
// feed cache for it. Safe for concurrent use.
type System struct {
	Store    *Store
	Calendar *ServiceCalendar
	Cache    *FeedCache
	Merger   *Merger
	Queries  *Queries
}

func NewSystem(store *Store) *System {
	calendar := NewServiceCalendar(store)
	cache := NewFeedCache()
	merger := NewMerger(store, calendar, cache)
	return &System{
		Store:    store,
		Calendar: calendar,
		Cache:    cache,
		Merger:   merger,
		Queries:  NewQueries(store, merger),
	}
}

// Downloads a static dataset and builds a System from it. Datasets
// are stored keyed by content hash; a zip already in storage is not
// parsed again.
func (m *Manager) LoadStatic(ctx context.Context, url string, headers map[string]string) (*System, error) {
	buf, err := m.Fetcher.Get(ctx, url, headers, m.Static)
	if err != nil {
		return nil, &FetchError{URL: url, Cause: err}
	}

	return m.LoadStaticBytes(buf, url)
}

// Builds a System from raw zip bytes, persisting the dataset if it
// isn't already in storage.
func (m *Manager) LoadStaticBytes(buf []byte, url string) (*System, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(buf))

	existing, err := m.storage.ListDatasets(storage.ListFilter{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}

	var info *storage.DatasetInfo
	if len(existing) > 0 {
		info = existing[0]
		m.logger.Info("static dataset already in storage", "hash", hash, "url", url)
	} else {
		writer, err := m.storage.GetWriter(hash)
		if err != nil {
			return nil, fmt.Errorf("getting writer: %w", err)
		}

		info, err = parse.ParseDataset(writer, buf)
		if err != nil {
			writer.Close()
			return nil, &IntegrityError{Message: "parsing dataset", Cause: err}
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("closing writer: %w", err)
		}

		info.Hash = hash
		info.URL = url
		info.RetrievedAt = time.Now().UTC()
		if err := m.storage.WriteDatasetInfo(info); err != nil {
			return nil, fmt.Errorf("writing dataset info: %w", err)
		}
		m.logger.Info("static dataset parsed and stored",
			"hash", hash,
			"url", url,
			"timezone", info.Timezone,
		)
	}

	reader, err := m.storage.GetReader(hash)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	store, err := NewStore(reader, info)
	if err != nil {
		return nil, err
	}
	if dropped := store.DroppedStopTimes(); dropped > 0 {
		m.logger.Warn("dropped unresolvable stop_times rows", "count", dropped)
	}

	return NewSystem(store), nil
}

// Fetches the realtime feed and refreshes the cache. Bounded by the
// realtime timeout. On failure the cache keeps its previous snapshot.
func (m *Manager) RefreshRealtime(ctx context.Context, cache *FeedCache, url string, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, m.Realtime.Timeout)
	defer cancel()

	buf, err := m.Fetcher.Get(ctx, url, headers, m.Realtime)
	if err != nil {
		return &FetchError{URL: url, Cause: err}
	}

	if err := cache.Refresh(ctx, [][]byte{buf}); err != nil {
		return err
	}

	m.logger.Debug("realtime feed refreshed", "url", url, "timestamp", cache.Timestamp())
	return nil
}
