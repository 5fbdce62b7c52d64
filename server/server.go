package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/transitboard/arrivals"
	"github.com/transitboard/arrivals/model"
)

// Server exposes the query facade as a JSON API and keeps the
// realtime snapshot fresh in the background.
type Server struct {
	sys     *arrivals.System
	manager *arrivals.Manager
	logger  *slog.Logger
	metrics *Metrics

	realtimeURL     string
	refreshInterval time.Duration

	// Overridable in tests.
	now func() time.Time
}

func New(sys *arrivals.System, manager *arrivals.Manager, logger *slog.Logger, realtimeURL string, refreshInterval time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sys:             sys,
		manager:         manager,
		logger:          logger,
		metrics:         NewMetrics(),
		realtimeURL:     realtimeURL,
		refreshInterval: refreshInterval,
		now:             time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.HandlerFunc("GET", "/api/v1/arrivals", s.instrument("arrivals", s.arrivalsHandler))
	router.HandlerFunc("GET", "/api/v1/stops", s.instrument("stops", s.stopsHandler))
	router.HandlerFunc("GET", "/api/v1/stops/:id", s.instrument("stop_info", s.stopInfoHandler))
	router.HandlerFunc("GET", "/api/v1/cancelled", s.instrument("cancelled", s.cancelledHandler))
	router.HandlerFunc("GET", "/api/v1/stats", s.instrument("stats", s.statsHandler))
	router.HandlerFunc("GET", "/api/v1/busiest", s.instrument("busiest", s.busiestHandler))
	router.HandlerFunc("GET", "/api/v1/peak", s.instrument("peak", s.peakHandler))
	router.HandlerFunc("GET", "/healthz", s.healthHandler)
	router.Handler("GET", "/metrics", s.metrics.Handler())

	return router
}

// Serves until ctx is cancelled. When a realtime URL is configured, a
// background loop refreshes the feed cache on the configured
// interval; refresh failures are logged and counted but never stop
// the server.
func (s *Server) Run(ctx context.Context, addr string) error {
	if s.realtimeURL != "" && s.refreshInterval > 0 {
		go s.refreshLoop(ctx)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", "addr", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		s.metrics.RefreshTotal.Inc()
		err := s.manager.RefreshRealtime(ctx, s.sys.Cache, s.realtimeURL, nil)
		if err != nil {
			s.metrics.RefreshErrors.Inc()
			s.logger.Error("realtime refresh failed", "error", err)
		} else {
			s.metrics.FeedTimestamp.Set(float64(s.sys.Cache.Timestamp()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		s.metrics.Requests.WithLabelValues(name, strconv.Itoa(sw.status)).Inc()
		s.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type arrivalJSON struct {
	TripID       string     `json:"trip_id"`
	RouteID      string     `json:"route_id"`
	StopID       string     `json:"stop_id"`
	Headsign     string     `json:"headsign,omitempty"`
	Scheduled    *time.Time `json:"scheduled_arrival"`
	Realtime     *time.Time `json:"real_time_arrival"`
	DelaySeconds *int64     `json:"delay_seconds"`
	Cancelled    bool       `json:"is_cancelled"`
	Added        bool       `json:"is_added"`
}

type stopArrivalsJSON struct {
	Arrivals []arrivalJSON `json:"arrivals"`
}

func toArrivalJSON(a *model.UnifiedArrival) arrivalJSON {
	out := arrivalJSON{
		TripID:    a.TripID,
		RouteID:   a.RouteID,
		StopID:    a.StopID,
		Headsign:  a.Headsign,
		Cancelled: a.Cancelled,
		Added:     a.Added,
	}
	if !a.Scheduled.IsZero() {
		t := a.Scheduled
		out.Scheduled = &t
	}
	if a.HasRealtime() {
		t := a.Realtime
		out.Realtime = &t
		// Added trips have no schedule to measure a delay
		// against, so theirs stays null.
		if !a.Added {
			secs := int64(a.Delay.Seconds())
			out.DelaySeconds = &secs
		}
	}
	return out
}

// GET /api/v1/arrivals?stop=S&route=R&date=2026-08-26
//
// Arrivals grouped by stop ID, each group holding its ordered arrival
// list. Without a date parameter the current date in the dataset's
// timezone is used.
func (s *Server) arrivalsHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}

	filter := arrivals.Filter{
		StopID:  r.URL.Query().Get("stop"),
		RouteID: r.URL.Query().Get("route"),
	}

	grouped := map[string]*stopArrivalsJSON{}
	for _, a := range s.sys.Merger.Arrivals(date, filter) {
		group, found := grouped[a.StopID]
		if !found {
			group = &stopArrivalsJSON{Arrivals: []arrivalJSON{}}
			grouped[a.StopID] = group
		}
		group.Arrivals = append(group.Arrivals, toArrivalJSON(a))
	}

	s.sendJSON(w, grouped)
}

// GET /api/v1/stops?q=union
func (s *Server) stopsHandler(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.sys.Queries.SearchStops(r.URL.Query().Get("q")))
}

// GET /api/v1/stops/:id
func (s *Server) stopInfoHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	info, ok := s.sys.Queries.StopInfo(params.ByName("id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "stop not found")
		return
	}
	s.sendJSON(w, info)
}

// GET /api/v1/cancelled?date=2026-08-26
func (s *Server) cancelledHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, s.sys.Queries.CancelledTrips(date))
}

// GET /api/v1/stats?route=R&date=2026-08-26
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, s.sys.Queries.DelayStats(date, r.URL.Query().Get("route")))
}

// GET /api/v1/busiest?n=10&date=2026-08-26
func (s *Server) busiestHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}

	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.sendError(w, http.StatusBadRequest, "invalid n")
			return
		}
		n = parsed
	}

	s.sendJSON(w, s.sys.Queries.BusiestStops(date, n))
}

// GET /api/v1/peak?date=2026-08-26
func (s *Server) peakHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, s.sys.Queries.PeakHours(date))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status        string `json:"status"`
		DatasetHash   string `json:"dataset_hash"`
		FeedRefreshed string `json:"feed_refreshed,omitempty"`
	}{
		Status:      "ok",
		DatasetHash: s.sys.Store.Info.Hash,
	}
	if refreshed := s.sys.Cache.Refreshed(); !refreshed.IsZero() {
		health.FeedRefreshed = refreshed.Format(time.RFC3339)
	}
	s.sendJSON(w, health)
}

func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return s.now().In(s.sys.Store.Location()), true
	}

	date, err := time.ParseInLocation("2006-01-02", v, s.sys.Store.Location())
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
