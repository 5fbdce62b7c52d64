package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/transitboard/arrivals/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	sourceName := ":memory:"
	if len(cfg) > 0 && cfg[0].OnDisk {
		sourceName = filepath.Join(cfg[0].Directory, "arrivals.db")
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS dataset (
    hash TEXT,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    timezone TEXT NOT NULL,
    calendar_start TEXT NOT NULL,
    calendar_end TEXT NOT NULL,
    max_arrival TEXT NOT NULL,
    max_departure TEXT NOT NULL,
PRIMARY KEY (hash, url)
);

CREATE TABLE IF NOT EXISTS agency (
    dataset TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stops (
    dataset TEXT NOT NULL,
    id TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
PRIMARY KEY (dataset, id)
);

CREATE TABLE IF NOT EXISTS routes (
    dataset TEXT NOT NULL,
    id TEXT NOT NULL,
    agency_id TEXT NOT NULL,
    short_name TEXT NOT NULL,
    long_name TEXT NOT NULL,
    type INTEGER NOT NULL,
PRIMARY KEY (dataset, id)
);

CREATE TABLE IF NOT EXISTS trips (
    dataset TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT NOT NULL,
    direction_id INTEGER NOT NULL,
PRIMARY KEY (dataset, id)
);

CREATE TABLE IF NOT EXISTS stop_times (
    dataset TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival TEXT NOT NULL,
    departure TEXT NOT NULL,
    pickup_type INTEGER NOT NULL,
    drop_off_type INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS calendar (
    dataset TEXT NOT NULL,
    service_id TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    weekday INTEGER NOT NULL,
PRIMARY KEY (dataset, service_id)
);

CREATE TABLE IF NOT EXISTS calendar_dates (
    dataset TEXT NOT NULL,
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS stop_times_dataset_trip ON stop_times (dataset, trip_id);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) ListDatasets(filter ListFilter) ([]*DatasetInfo, error) {
	query := `
SELECT hash, url, retrieved_at, timezone, calendar_start, calendar_end, max_arrival, max_departure
FROM dataset`

	conditions := []string{}
	params := []interface{}{}
	if filter.URL != "" {
		conditions = append(conditions, "url = ?")
		params = append(params, filter.URL)
	}
	if filter.Hash != "" {
		conditions = append(conditions, "hash = ?")
		params = append(params, filter.Hash)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var infos []*DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		err := rows.Scan(
			&info.Hash,
			&info.URL,
			&info.RetrievedAt,
			&info.Timezone,
			&info.CalendarStart,
			&info.CalendarEnd,
			&info.MaxArrival,
			&info.MaxDeparture,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		infos = append(infos, &info)
	}

	return infos, rows.Err()
}

func (s *SQLiteStorage) WriteDatasetInfo(info *DatasetInfo) error {
	_, err := s.db.Exec(`
INSERT OR REPLACE INTO dataset
    (hash, url, retrieved_at, timezone, calendar_start, calendar_end, max_arrival, max_departure)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		info.Hash,
		info.URL,
		info.RetrievedAt,
		info.Timezone,
		info.CalendarStart,
		info.CalendarEnd,
		info.MaxArrival,
		info.MaxDeparture,
	)
	if err != nil {
		return fmt.Errorf("writing dataset info: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetWriter(hash string) (DatasetWriter, error) {
	// Drop any partial rows from an earlier failed load.
	for _, table := range []string{"agency", "stops", "routes", "trips", "stop_times", "calendar", "calendar_dates"} {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE dataset = ?", table), hash)
		if err != nil {
			return nil, fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return &SQLiteWriter{db: s.db, hash: hash}, nil
}

func (s *SQLiteStorage) GetReader(hash string) (DatasetReader, error) {
	return &SQLiteReader{db: s.db, hash: hash}, nil
}

type SQLiteWriter struct {
	db   *sql.DB
	hash string

	stopTimeTx   *sql.Tx
	stopTimeStmt *sql.Stmt
}

func (w *SQLiteWriter) WriteAgency(agency *model.Agency) error {
	_, err := w.db.Exec(
		"INSERT INTO agency (dataset, id, name, url, timezone) VALUES (?, ?, ?, ?, ?)",
		w.hash, agency.ID, agency.Name, agency.URL, agency.Timezone,
	)
	return err
}

func (w *SQLiteWriter) WriteStop(stop *model.Stop) error {
	_, err := w.db.Exec(
		"INSERT INTO stops (dataset, id, code, name, lat, lon) VALUES (?, ?, ?, ?, ?, ?)",
		w.hash, stop.ID, stop.Code, stop.Name, stop.Lat, stop.Lon,
	)
	return err
}

func (w *SQLiteWriter) WriteRoute(route *model.Route) error {
	_, err := w.db.Exec(
		"INSERT INTO routes (dataset, id, agency_id, short_name, long_name, type) VALUES (?, ?, ?, ?, ?, ?)",
		w.hash, route.ID, route.AgencyID, route.ShortName, route.LongName, route.Type,
	)
	return err
}

func (w *SQLiteWriter) WriteTrip(trip *model.Trip) error {
	_, err := w.db.Exec(
		"INSERT INTO trips (dataset, id, route_id, service_id, headsign, direction_id) VALUES (?, ?, ?, ?, ?, ?)",
		w.hash, trip.ID, trip.RouteID, trip.ServiceID, trip.Headsign, trip.DirectionID,
	)
	return err
}

func (w *SQLiteWriter) WriteCalendar(cal *model.Calendar) error {
	_, err := w.db.Exec(
		"INSERT INTO calendar (dataset, service_id, start_date, end_date, weekday) VALUES (?, ?, ?, ?, ?)",
		w.hash, cal.ServiceID, cal.StartDate, cal.EndDate, cal.Weekday,
	)
	return err
}

func (w *SQLiteWriter) WriteCalendarDate(cd *model.CalendarDate) error {
	_, err := w.db.Exec(
		"INSERT INTO calendar_dates (dataset, service_id, date, exception_type) VALUES (?, ?, ?, ?)",
		w.hash, cd.ServiceID, cd.Date, cd.ExceptionType,
	)
	return err
}

func (w *SQLiteWriter) BeginStopTimes() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO stop_times
    (dataset, trip_id, stop_id, stop_sequence, arrival, departure, pickup_type, drop_off_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}

	w.stopTimeTx = tx
	w.stopTimeStmt = stmt
	return nil
}

func (w *SQLiteWriter) WriteStopTime(st *model.StopTime) error {
	if w.stopTimeStmt == nil {
		return fmt.Errorf("WriteStopTime outside BeginStopTimes/EndStopTimes")
	}
	_, err := w.stopTimeStmt.Exec(
		w.hash, st.TripID, st.StopID, st.StopSequence, st.Arrival, st.Departure, st.PickupType, st.DropOffType,
	)
	return err
}

func (w *SQLiteWriter) EndStopTimes() error {
	if w.stopTimeTx == nil {
		return fmt.Errorf("EndStopTimes without BeginStopTimes")
	}
	err := w.stopTimeTx.Commit()
	w.stopTimeTx = nil
	w.stopTimeStmt = nil
	if err != nil {
		return fmt.Errorf("committing stop_times: %w", err)
	}
	return nil
}

func (w *SQLiteWriter) Close() error {
	if w.stopTimeTx != nil {
		w.stopTimeTx.Rollback()
		w.stopTimeTx = nil
		w.stopTimeStmt = nil
	}
	return nil
}

type SQLiteReader struct {
	db   *sql.DB
	hash string
}

func (r *SQLiteReader) Agencies() ([]*model.Agency, error) {
	rows, err := r.db.Query("SELECT id, name, url, timezone FROM agency WHERE dataset = ?", r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying agency: %w", err)
	}
	defer rows.Close()

	agencies := []*model.Agency{}
	for rows.Next() {
		var a model.Agency
		if err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone); err != nil {
			return nil, fmt.Errorf("scanning agency: %w", err)
		}
		agencies = append(agencies, &a)
	}
	return agencies, rows.Err()
}

func (r *SQLiteReader) Stops() ([]*model.Stop, error) {
	rows, err := r.db.Query("SELECT id, code, name, lat, lon FROM stops WHERE dataset = ?", r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		var s model.Stop
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Lat, &s.Lon); err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, &s)
	}
	return stops, rows.Err()
}

func (r *SQLiteReader) Routes() ([]*model.Route, error) {
	rows, err := r.db.Query("SELECT id, agency_id, short_name, long_name, type FROM routes WHERE dataset = ?", r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		var rt model.Route
		if err := rows.Scan(&rt.ID, &rt.AgencyID, &rt.ShortName, &rt.LongName, &rt.Type); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, &rt)
	}
	return routes, rows.Err()
}

func (r *SQLiteReader) Trips() ([]*model.Trip, error) {
	rows, err := r.db.Query("SELECT id, route_id, service_id, headsign, direction_id FROM trips WHERE dataset = ?", r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying trips: %w", err)
	}
	defer rows.Close()

	trips := []*model.Trip{}
	for rows.Next() {
		var t model.Trip
		if err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &t.Headsign, &t.DirectionID); err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, &t)
	}
	return trips, rows.Err()
}

func (r *SQLiteReader) StopTimes() ([]*model.StopTime, error) {
	rows, err := r.db.Query(`
SELECT trip_id, stop_id, stop_sequence, arrival, departure, pickup_type, drop_off_type
FROM stop_times WHERE dataset = ?`, r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying stop_times: %w", err)
	}
	defer rows.Close()

	stopTimes := []*model.StopTime{}
	for rows.Next() {
		var st model.StopTime
		err := rows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &st.Arrival, &st.Departure, &st.PickupType, &st.DropOffType)
		if err != nil {
			return nil, fmt.Errorf("scanning stop_time: %w", err)
		}
		stopTimes = append(stopTimes, &st)
	}
	return stopTimes, rows.Err()
}

func (r *SQLiteReader) Calendars() ([]*model.Calendar, error) {
	rows, err := r.db.Query("SELECT service_id, start_date, end_date, weekday FROM calendar WHERE dataset = ?", r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying calendar: %w", err)
	}
	defer rows.Close()

	cals := []*model.Calendar{}
	for rows.Next() {
		var c model.Calendar
		if err := rows.Scan(&c.ServiceID, &c.StartDate, &c.EndDate, &c.Weekday); err != nil {
			return nil, fmt.Errorf("scanning calendar: %w", err)
		}
		cals = append(cals, &c)
	}
	return cals, rows.Err()
}

func (r *SQLiteReader) CalendarDates() ([]*model.CalendarDate, error) {
	rows, err := r.db.Query("SELECT service_id, date, exception_type FROM calendar_dates WHERE dataset = ?", r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying calendar_dates: %w", err)
	}
	defer rows.Close()

	cds := []*model.CalendarDate{}
	for rows.Next() {
		var cd model.CalendarDate
		if err := rows.Scan(&cd.ServiceID, &cd.Date, &cd.ExceptionType); err != nil {
			return nil, fmt.Errorf("scanning calendar_date: %w", err)
		}
		cds = append(cds, &cd)
	}
	return cds, rows.Err()
}
