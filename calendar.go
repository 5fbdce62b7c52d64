package arrivals

import (
	"sort"
	"sync"
	"time"

	"github.com/transitboard/arrivals/model"
)

// ServiceCalendar resolves which service IDs run on a given date. The
// resolution itself is a pure function of the loaded calendar tables;
// results are memoized per date since dashboards ask about the same
// day over and over.
type ServiceCalendar struct {
	calendars     []*model.Calendar
	exceptionsFor map[string][]*model.CalendarDate

	mu   sync.Mutex
	memo map[string][]string
}

func NewServiceCalendar(store *Store) *ServiceCalendar {
	exceptions := map[string][]*model.CalendarDate{}
	for _, cd := range store.calendarDates {
		exceptions[cd.Date] = append(exceptions[cd.Date], cd)
	}

	return &ServiceCalendar{
		calendars:     store.calendars,
		exceptionsFor: exceptions,
		memo:          map[string][]string{},
	}
}

// Returns the IDs of all services active on the date, sorted. The
// returned slice is shared between callers and must not be modified.
func (c *ServiceCalendar) ActiveOn(date time.Time) []string {
	dateStr := date.Format("20060102")

	c.mu.Lock()
	defer c.mu.Unlock()

	if services, ok := c.memo[dateStr]; ok {
		return services
	}

	services := resolveServices(c.calendars, c.exceptionsFor[dateStr], dateStr, date.Weekday())
	c.memo[dateStr] = services
	return services
}

// Two stages: the weekly pattern selects candidates, then dated
// exceptions overlay it. An exception can name a service with no
// calendar row at all; such a service runs only on its added dates.
func resolveServices(
	calendars []*model.Calendar,
	exceptions []*model.CalendarDate,
	dateStr string,
	weekday time.Weekday,
) []string {

	active := map[string]bool{}

	bit := int8(1 << weekday)
	for _, cal := range calendars {
		if cal.Weekday&bit == 0 {
			continue
		}
		// Dates are "YYYYMMDD", so lexical comparison works.
		if dateStr < cal.StartDate || dateStr > cal.EndDate {
			continue
		}
		active[cal.ServiceID] = true
	}

	for _, exc := range exceptions {
		switch exc.ExceptionType {
		case model.ServiceAdded:
			active[exc.ServiceID] = true
		case model.ServiceRemoved:
			delete(active, exc.ServiceID)
		}
	}

	services := make([]string, 0, len(active))
	for serviceID := range active {
		services = append(services, serviceID)
	}
	sort.Strings(services)

	return services
}
