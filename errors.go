package arrivals

import "fmt"

// IntegrityError means the static dataset couldn't be loaded into a
// usable Store. It is fatal: no partial Store is returned alongside
// it.
type IntegrityError struct {
	Message string
	Cause   error
}

func (e *IntegrityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause)
	}
	return e.Message
}

func (e *IntegrityError) Unwrap() error {
	return e.Cause
}

// FetchError wraps failures while retrieving or parsing a realtime
// feed. Recoverable: the previous feed snapshot stays in place and
// queries keep working off the static schedule.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("fetching %s: %s", e.URL, e.Cause)
	}
	return fmt.Sprintf("fetching feed: %s", e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
