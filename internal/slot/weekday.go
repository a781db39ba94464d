package slot

import (
	"fmt"
	"time"
)

// Weekdays is the list of business-day labels slots are tagged with.
type Weekdays []string

var DefaultWeekdays = Weekdays{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// Label maps d onto the list by its Monday-based day index, cycling when the
// list is shorter than a week. With five labels Saturday takes the first
// label and Sunday the second.
func (w Weekdays) Label(d time.Time) string {
	if len(w) == 0 {
		return ""
	}
	idx := (int(d.Weekday()) + 6) % 7
	return w[idx%len(w)]
}

// LabelFor labels a YYYY-MM-DD date string.
func (w Weekdays) LabelFor(date string) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	return w.Label(d), nil
}
