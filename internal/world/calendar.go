// Package world provides the cyclic calendar, activities, and the site
// arena that agents congregate in.
package world

import "fmt"

// Calendar slices time into two nested cycles: days of hour-slots.
type Calendar struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// NewCalendar creates a calendar with the given dimensions.
func NewCalendar(days, hours int) (Calendar, error) {
	if days < 1 || hours < 1 {
		return Calendar{}, fmt.Errorf("calendar dimensions must be positive, got %dx%d", days, hours)
	}
	return Calendar{Days: days, Hours: hours}, nil
}

// Slots returns the number of (day, hour) cells in one full cycle.
func (c Calendar) Slots() int {
	return c.Days * c.Hours
}

// Contains returns true if (day, hour) lies inside the calendar grid.
func (c Calendar) Contains(day, hour int) bool {
	return day >= 0 && day < c.Days && hour >= 0 && hour < c.Hours
}

// Slot flattens (day, hour) into a single index in [0, Slots()).
func (c Calendar) Slot(day, hour int) int {
	return day*c.Hours + hour
}

// String returns a summary of the calendar.
func (c Calendar) String() string {
	return fmt.Sprintf("Calendar(days=%d, hours=%d)", c.Days, c.Hours)
}
