package app

import (
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
)

// ParseDate returns local midnight of value (YYYY-MM-DD) in tz, or of today
// when value is empty
func ParseDate(value string, tz *time.Location, now time.Time) (time.Time, error) {
	if value == "" {
		y, m, d := now.In(tz).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, tz), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, tz)
	if err != nil {
		return time.Time{}, errors.Newf("date must be YYYY-MM-DD, got %q", value).
			Component("app").
			Category(errors.CategoryValidation).
			Build()
	}
	return day, nil
}
