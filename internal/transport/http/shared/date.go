package shared

import (
	"errors"
	"time"
)

var errInvalidDate = errors.New("invalid date")

// ParseDate accepts YYYY-MM-DD.
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errInvalidDate
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return parsed, nil
}
