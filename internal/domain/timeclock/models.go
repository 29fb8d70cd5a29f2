package timeclock

import "time"

type Entry struct {
	ID       string     `json:"id"`
	UserID   string     `json:"userId"`
	ClockIn  time.Time  `json:"clockIn"`
	ClockOut *time.Time `json:"clockOut,omitempty"`
	Note     string     `json:"note,omitempty"`
}

// DaySummary aggregates the worked duration of one calendar day.
type DaySummary struct {
	Date    string  `json:"date"`
	Minutes int     `json:"minutes"`
	Entries int     `json:"entries"`
	Hours   float64 `json:"hours"`
}
