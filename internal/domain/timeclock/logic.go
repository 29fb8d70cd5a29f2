package timeclock

import (
	"sort"
	"time"
)

// Summarize buckets closed entries into per-day totals. Open entries are
// skipped; an entry is attributed to the day it started on.
func Summarize(entries []Entry) []DaySummary {
	byDay := map[string]*DaySummary{}
	for _, entry := range entries {
		if entry.ClockOut == nil || entry.ClockOut.Before(entry.ClockIn) {
			continue
		}
		day := entry.ClockIn.UTC().Format("2006-01-02")
		summary, ok := byDay[day]
		if !ok {
			summary = &DaySummary{Date: day}
			byDay[day] = summary
		}
		summary.Minutes += int(entry.ClockOut.Sub(entry.ClockIn) / time.Minute)
		summary.Entries++
	}

	out := make([]DaySummary, 0, len(byDay))
	for _, summary := range byDay {
		summary.Hours = float64(summary.Minutes) / 60.0
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
