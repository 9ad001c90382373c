package analytics

import (
	"time"

	"github.com/kindfund/kindfund/internal/model"
)

const day = 24 * time.Hour

// Timing holds whole-day durations for a campaign.
type Timing struct {
	DaysActive    int
	DaysRemaining int
	DurationDays  int
}

// computeTiming derives day counts, all clamped at zero:
//   - active: start to min(now, end)
//   - remaining: now to end, zero without an end
//   - duration: start to end; without an end, start to now (or zero
//     before the start)
func computeTiming(start time.Time, end *time.Time, now time.Time) Timing {
	activeUntil := now
	if end != nil && end.Before(now) {
		activeUntil = *end
	}

	t := Timing{DaysActive: daysBetween(start, activeUntil)}

	if end != nil {
		t.DaysRemaining = daysBetween(now, *end)
		t.DurationDays = daysBetween(start, *end)
	} else {
		t.DurationDays = daysBetween(start, now)
	}
	return t
}

func daysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / day)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the Monday starting t's ISO week.
func startOfWeek(t time.Time) time.Time {
	d := startOfDay(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// fillBuckets returns n consecutive buckets from since, step apart, taking
// counts from rows and zero-filling gaps. Rows outside the window are dropped.
func fillBuckets(rows []model.TrendBucket, since time.Time, n int, step time.Duration) []model.TrendBucket {
	byStart := make(map[int64]model.TrendBucket, len(rows))
	for _, r := range rows {
		byStart[r.Start.UTC().Unix()] = r
	}

	out := make([]model.TrendBucket, n)
	for i := 0; i < n; i++ {
		start := since.Add(time.Duration(i) * step)
		b := model.TrendBucket{Start: start}
		if r, ok := byStart[start.Unix()]; ok {
			b.Count = r.Count
			b.Amount = r.Amount
		}
		out[i] = b
	}
	return out
}
