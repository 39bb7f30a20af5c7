package voice

import "time"

// DayFormat is the layout used for daily bucket keys.
const DayFormat = "2006-01-02"

// StartOfDay returns UTC midnight of the day t falls on.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SplitByDay attributes the interval [joinedAt, leftAt) to every UTC calendar
// day it overlaps. Days that receive zero whole seconds are omitted.
func SplitByDay(joinedAt, leftAt time.Time) []DaySegment {
	joinedAt = joinedAt.UTC()
	leftAt = leftAt.UTC()
	if !leftAt.After(joinedAt) {
		return nil
	}

	var segments []DaySegment
	last := StartOfDay(leftAt)
	for day := StartOfDay(joinedAt); !day.After(last); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)

		start := joinedAt
		if day.After(start) {
			start = day
		}
		end := leftAt
		if next.Before(end) {
			end = next
		}

		seconds := int64(end.Sub(start) / time.Second)
		if seconds > 0 {
			segments = append(segments, DaySegment{Day: day, Seconds: seconds})
		}
	}
	return segments
}

func sumSegments(segments []DaySegment) int64 {
	var total int64
	for _, seg := range segments {
		total += seg.Seconds
	}
	return total
}
