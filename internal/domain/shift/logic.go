package shift

import "time"

const secondsPerDay = 24 * 60 * 60

// DayNumber returns the number of civil days between 1970-01-01 and t's
// calendar date. The clock time and zone offset of t are ignored.
func DayNumber(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

func FromDayNumber(n int64) time.Time {
	return time.Unix(n*secondsPerDay, 0).UTC()
}

// Normalize drops the clock time, keeping the calendar date at UTC midnight.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWorkingDay reports whether date is a scheduled working day under p.
// A nil pattern, or a cycle pattern without a reference date, counts every day
// as working.
func IsWorkingDay(date time.Time, p *Pattern) bool {
	if p == nil {
		return true
	}

	switch p.Kind {
	case KindRegular:
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	case KindRotation:
		pos, ok := cyclePosition(date, p)
		if !ok {
			return true
		}
		return pos < p.WorkDays
	case KindCustom:
		pos, ok := cyclePosition(date, p)
		if !ok {
			return true
		}
		return p.Custom[pos] == 'W'
	default:
		return true
	}
}

func cyclePosition(date time.Time, p *Pattern) (int, bool) {
	if p.ReferenceDate == nil {
		return 0, false
	}
	length := int64(p.CycleLength())
	if length <= 0 {
		return 0, false
	}
	offset := DayNumber(date) - DayNumber(*p.ReferenceDate)
	return int(((offset % length) + length) % length), true
}

// SplitIntoWorkingRanges partitions the inclusive span [start, end] into
// maximal runs of consecutive working days, each with an exclusive End.
func SplitIntoWorkingRanges(start, end time.Time, p *Pattern) ([]DateRange, error) {
	first, last := DayNumber(start), DayNumber(end)
	if first > last {
		return nil, ErrInvalidDateRange
	}
	if p == nil {
		return []DateRange{{Start: FromDayNumber(first), End: FromDayNumber(last + 1)}}, nil
	}

	var ranges []DateRange
	open := false
	var rangeStart int64
	for day := first; day <= last; day++ {
		if IsWorkingDay(FromDayNumber(day), p) {
			if !open {
				rangeStart = day
				open = true
			}
			continue
		}
		if open {
			ranges = append(ranges, DateRange{Start: FromDayNumber(rangeStart), End: FromDayNumber(day)})
			open = false
		}
	}
	if open {
		ranges = append(ranges, DateRange{Start: FromDayNumber(rangeStart), End: FromDayNumber(last + 1)})
	}
	return ranges, nil
}

// CountWorkingDays counts working days in the inclusive span [start, end].
func CountWorkingDays(start, end time.Time, p *Pattern) (int, error) {
	first, last := DayNumber(start), DayNumber(end)
	if first > last {
		return 0, ErrInvalidDateRange
	}
	count := 0
	for day := first; day <= last; day++ {
		if IsWorkingDay(FromDayNumber(day), p) {
			count++
		}
	}
	return count, nil
}
