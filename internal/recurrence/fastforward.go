package recurrence

import "time"

// fastForwardSteps returns how many interval steps a cursor at unit index
// from can skip toward target. It always stops one step short, so the walk
// resumes strictly before the first step that can reach target.
func fastForwardSteps(from, target, interval int) int {
	if interval < 1 || target <= from {
		return 0
	}
	steps := (target-from)/interval - 1
	if steps < 0 {
		return 0
	}
	return steps
}

// dayIndex numbers calendar days of t's wall clock date.
func dayIndex(t time.Time) int {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(floorDiv(d.Unix(), 86400))
}

// weekIndex numbers Monday-anchored weeks.
func weekIndex(t time.Time) int {
	return int(floorDiv(int64(dayIndex(t)-mondayIndex(t.Weekday())), 7))
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func yearIndex(t time.Time) int {
	return t.Year()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
