package recurrence

import (
	"strconv"
	"time"
)

const (
	// DefaultMaxIterations bounds the outer loop of a walk when the caller
	// does not set ExpandRequest.MaxIterations.
	DefaultMaxIterations = 20000
	// MinMaxIterations is the floor applied to a caller supplied bound.
	MinMaxIterations = 1000
)

// ExpandRequest describes one expansion: a seed occurrence the rule is
// anchored to and the query window to materialize.
type ExpandRequest struct {
	Rule string

	SeedStart time.Time
	SeedEnd   time.Time

	WindowStart time.Time
	WindowEnd   time.Time

	// MaxIterations caps the number of outer steps (days, weeks, months or
	// years). Zero means DefaultMaxIterations; smaller values are raised to
	// MinMaxIterations.
	MaxIterations int
}

// Occurrence is one generated instance. Key is derived from the absolute
// start instant and is stable across calls.
type Occurrence struct {
	Key   string
	Start time.Time
	End   time.Time
}

// Expand returns every occurrence of req.Rule, anchored at req.SeedStart,
// whose [Start, End) range intersects [req.WindowStart, req.WindowEnd).
// Occurrences keep the seed's wall clock time of day and duration and are
// returned in chronological order.
//
// Invalid input never fails: an unparseable rule, an empty or inverted seed
// and an inverted window all yield an empty result.
func Expand(req ExpandRequest) []Occurrence {
	out := make([]Occurrence, 0)

	rule, ok := ParseRule(req.Rule)
	if !ok {
		return out
	}
	if req.SeedStart.IsZero() || !req.SeedEnd.After(req.SeedStart) {
		return out
	}
	if !req.WindowEnd.After(req.WindowStart) {
		return out
	}

	w := newWalker(rule, req)
	switch rule.Freq {
	case FreqDaily:
		w.walkDaily()
	case FreqWeekly:
		w.walkWeekly()
	case FreqMonthly:
		w.walkMonthly()
	case FreqYearly:
		w.walkYearly()
	}
	return w.out
}

// walker carries the state shared by every frequency: the admission
// counters and the collected output.
type walker struct {
	rule     Rule
	seed     time.Time
	loc      *time.Location
	duration time.Duration

	windowStart time.Time
	windowEnd   time.Time

	until    time.Time
	hasUntil bool
	count    int
	hasCount bool
	emitted  int

	maxIter int
	out     []Occurrence
}

func newWalker(rule Rule, req ExpandRequest) *walker {
	w := &walker{
		rule:        rule,
		seed:        req.SeedStart,
		loc:         req.SeedStart.Location(),
		duration:    req.SeedEnd.Sub(req.SeedStart),
		windowStart: req.WindowStart,
		windowEnd:   req.WindowEnd,
		maxIter:     req.MaxIterations,
		out:         make([]Occurrence, 0),
	}
	w.until, w.hasUntil = rule.Until.Get()
	w.count, w.hasCount = rule.Count.Get()

	switch {
	case w.maxIter == 0:
		w.maxIter = DefaultMaxIterations
	case w.maxIter < MinMaxIterations:
		w.maxIter = MinMaxIterations
	}
	if w.rule.Interval < 1 {
		w.rule.Interval = 1
	}
	return w
}

// bounded reports whether COUNT or UNTIL constrain the walk. Fast-forward is
// only allowed on unbounded walks since COUNT must see every candidate.
func (w *walker) bounded() bool {
	return w.hasCount || w.hasUntil
}

// target is the earliest start that can still intersect the window.
func (w *walker) target() time.Time {
	return w.windowStart.Add(-w.duration).In(w.loc)
}

// at builds a candidate on the given wall clock date at the seed's time of day.
func (w *walker) at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day,
		w.seed.Hour(), w.seed.Minute(), w.seed.Second(), w.seed.Nanosecond(), w.loc)
}

// pastWindow reports whether a period starting at the given date lies
// entirely at or after the window end.
func (w *walker) pastWindow(year int, month time.Month, day int) bool {
	return !time.Date(year, month, day, 0, 0, 0, 0, w.loc).Before(w.windowEnd)
}

// admit applies the admission rule to one candidate and reports whether the
// walk must stop.
func (w *walker) admit(start time.Time) bool {
	if start.Before(w.seed) {
		return false
	}
	if w.hasUntil && start.After(w.until) {
		return true
	}
	if w.hasCount && w.emitted >= w.count {
		return true
	}
	if !start.Before(w.windowEnd) {
		return true
	}
	w.emitted++

	end := start.Add(w.duration)
	if end.After(w.windowStart) {
		w.out = append(w.out, Occurrence{
			Key:   strconv.FormatInt(start.UnixMilli(), 10),
			Start: start,
			End:   end,
		})
	}
	return false
}

func (w *walker) walkDaily() {
	interval := w.rule.Interval
	step := 0
	if !w.bounded() {
		step = fastForwardSteps(dayIndex(w.seed), dayIndex(w.target()), interval)
	}

	y, m, d := w.seed.Date()
	for i := 0; i < w.maxIter; i++ {
		if w.admit(w.at(y, m, d+step*interval)) {
			return
		}
		step++
	}
}

func (w *walker) walkWeekly() {
	days := w.rule.ByDay
	if len(days) == 0 {
		return
	}
	interval := w.rule.Interval
	step := 0
	if !w.bounded() {
		step = fastForwardSteps(weekIndex(w.seed), weekIndex(w.target()), interval)
	}

	y, m, d := w.seed.Date()
	d -= mondayIndex(w.seed.Weekday())
	for i := 0; i < w.maxIter; i++ {
		monday := d + step*7*interval
		if w.pastWindow(y, m, monday) {
			return
		}
		for _, wd := range days {
			if w.admit(w.at(y, m, monday+mondayIndex(wd))) {
				return
			}
		}
		step++
	}
}

func (w *walker) walkMonthly() {
	days := w.rule.ByMonthDay
	if len(days) == 0 {
		days = []int{w.seed.Day()}
	}
	interval := w.rule.Interval
	base := monthIndex(w.seed)
	step := 0
	if !w.bounded() {
		step = fastForwardSteps(base, monthIndex(w.target()), interval)
	}

	for i := 0; i < w.maxIter; i++ {
		idx := base + step*interval
		year, month := idx/12, time.Month(idx%12+1)
		if w.pastWindow(year, month, 1) {
			return
		}
		for _, day := range days {
			start := w.at(year, month, day)
			if start.Month() != month {
				continue
			}
			if w.admit(start) {
				return
			}
		}
		step++
	}
}

func (w *walker) walkYearly() {
	months := w.rule.ByMonth
	if len(months) == 0 {
		months = []int{int(w.seed.Month())}
	}
	days := w.rule.ByMonthDay
	if len(days) == 0 {
		days = []int{w.seed.Day()}
	}
	interval := w.rule.Interval
	base := yearIndex(w.seed)
	step := 0
	if !w.bounded() {
		step = fastForwardSteps(base, yearIndex(w.target()), interval)
	}

	for i := 0; i < w.maxIter; i++ {
		year := base + step*interval
		if w.pastWindow(year, time.January, 1) {
			return
		}
		for _, mon := range months {
			month := time.Month(mon)
			for _, day := range days {
				start := w.at(year, month, day)
				if start.Month() != month {
					continue
				}
				if w.admit(start) {
					return
				}
			}
		}
		step++
	}
}
