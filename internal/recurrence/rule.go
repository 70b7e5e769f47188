package recurrence

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Freq is the recurrence frequency of a rule.
type Freq string

const (
	FreqNone    Freq = ""
	FreqDaily   Freq = "DAILY"
	FreqWeekly  Freq = "WEEKLY"
	FreqMonthly Freq = "MONTHLY"
	FreqYearly  Freq = "YEARLY"
)

const rrulePrefix = "RRULE:"

const (
	untilDateLayout     = "20060102"
	untilDateTimeLayout = "20060102T150405Z"
)

// weekdayTokens maps BYDAY tokens to weekdays.
var weekdayTokens = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// supportedKeys lists every key the expander understands.
var supportedKeys = map[string]bool{
	"FREQ":       true,
	"INTERVAL":   true,
	"COUNT":      true,
	"UNTIL":      true,
	"BYDAY":      true,
	"BYMONTHDAY": true,
	"BYMONTH":    true,
}

// Rule is the typed form of a recurrence rule string.
type Rule struct {
	Freq       Freq
	Interval   int
	Count      mo.Option[int]
	Until      mo.Option[time.Time]
	ByDay      []time.Weekday // Monday-first order, deduplicated
	ByMonthDay []int          // ascending, deduplicated
	ByMonth    []int          // ascending, deduplicated
}

// Tokens splits a rule string into its upper-cased KEY=VALUE pairs.
// An optional RRULE: prefix is ignored, malformed segments are dropped
// and the last occurrence of a key wins.
func Tokens(rule string) map[string]string {
	out := make(map[string]string)
	s := strings.ToUpper(strings.TrimSpace(rule))
	s = strings.TrimPrefix(s, rrulePrefix)
	if s == "" {
		return out
	}
	for _, seg := range strings.Split(s, ";") {
		key, val, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

// ParseRule parses rule into a Rule. It reports false when the rule has no
// recognized FREQ; every other malformed token is ignored.
func ParseRule(rule string) (Rule, bool) {
	tokens := Tokens(rule)

	r := Rule{Freq: parseFreq(tokens["FREQ"]), Interval: 1}
	if r.Freq == FreqNone {
		return Rule{}, false
	}

	if n, ok := positiveInt(tokens["INTERVAL"]); ok {
		r.Interval = n
	}
	if n, ok := positiveInt(tokens["COUNT"]); ok {
		r.Count = mo.Some(n)
	}
	if v, ok := tokens["UNTIL"]; ok {
		if t, ok := ParseUntil(v); ok {
			r.Until = mo.Some(t)
		}
	}
	r.ByDay = parseWeekdays(tokens["BYDAY"])
	r.ByMonthDay = parseIntList(tokens["BYMONTHDAY"], 1, 31)
	r.ByMonth = parseIntList(tokens["BYMONTH"], 1, 12)

	return r, true
}

// ParseUntil parses an UNTIL value in either YYYYMMDD or YYYYMMDDTHHMMSSZ
// form. Both are UTC instants; a bare date is midnight UTC of that day.
func ParseUntil(value string) (time.Time, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	switch len(v) {
	case len(untilDateLayout):
		t, err := time.Parse(untilDateLayout, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case len(untilDateTimeLayout):
		t, err := time.Parse(untilDateTimeLayout, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Supported reports whether the expander can honor every part of rule: a
// recognized FREQ, no key outside FREQ, INTERVAL, COUNT, UNTIL, BYDAY,
// BYMONTHDAY and BYMONTH, and values that parse in full. ParseRule drops
// values it cannot use, so a rule with any such value is unsupported.
func Supported(rule string) bool {
	tokens := Tokens(rule)
	if parseFreq(tokens["FREQ"]) == FreqNone {
		return false
	}
	for key, val := range tokens {
		if !supportedKeys[key] || !validValue(key, val) {
			return false
		}
	}
	return true
}

func validValue(key, val string) bool {
	switch key {
	case "INTERVAL", "COUNT":
		_, ok := positiveInt(val)
		return ok
	case "UNTIL":
		_, ok := ParseUntil(val)
		return ok
	case "BYDAY":
		// Ordinal weekdays (e.g. 1MO, -1FR) are outside the subset.
		for _, tok := range strings.Split(val, ",") {
			if _, ok := weekdayTokens[strings.TrimSpace(tok)]; !ok {
				return false
			}
		}
		return true
	case "BYMONTHDAY":
		return intListInRange(val, 1, 31)
	case "BYMONTH":
		return intListInRange(val, 1, 12)
	}
	return true
}

// intListInRange reports whether every entry of a comma list is an integer
// in [lo, hi]. Negative month days (counted from the month end) fail.
func intListInRange(v string, lo, hi int) bool {
	for _, tok := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil || n < lo || n > hi {
			return false
		}
	}
	return true
}

// String renders r in normalized form. Only set fields are written, in the
// order FREQ, INTERVAL, COUNT, UNTIL, BYDAY, BYMONTHDAY, BYMONTH.
func (r Rule) String() string {
	if r.Freq == FreqNone {
		return ""
	}
	parts := []string{"FREQ=" + string(r.Freq)}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if n, ok := r.Count.Get(); ok {
		parts = append(parts, "COUNT="+strconv.Itoa(n))
	}
	if t, ok := r.Until.Get(); ok {
		parts = append(parts, "UNTIL="+t.UTC().Format(untilDateTimeLayout))
	}
	if len(r.ByDay) > 0 {
		codes := make([]string, len(r.ByDay))
		for i, wd := range r.ByDay {
			codes[i] = WeekdayToken(wd)
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if len(r.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(r.ByMonthDay))
	}
	if len(r.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+joinInts(r.ByMonth))
	}
	return strings.Join(parts, ";")
}

// WeekdayToken returns the two-letter BYDAY token for wd.
func WeekdayToken(wd time.Weekday) string {
	return weekdayCodes[wd]
}

func parseFreq(v string) Freq {
	switch Freq(v) {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return Freq(v)
	}
	return FreqNone
}

func positiveInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parseWeekdays returns the recognized BYDAY tokens in Monday-first order.
func parseWeekdays(v string) []time.Weekday {
	if v == "" {
		return nil
	}
	seen := make(map[time.Weekday]bool)
	for _, tok := range strings.Split(v, ",") {
		if wd, ok := weekdayTokens[strings.TrimSpace(tok)]; ok {
			seen[wd] = true
		}
	}
	out := make([]time.Weekday, 0, len(seen))
	for wd := range seen {
		out = append(out, wd)
	}
	sort.Slice(out, func(i, j int) bool {
		return mondayIndex(out[i]) < mondayIndex(out[j])
	})
	return out
}

func parseIntList(v string, lo, hi int) []int {
	if v == "" {
		return nil
	}
	seen := make(map[int]bool)
	for _, tok := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil || n < lo || n > hi {
			continue
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// mondayIndex maps Monday..Sunday to 0..6.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
