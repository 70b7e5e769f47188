package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Option is one of the simplified recurrence choices offered to end users.
// Each option maps to exactly one normalized rule string (or none).
type Option int

const (
	OptionNone Option = iota
	OptionDaily
	OptionWeekdays
	OptionWeekly
	OptionMonthly
	OptionYearly
)

var optionNames = map[Option]string{
	OptionNone:     "none",
	OptionDaily:    "daily",
	OptionWeekdays: "weekdays",
	OptionWeekly:   "weekly",
	OptionMonthly:  "monthly",
	OptionYearly:   "yearly",
}

// Options lists every option in display order.
var Options = []Option{OptionNone, OptionDaily, OptionWeekdays, OptionWeekly, OptionMonthly, OptionYearly}

const weekdaysByDay = "MO,TU,WE,TH,FR"

func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Option(%d)", int(o))
}

// ParseOption parses an option name as produced by String.
func ParseOption(s string) (Option, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return OptionNone, nil
	}
	for o, n := range optionNames {
		if n == name {
			return o, nil
		}
	}
	return OptionNone, fmt.Errorf("unknown recurrence option %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Option) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Option) UnmarshalText(b []byte) error {
	v, err := ParseOption(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// BuildRule returns the normalized rule string for option anchored at
// seedStart. It reports false for OptionNone, unknown options and a zero
// seedStart.
func BuildRule(option Option, seedStart time.Time) (string, bool) {
	if seedStart.IsZero() {
		return "", false
	}
	switch option {
	case OptionDaily:
		return "FREQ=DAILY", true
	case OptionWeekdays:
		return "FREQ=WEEKLY;BYDAY=" + weekdaysByDay, true
	case OptionWeekly:
		return "FREQ=WEEKLY;BYDAY=" + WeekdayToken(seedStart.Weekday()), true
	case OptionMonthly:
		return fmt.Sprintf("FREQ=MONTHLY;BYMONTHDAY=%d", seedStart.Day()), true
	case OptionYearly:
		return fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYMONTHDAY=%d", int(seedStart.Month()), seedStart.Day()), true
	}
	return "", false
}

// ResolveOption maps rule back to the option that produces it. Rules with no
// FREQ and rules outside the option vocabulary both resolve to OptionNone.
func ResolveOption(rule string) Option {
	o, _ := resolve(rule)
	return o
}

// resolve is ResolveOption plus a flag telling a recognized option (including
// "no recurrence") apart from a rule no option maps to.
func resolve(rule string) (Option, bool) {
	tokens := Tokens(rule)
	freq, ok := tokens["FREQ"]
	if !ok {
		return OptionNone, true
	}
	switch Freq(freq) {
	case FreqDaily:
		return OptionDaily, true
	case FreqMonthly:
		return OptionMonthly, true
	case FreqYearly:
		return OptionYearly, true
	case FreqWeekly:
		days := parseWeekdays(tokens["BYDAY"])
		if len(days) == 1 {
			return OptionWeekly, true
		}
		if isWorkWeek(days) {
			return OptionWeekdays, true
		}
	}
	return OptionNone, false
}

// isWorkWeek expects days in Monday-first order.
func isWorkWeek(days []time.Weekday) bool {
	if len(days) != 5 {
		return false
	}
	for i, wd := range days {
		if mondayIndex(wd) != i {
			return false
		}
	}
	return true
}
