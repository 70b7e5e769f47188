package timeparse

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

var instantLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// ParseInstant parses an absolute timestamp. RFC3339 values keep their
// offset; the other accepted layouts are read as wall clock time in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseBound parses a window bound for the CLI: an absolute timestamp, or a
// natural language expression ("tomorrow", "next monday", "in 2 weeks")
// resolved against now.
func ParseBound(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := ParseInstant(s, loc); err == nil {
		return t, nil
	}
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("empty window bound")
	}
	t, err := naturaldate.Parse(s, now.In(loc), naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid window bound %q: %w", s, err)
	}
	return t.In(loc), nil
}

// StartOfDay truncates t to midnight of its wall clock date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
