package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "clinicsched/internal/log"
	"clinicsched/internal/model"
)

// ParseICS parses a single ICS payload into seed appointments.
//
//   - It relies on the underlying library's VTIMEZONE/TZID handling to
//     construct proper time.Time values (with Location set).
//   - It detects all-day events by inspecting the DTSTART value format.
//   - It keeps the RRULE as-is; expansion is done in expand.go.
//   - VEVENTs carrying RECURRENCE-ID are kept as overrides and EXDATE values
//     are collected; both are applied during expansion.
func ParseICS(src Source, body []byte) ([]model.Appointment, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	appts := make([]model.Appointment, 0)
	overrides := 0

	for _, comp := range cal.Events() {
		a, perr := parseVEvent(src, comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		if a.IsOverride() {
			overrides++
		}
		appts = append(appts, a)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(appts), "override_count", overrides)
	return appts, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (model.Appointment, error) {
	var out model.Appointment
	out.SourceID = src.ID

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	var err error
	if out.AllDay {
		out.Start, err = ve.GetAllDayStartAt()
	} else {
		out.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return out, err
	}

	var end time.Time
	if out.AllDay {
		end, err = ve.GetAllDayEndAt()
	} else {
		end, err = ve.GetEndAt()
	}
	if err != nil || !end.After(out.Start) {
		// No usable DTEND: one day for all-day events, one hour otherwise.
		if out.AllDay {
			end = out.Start.AddDate(0, 0, 1)
		} else {
			end = out.Start.Add(time.Hour)
		}
	}
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.Rule = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(p.Value)), "RRULE:")
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		ts, err := propertyTimes(p, out.Start.Location())
		if err != nil {
			return out, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		if len(ts) == 0 {
			return out, errors.New("empty RECURRENCE-ID")
		}
		rid := ts[0]
		out.RecurrenceID = &rid
		// An override describes one instance; it never repeats on its own.
		out.Rule = ""
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		ts, err := propertyTimes(p, out.Start.Location())
		if err != nil {
			appLog.Warn("ics EXDATE ignored", "id", src.ID, "uid", out.UID, "value", p.Value, "error", err.Error())
			continue
		}
		out.ExDates = append(out.ExDates, ts...)
	}

	return out, nil
}

// propertyTimes reads the comma-separated DATE or DATE-TIME values of a
// property such as EXDATE or RECURRENCE-ID. UTC values end in Z; other
// values are read in the property's TZID, or in fallback without one.
func propertyTimes(p *ical.IANAProperty, fallback *time.Location) ([]time.Time, error) {
	loc := fallback
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 && tz[0] != "" {
		l, err := time.LoadLocation(tz[0])
		if err != nil {
			return nil, fmt.Errorf("TZID %q: %w", tz[0], err)
		}
		loc = l
	}

	var out []time.Time
	for _, v := range strings.Split(p.Value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		t, err := parseICSTime(v, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
