package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"clinicsched/internal/model"
)

// ProductID identifies calendars serialized by this package.
const ProductID = "-//clinicsched//appointments//EN"

// ExportICS serializes seed appointments (not their expansions) into a
// VCALENDAR. Rules are written as RRULE so subscribers expand them on
// their side. Appointments without a UID get a random one.
func ExportICS(appts []model.Appointment, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)

	for _, a := range appts {
		uid := a.UID
		if uid == "" {
			uid = uuid.NewString()
		}

		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now.UTC())
		if a.AllDay {
			ev.SetAllDayStartAt(a.Start)
			ev.SetAllDayEndAt(a.End)
		} else {
			ev.SetStartAt(a.Start)
			ev.SetEndAt(a.End)
		}
		if a.Summary != "" {
			ev.SetSummary(a.Summary)
		}
		if a.Description != "" {
			ev.SetDescription(a.Description)
		}
		if a.Location != "" {
			ev.SetLocation(a.Location)
		}
		if a.Rule != "" {
			ev.AddRrule(a.Rule)
		}
		if a.RecurrenceID != nil {
			value, params := icsTimeValue(*a.RecurrenceID, a)
			ev.SetProperty(ical.ComponentPropertyRecurrenceId, value, params...)
		}
		for _, ex := range a.ExDates {
			value, params := icsTimeValue(ex, a)
			ev.AddExdate(value, params...)
		}
	}

	return cal.Serialize()
}

// icsTimeValue renders an instance start the way a's DTSTART is written:
// a DATE for all-day appointments, a UTC DATE-TIME otherwise.
func icsTimeValue(t time.Time, a model.Appointment) (string, []ical.PropertyParameter) {
	if a.AllDay {
		return t.In(a.Start.Location()).Format("20060102"), []ical.PropertyParameter{ical.WithValue(string(ical.ValueDataTypeDate))}
	}
	return t.UTC().Format("20060102T150405Z"), nil
}
