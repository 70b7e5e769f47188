package ics

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"

	appLog "clinicsched/internal/log"
	"clinicsched/internal/model"
	"clinicsched/internal/recurrence"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart, RangeEnd).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int

	// MaxIterations is passed through to recurrence.Expand.
	MaxIterations int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// FallbackEvents records UIDs whose rule is outside the supported
	// subset and was expanded by rrule-go instead.
	FallbackEvents []string
}

// ExpandAppointments expands seed appointments into concrete occurrences
// within the configured window. It handles:
//
//   - Single non-recurring appointments
//   - Supported rules through recurrence.Expand
//   - Any other RRULE (BYSETPOS, ordinal BYDAY, ...) through rrule-go
//   - EXDATE removals and RECURRENCE-ID overrides of recurring seeds
//
// Occurrences are converted into cfg.DisplayLocation and sorted by start.
func ExpandAppointments(appts []model.Appointment, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0)
	overrides := collectOverrides(appts)

	for _, a := range appts {
		if a.IsOverride() && overrides.hasSeries(a) {
			// Applied while expanding its series.
			continue
		}

		var (
			spans    []span
			fallback bool
		)
		switch {
		case !a.Recurring():
			if overlaps(a.Start, a.End, cfg.RangeStart, cfg.RangeEnd) {
				spans = []span{{start: a.Start, end: a.End}}
			}
		case recurrence.Supported(a.Rule):
			spans = expandSupported(a, cfg)
		default:
			fallback = true
			spans = expandFallback(a, cfg)
		}

		if fallback {
			result.FallbackEvents = append(result.FallbackEvents, a.UID)
		}

		insts := make([]instance, 0, len(spans))
		for _, s := range spans {
			insts = append(insts, instance{appt: a, start: s.start, end: s.end, key: instanceKey(s.start)})
		}
		if a.Recurring() {
			insts = applyExceptions(a, insts, overrides.of(a), cfg)
		}

		if len(insts) > cfg.MaxOccurrencesPerEvent {
			insts = insts[:cfg.MaxOccurrencesPerEvent]
			result.TruncatedEvents = append(result.TruncatedEvents, a.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", a.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}

		for _, in := range insts {
			all = append(all, makeOccurrence(a, in, cfg.DisplayLocation))
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start.Equal(all[j].Start) {
			return all[i].UID < all[j].UID
		}
		return all[i].Start.Before(all[j].Start)
	})

	result.Occurrences = all
	return result, nil
}

type span struct {
	start, end time.Time
}

// instance is one expanded span together with the appointment that supplies
// its fields: the seed itself, or an override replacing that instance.
type instance struct {
	appt       model.Appointment
	start, end time.Time
	key        string
}

type seriesKey struct {
	sourceID, uid string
}

// overrideIndex holds RECURRENCE-ID overrides per series, keyed by the
// instance key of the start they replace.
type overrideIndex struct {
	byInstance map[seriesKey]map[string]model.Appointment
	series     map[seriesKey]bool
}

func collectOverrides(appts []model.Appointment) overrideIndex {
	idx := overrideIndex{
		byInstance: make(map[seriesKey]map[string]model.Appointment),
		series:     make(map[seriesKey]bool),
	}
	for _, a := range appts {
		k := seriesKey{a.SourceID, a.UID}
		switch {
		case a.IsOverride():
			if idx.byInstance[k] == nil {
				idx.byInstance[k] = make(map[string]model.Appointment)
			}
			idx.byInstance[k][instanceKey(*a.RecurrenceID)] = a
		case a.Recurring():
			idx.series[k] = true
		}
	}
	return idx
}

// hasSeries reports whether a recurring seed exists for the override's UID.
// Overrides without one are expanded as single appointments.
func (idx overrideIndex) hasSeries(a model.Appointment) bool {
	return idx.series[seriesKey{a.SourceID, a.UID}]
}

func (idx overrideIndex) of(a model.Appointment) map[string]model.Appointment {
	return idx.byInstance[seriesKey{a.SourceID, a.UID}]
}

// applyExceptions removes EXDATE instances and swaps overridden instances
// for their replacement. Overrides moved into the window from an instance
// outside it are added; those moved out of it are dropped. Instance keys
// stay those of the original starts.
func applyExceptions(seed model.Appointment, insts []instance, overrides map[string]model.Appointment, cfg ExpandConfig) []instance {
	if len(seed.ExDates) == 0 && len(overrides) == 0 {
		return insts
	}

	excluded := make(map[string]bool, len(seed.ExDates))
	for _, ex := range seed.ExDates {
		excluded[instanceKey(ex)] = true
	}

	out := make([]instance, 0, len(insts))
	used := make(map[string]bool, len(overrides))
	for _, in := range insts {
		if excluded[in.key] {
			continue
		}
		if ov, ok := overrides[in.key]; ok {
			used[in.key] = true
			if overlaps(ov.Start, ov.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, instance{appt: ov, start: ov.Start, end: ov.End, key: in.key})
			}
			continue
		}
		out = append(out, in)
	}

	for key, ov := range overrides {
		if used[key] || excluded[key] || !overlaps(ov.Start, ov.End, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, instance{appt: ov, start: ov.Start, end: ov.End, key: key})
	}
	if len(overrides) > 0 {
		sort.SliceStable(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	}
	return out
}

func expandSupported(a model.Appointment, cfg ExpandConfig) []span {
	occs := recurrence.Expand(recurrence.ExpandRequest{
		Rule:          a.Rule,
		SeedStart:     a.Start,
		SeedEnd:       a.End,
		WindowStart:   cfg.RangeStart,
		WindowEnd:     cfg.RangeEnd,
		MaxIterations: cfg.MaxIterations,
	})
	out := make([]span, 0, len(occs))
	for _, o := range occs {
		out = append(out, span{start: o.Start, end: o.End})
	}
	return out
}

func expandFallback(a model.Appointment, cfg ExpandConfig) []span {
	out := make([]span, 0)

	r, err := rrule.StrToRRule(a.Rule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", a.UID, "rrule", a.Rule)
		return out
	}
	appLog.Warn("expand: rule outside supported subset, using rrule-go", "uid", a.UID, "rrule", a.Rule)

	// Ensure Dtstart is set to the appointment's DTSTART.
	r.DTStart(a.Start)

	// Widen the lower bound by the duration so occurrences already in
	// progress at RangeStart are kept.
	dur := a.End.Sub(a.Start)
	loc := a.Start.Location()
	from := cfg.RangeStart.Add(-dur).In(loc)
	to := cfg.RangeEnd.In(loc)

	for _, start := range r.Between(from, to, true) {
		end := start.Add(dur)
		if a.AllDay {
			// All-day: treat as [date 00:00, next day 00:00) in the seed timezone.
			date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
			start, end = date, date.AddDate(0, 0, 1)
		}
		if overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, span{start: start, end: end})
		}
	}
	return out
}

// makeOccurrence converts an expanded instance of seed into a
// model.Occurrence normalized into displayLoc. Text fields come from the
// instance (an override may change them); Rule and SeedStart from the seed.
func makeOccurrence(seed model.Appointment, in instance, displayLoc *time.Location) model.Occurrence {
	a := in.appt
	return model.Occurrence{
		SourceID:    a.SourceID,
		UID:         a.UID,
		InstanceKey: in.key,
		Summary:     a.Summary,
		Description: a.Description,
		Location:    a.Location,
		AllDay:      a.AllDay,
		Rule:        seed.Rule,
		SeedStart:   seed.Start,
		Start:       in.start.In(displayLoc),
		End:         in.end.In(displayLoc),
	}
}

// instanceKey matches recurrence.Occurrence.Key so both expansion paths
// produce the same identity for the same instant.
func instanceKey(start time.Time) string {
	return strconv.FormatInt(start.UnixMilli(), 10)
}

// overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
