package model

import "time"

// Appointment is a seed event: a single start/end pair plus an optional
// recurrence rule anchored to Start. Appointments come from the local config
// or from subscribed ICS feeds.
type Appointment struct {
	SourceID string // config source ID ("local" for configured appointments)
	UID      string // iCalendar UID, also used as the Google sync key

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End in the appointment's own timezone.
	Start time.Time
	End   time.Time

	// Rule is the normalized recurrence rule without the RRULE: prefix.
	// Empty means the appointment does not repeat.
	Rule string

	// ExDates are cancelled instance starts (EXDATE) of a recurring seed.
	ExDates []time.Time

	// RecurrenceID is set on an override: it names the original start of
	// the instance of the series with the same UID that this one replaces.
	RecurrenceID *time.Time
}

// Recurring reports whether the appointment carries a recurrence rule.
func (a Appointment) Recurring() bool {
	return a.Rule != ""
}

// IsOverride reports whether the appointment replaces a single instance of
// a recurring series.
func (a Appointment) IsOverride() bool {
	return a.RecurrenceID != nil
}

// Occurrence represents a single concrete instance of an appointment
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// appointment, derived from the absolute start instant.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Rule is the seed's recurrence rule, empty for single appointments.
	Rule string

	// SeedStart is the series seed start in the seed's own timezone. Rule
	// descriptions are anchored to it, not to the display-zone Start.
	SeedStart time.Time

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// RuleAnchor is the start rule descriptions are computed from: the seed
// start when known, otherwise the occurrence start.
func (o Occurrence) RuleAnchor() time.Time {
	if o.SeedStart.IsZero() {
		return o.Start
	}
	return o.SeedStart
}
