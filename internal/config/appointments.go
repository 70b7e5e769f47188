package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinicsched/internal/model"
	"clinicsched/internal/recurrence"
	"clinicsched/internal/timeparse"
)

// LocalSourceID tags appointments defined in the config file.
const LocalSourceID = "local"

var appointmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("clinicsched/appointment"))

// Location resolves Timezone; unknown names fall back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	loc, err := timeparse.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LocalAppointments converts every configured appointment. The first
// invalid entry aborts the conversion.
func (c *Config) LocalAppointments(loc *time.Location) ([]model.Appointment, error) {
	out := make([]model.Appointment, 0, len(c.Appointments))
	for i, ac := range c.Appointments {
		a, err := ac.Appointment(loc)
		if err != nil {
			return nil, fmt.Errorf("appointments[%d]: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Appointment builds the seed appointment described by ac, reading wall
// clock values in loc.
func (ac AppointmentConfig) Appointment(loc *time.Location) (model.Appointment, error) {
	start, err := timeparse.ParseInstant(ac.Start, loc)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("start: %w", err)
	}

	var end time.Time
	switch {
	case ac.End != "":
		end, err = timeparse.ParseInstant(ac.End, loc)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("end: %w", err)
		}
	case ac.Duration != "":
		d, err := time.ParseDuration(ac.Duration)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("duration: %w", err)
		}
		end = start.Add(d)
	default:
		return model.Appointment{}, fmt.Errorf("either end or duration is required")
	}
	if !end.After(start) {
		return model.Appointment{}, fmt.Errorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	rule, err := ac.rule(start)
	if err != nil {
		return model.Appointment{}, err
	}

	uid := ac.UID
	if uid == "" {
		// Stable across restarts so sync keys do not churn.
		uid = uuid.NewSHA1(appointmentNamespace, []byte(ac.Summary+"|"+start.UTC().Format(time.RFC3339))).String()
	}

	return model.Appointment{
		SourceID:    LocalSourceID,
		UID:         uid,
		Summary:     ac.Summary,
		Description: ac.Description,
		Location:    ac.Location,
		Start:       start,
		End:         end,
		Rule:        rule,
	}, nil
}

func (ac AppointmentConfig) rule(start time.Time) (string, error) {
	if strings.TrimSpace(ac.Rule) != "" {
		if !recurrence.Supported(ac.Rule) {
			return "", fmt.Errorf("unsupported recurrence rule %q", ac.Rule)
		}
		r, _ := recurrence.ParseRule(ac.Rule)
		return r.String(), nil
	}
	opt, err := recurrence.ParseOption(ac.Repeat)
	if err != nil {
		return "", err
	}
	rule, _ := recurrence.BuildRule(opt, start)
	return rule, nil
}
