package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	appLog "clinicsched/internal/log"
	"clinicsched/internal/model"
	"clinicsched/internal/recurrence"
)

// syncKeyProperty is the private extended property holding the
// appointment UID, so repeated pushes update instead of duplicating.
const syncKeyProperty = "clinicschedUid"

// ToGoogleEvent converts a seed appointment into a Calendar event. The
// recurrence rule is passed through as an RRULE line; timezone names the
// zone Google uses to expand it.
func ToGoogleEvent(a model.Appointment, timezone string) *calendar.Event {
	ev := &calendar.Event{
		Summary:     a.Summary,
		Description: a.Description,
		Location:    a.Location,
		Recurrence:  recurrence.ExternalRecurrence(a.Rule),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{syncKeyProperty: a.UID},
		},
	}

	if a.AllDay {
		ev.Start = &calendar.EventDateTime{Date: a.Start.Format(time.DateOnly)}
		ev.End = &calendar.EventDateTime{Date: a.End.Format(time.DateOnly)}
		return ev
	}

	ev.Start = &calendar.EventDateTime{DateTime: a.Start.Format(time.RFC3339), TimeZone: timezone}
	ev.End = &calendar.EventDateTime{DateTime: a.End.Format(time.RFC3339), TimeZone: timezone}
	return ev
}

// PushResult summarizes one Syncer.Push run.
type PushResult struct {
	Created int
	Updated int
	Failed  int
}

// Syncer mirrors seed appointments into one Google calendar.
type Syncer struct {
	api        EventsAPI
	calendarID string
	timezone   string
}

func NewSyncer(api EventsAPI, calendarID, timezone string) *Syncer {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Syncer{api: api, calendarID: calendarID, timezone: timezone}
}

// Push inserts or updates every appointment. A failure on one appointment
// does not stop the others; all failures are joined into the returned error.
func (s *Syncer) Push(ctx context.Context, appts []model.Appointment) (PushResult, error) {
	var (
		res  PushResult
		errs []error
	)

	for _, a := range appts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if a.UID == "" {
			res.Failed++
			errs = append(errs, fmt.Errorf("appointment %q has no UID", a.Summary))
			continue
		}

		created, err := s.pushOne(ctx, a)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("push %s: %w", a.UID, err))
			appLog.Error("gcal push failed", err, "uid", a.UID, "calendar", s.calendarID)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	appLog.Info("gcal push completed", "calendar", s.calendarID, "created", res.Created, "updated", res.Updated, "failed", res.Failed)
	return res, errors.Join(errs...)
}

func (s *Syncer) pushOne(ctx context.Context, a model.Appointment) (bool, error) {
	ev := ToGoogleEvent(a, s.timezone)

	existing, err := s.api.FindByUID(ctx, s.calendarID, a.UID)
	if err != nil {
		return false, fmt.Errorf("lookup: %w", err)
	}
	if existing == nil {
		if _, err := s.api.Insert(ctx, s.calendarID, ev); err != nil {
			return false, fmt.Errorf("insert: %w", err)
		}
		appLog.Debug("gcal event created", "uid", a.UID)
		return true, nil
	}

	if _, err := s.api.Update(ctx, s.calendarID, existing.Id, ev); err != nil {
		return false, fmt.Errorf("update: %w", err)
	}
	appLog.Debug("gcal event updated", "uid", a.UID, "event_id", existing.Id)
	return false, nil
}
