package gcal

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"clinicsched/internal/model"
)

type fakeEvents struct {
	byUID     map[string]*calendar.Event
	inserted  []*calendar.Event
	updated   []string
	insertErr error
	nextID    int
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{byUID: map[string]*calendar.Event{}}
}

func (f *fakeEvents) FindByUID(_ context.Context, _ string, uid string) (*calendar.Event, error) {
	return f.byUID[uid], nil
}

func (f *fakeEvents) Insert(_ context.Context, _ string, ev *calendar.Event) (*calendar.Event, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.nextID++
	ev.Id = "ev" + strconv.Itoa(f.nextID)
	f.inserted = append(f.inserted, ev)
	f.byUID[ev.ExtendedProperties.Private[syncKeyProperty]] = ev
	return ev, nil
}

func (f *fakeEvents) Update(_ context.Context, _ string, eventID string, ev *calendar.Event) (*calendar.Event, error) {
	f.updated = append(f.updated, eventID)
	return ev, nil
}

func weekly() model.Appointment {
	return model.Appointment{
		UID:     "appt-1",
		Summary: "Physio",
		Start:   time.Date(2024, 5, 6, 8, 30, 0, 0, time.UTC),
		End:     time.Date(2024, 5, 6, 9, 15, 0, 0, time.UTC),
		Rule:    "FREQ=WEEKLY;BYDAY=MO",
	}
}

func TestToGoogleEventTimed(t *testing.T) {
	ev := ToGoogleEvent(weekly(), "America/Sao_Paulo")

	assert.Equal(t, "Physio", ev.Summary)
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;BYDAY=MO"}, ev.Recurrence)
	assert.Equal(t, "2024-05-06T08:30:00Z", ev.Start.DateTime)
	assert.Equal(t, "America/Sao_Paulo", ev.Start.TimeZone)
	assert.Equal(t, "appt-1", ev.ExtendedProperties.Private[syncKeyProperty])
}

func TestToGoogleEventAllDay(t *testing.T) {
	a := model.Appointment{
		UID:    "closed",
		AllDay: true,
		Start:  time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC),
	}
	ev := ToGoogleEvent(a, "UTC")

	assert.Equal(t, "2024-05-10", ev.Start.Date)
	assert.Equal(t, "2024-05-11", ev.End.Date)
	assert.Empty(t, ev.Start.DateTime)
	assert.Nil(t, ev.Recurrence)
}

func TestSyncerPushCreatesThenUpdates(t *testing.T) {
	api := newFakeEvents()
	s := NewSyncer(api, "", "UTC")

	res, err := s.Push(context.Background(), []model.Appointment{weekly()})
	require.NoError(t, err)
	assert.Equal(t, PushResult{Created: 1}, res)

	res, err = s.Push(context.Background(), []model.Appointment{weekly()})
	require.NoError(t, err)
	assert.Equal(t, PushResult{Updated: 1}, res)
	assert.Equal(t, []string{"ev1"}, api.updated)
}

func TestSyncerPushCollectsFailures(t *testing.T) {
	api := newFakeEvents()
	api.insertErr = errors.New("quota")
	s := NewSyncer(api, "clinic", "UTC")

	noUID := weekly()
	noUID.UID = ""

	res, err := s.Push(context.Background(), []model.Appointment{weekly(), noUID})
	require.Error(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Contains(t, err.Error(), "quota")
	assert.Contains(t, err.Error(), "no UID")
}

func TestSyncerPushStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewSyncer(newFakeEvents(), "", "UTC").Push(ctx, []model.Appointment{weekly()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PushResult{}, res)
}
