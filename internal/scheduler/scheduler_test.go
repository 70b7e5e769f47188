package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"clinicsched/internal/config"
	"clinicsched/internal/gcal"
	"clinicsched/internal/ics"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//feed//EN
BEGIN:VEVENT
UID:feed-1
DTSTAMP:20240101T000000Z
DTSTART:20240507T140000Z
DTEND:20240507T150000Z
SUMMARY:Dental
END:VEVENT
END:VCALENDAR
`

type countingAPI struct {
	inserted []string
}

func (c *countingAPI) FindByUID(context.Context, string, string) (*calendar.Event, error) {
	return nil, nil
}

func (c *countingAPI) Insert(_ context.Context, _ string, ev *calendar.Event) (*calendar.Event, error) {
	c.inserted = append(c.inserted, ev.Summary)
	return ev, nil
}

func (c *countingAPI) Update(_ context.Context, _, _ string, ev *calendar.Event) (*calendar.Event, error) {
	return ev, nil
}

func testConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	cfg.HorizonDays = 7
	cfg.Appointments = []config.AppointmentConfig{{
		UID:      "physio",
		Summary:  "Physio",
		Start:    "2024-05-06 08:30",
		Duration: "45m",
		Repeat:   "weekdays",
	}}
	if feedURL != "" {
		cfg.ICS = []config.ICSConfig{{ID: "dental", URL: feedURL}}
	}
	return cfg
}

func TestPipelineRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.ReplaceAll(feed, "\n", "\r\n")))
	}))
	defer srv.Close()

	api := &countingAPI{}
	cfg := testConfig(t, srv.URL)
	p := NewPipeline(cfg, nil, gcal.NewSyncer(api, "", "UTC"))
	p.now = func() time.Time { return time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC) }

	var notified atomic.Int32
	p.OnRefresh(func(*Snapshot) { notified.Add(1) })

	assert.Nil(t, p.Latest())
	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)

	// Five weekday sessions in [Mon 6 May, Mon 13 May) plus the feed event.
	assert.Len(t, snap.Appointments, 2)
	assert.Len(t, snap.Result.Occurrences, 6)
	assert.True(t, snap.RangeStart.Equal(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	assert.True(t, snap.RangeEnd.Equal(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Dental", snap.Result.Occurrences[2].Summary)

	require.NotNil(t, snap.Push)
	assert.Equal(t, 1, snap.Push.Created)
	assert.Equal(t, []string{"Physio"}, api.inserted)

	assert.Same(t, snap, p.Latest())
	assert.Equal(t, int32(1), notified.Load())
}

func TestPipelineInvalidAppointment(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Appointments[0].Duration = ""

	_, err := NewPipeline(cfg, nil, nil).Refresh(context.Background())
	assert.Error(t, err)
}

func TestPipelineSkipsBrokenFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	p := NewPipeline(testConfig(t, srv.URL), nil, nil)
	appts, err := p.Appointments(context.Background())
	require.NoError(t, err)
	assert.Len(t, appts, 1)

	res, err := p.Expand(context.Background(),
		time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 1)
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (c *countingJob) Refresh(context.Context) (*Snapshot, error) {
	c.runs.Add(1)
	return nil, c.err
}

func TestSchedulerInvalidSpec(t *testing.T) {
	_, err := New(context.Background(), "every now and then", &countingJob{})
	assert.Error(t, err)
}

func TestSchedulerRunsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := &countingJob{err: errors.New("feed down")}
	s, err := New(ctx, "@every 1s", job)
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	assert.False(t, s.Next().IsZero())
}

func TestPipelineLocation(t *testing.T) {
	p := NewPipeline(testConfig(t, "https://example.com/feed.ics"), ics.NewFetcher(t.TempDir()), nil)
	assert.Equal(t, time.UTC, p.Location())
}
