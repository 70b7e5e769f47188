package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, "primary", cfg.Google.CalendarID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
timezone: UTC
locale: pt-BR
week_start: Sunday
max_iterations: -5
appointments:
  - summary: Physio
    start: "2024-05-06 08:30"
    duration: 45m
    repeat: weekly
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, 0, cfg.MaxIterations)
	assert.Equal(t, defaultRefreshCron, cfg.RefreshCron)
	assert.Equal(t, "pt-BR", cfg.Describer().Tag)
	require.Len(t, cfg.Appointments, 1)
	assert.Equal(t, "weekly", cfg.Appointments[0].Repeat)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.HorizonDays = 21
	cfg.ICS = []ICSConfig{{ID: "main", URL: "https://example.com/a.ics"}}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 21, loaded.HorizonDays)
	assert.Equal(t, cfg.ICS, loaded.ICS)

	assert.Error(t, Save("", cfg))
	assert.Error(t, Save(path, nil))
}

func TestAppointmentFromRepeatOption(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	a, err := AppointmentConfig{
		Summary:  "Physio",
		Start:    "2024-05-06 08:30",
		Duration: "45m",
		Repeat:   "weekly",
	}.Appointment(loc)

	require.NoError(t, err)
	assert.Equal(t, LocalSourceID, a.SourceID)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", a.Rule)
	assert.Equal(t, 45*time.Minute, a.End.Sub(a.Start))
	assert.NotEmpty(t, a.UID)

	again, err := AppointmentConfig{
		Summary:  "Physio",
		Start:    "2024-05-06 08:30",
		Duration: "45m",
		Repeat:   "weekly",
	}.Appointment(loc)
	require.NoError(t, err)
	assert.Equal(t, a.UID, again.UID)
}

func TestAppointmentFromRule(t *testing.T) {
	a, err := AppointmentConfig{
		UID:    "fixed",
		Start:  "2024-05-07T14:00:00Z",
		End:    "2024-05-07T15:00:00Z",
		Repeat: "daily",
		Rule:   "rrule:freq=weekly;byday=th,tu",
	}.Appointment(time.UTC)

	require.NoError(t, err)
	assert.Equal(t, "fixed", a.UID)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=TU,TH", a.Rule)
	assert.True(t, a.Recurring())
}

func TestAppointmentErrors(t *testing.T) {
	tests := []struct {
		name string
		ac   AppointmentConfig
	}{
		{"bad start", AppointmentConfig{Start: "soon", Duration: "1h"}},
		{"no end", AppointmentConfig{Start: "2024-05-06 08:30"}},
		{"bad duration", AppointmentConfig{Start: "2024-05-06 08:30", Duration: "forever"}},
		{"inverted", AppointmentConfig{Start: "2024-05-06 08:30", End: "2024-05-06 08:00"}},
		{"unsupported rule", AppointmentConfig{Start: "2024-05-06 08:30", Duration: "1h", Rule: "FREQ=MONTHLY;BYSETPOS=-1"}},
		{"unknown option", AppointmentConfig{Start: "2024-05-06 08:30", Duration: "1h", Repeat: "hourly"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ac.Appointment(time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestLocalAppointmentsReportsIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Appointments = []AppointmentConfig{
		{Summary: "ok", Start: "2024-05-06 08:30", Duration: "1h"},
		{Summary: "broken", Start: "2024-05-06 08:30"},
	}

	_, err := cfg.LocalAppointments(time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appointments[1]")

	cfg.Appointments = cfg.Appointments[:1]
	appts, err := cfg.LocalAppointments(time.UTC)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.False(t, appts[0].Recurring())
}
