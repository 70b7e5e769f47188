package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRule(t *testing.T) {
	// Wednesday
	seed := time.Date(2024, 7, 17, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		option Option
		want   string
		ok     bool
	}{
		{OptionNone, "", false},
		{OptionDaily, "FREQ=DAILY", true},
		{OptionWeekdays, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", true},
		{OptionWeekly, "FREQ=WEEKLY;BYDAY=WE", true},
		{OptionMonthly, "FREQ=MONTHLY;BYMONTHDAY=17", true},
		{OptionYearly, "FREQ=YEARLY;BYMONTH=7;BYMONTHDAY=17", true},
		{Option(42), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.option.String(), func(t *testing.T) {
			got, ok := BuildRule(tt.option, seed)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRuleZeroSeed(t *testing.T) {
	for _, o := range Options {
		got, ok := BuildRule(o, time.Time{})
		assert.False(t, ok)
		assert.Empty(t, got)
	}
}

func TestResolveOption(t *testing.T) {
	tests := []struct {
		rule string
		want Option
	}{
		{"", OptionNone},
		{"INTERVAL=2", OptionNone},
		{"FREQ=DAILY;INTERVAL=3", OptionDaily},
		{"FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", OptionWeekdays},
		{"rrule:freq=weekly;byday=fr,th,we,tu,mo", OptionWeekdays},
		{"FREQ=WEEKLY;BYDAY=TH", OptionWeekly},
		{"FREQ=WEEKLY;BYDAY=TU,TH", OptionNone},
		{"FREQ=WEEKLY", OptionNone},
		{"FREQ=MONTHLY;BYMONTHDAY=99", OptionMonthly},
		{"FREQ=YEARLY", OptionYearly},
		{"FREQ=HOURLY", OptionNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveOption(tt.rule), tt.rule)
	}
}

func TestResolveDistinguishesUnrecognized(t *testing.T) {
	o, ok := resolve("")
	assert.Equal(t, OptionNone, o)
	assert.True(t, ok)

	o, ok = resolve("FREQ=WEEKLY;BYDAY=TU,TH")
	assert.Equal(t, OptionNone, o)
	assert.False(t, ok)
}

func TestOptionRoundTrip(t *testing.T) {
	seeds := []time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600)),
		time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 8, 7, 15, 0, 0, time.UTC), // Sunday
	}

	for _, seed := range seeds {
		for _, o := range []Option{OptionDaily, OptionWeekdays, OptionWeekly, OptionMonthly, OptionYearly} {
			rule, ok := BuildRule(o, seed)
			require.True(t, ok)
			assert.Equal(t, o, ResolveOption(rule), "option %s seed %s", o, seed)
		}
	}
}

func TestParseOption(t *testing.T) {
	for _, o := range Options {
		got, err := ParseOption(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}

	got, err := ParseOption(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, OptionWeekly, got)

	got, err = ParseOption("")
	require.NoError(t, err)
	assert.Equal(t, OptionNone, got)

	_, err = ParseOption("fortnightly")
	assert.Error(t, err)
}

func TestOptionText(t *testing.T) {
	b, err := OptionMonthly.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "monthly", string(b))

	var o Option
	require.NoError(t, o.UnmarshalText([]byte("weekdays")))
	assert.Equal(t, OptionWeekdays, o)
	assert.Error(t, o.UnmarshalText([]byte("hourly")))
}
