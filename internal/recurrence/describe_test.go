package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDescribeOption(t *testing.T) {
	// Friday
	seed := time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		option Option
		en     string
		pt     string
	}{
		{OptionNone, "does not repeat", "não se repete"},
		{OptionDaily, "every day", "todos os dias"},
		{OptionWeekdays, "every weekday (Monday–Friday)", "todos os dias úteis (segunda a sexta)"},
		{OptionWeekly, "weekly: every Friday", "semanal: toda sexta-feira"},
		{OptionMonthly, "monthly: day 8", "mensal: dia 8"},
		{OptionYearly, "yearly: 8 March", "anual: 8 de março"},
	}

	for _, tt := range tests {
		t.Run(tt.option.String(), func(t *testing.T) {
			assert.Equal(t, tt.en, DescribeOption(tt.option, seed))
			assert.Equal(t, tt.pt, Portuguese.DescribeOption(tt.option, seed))
		})
	}
}

func TestDescribeOptionZeroSeedUsesNow(t *testing.T) {
	got := DescribeOption(OptionMonthly, time.Time{})
	assert.Contains(t, got, "monthly: day ")
}

func TestDescribeRule(t *testing.T) {
	seed := time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "does not repeat", DescribeRule("", seed))
	assert.Equal(t, "does not repeat", DescribeRule("   ", seed))
	assert.Equal(t, "does not repeat", DescribeRule("INTERVAL=2", seed))
	assert.Equal(t, "every day", DescribeRule("FREQ=DAILY", seed))
	assert.Equal(t, "every weekday (Monday–Friday)", DescribeRule("FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", seed))
	assert.Equal(t, "custom recurrence", DescribeRule("FREQ=WEEKLY;BYDAY=TU,TH", seed))
	assert.Equal(t, "custom recurrence", DescribeRule("FREQ=HOURLY", seed))
	assert.Equal(t, "recorrência personalizada", Portuguese.DescribeRule("FREQ=WEEKLY", seed))
}

func TestLookupLocale(t *testing.T) {
	assert.Equal(t, "pt-BR", LookupLocale("pt-BR").Tag)
	assert.Equal(t, "pt-BR", LookupLocale("pt_br").Tag)
	assert.Equal(t, "pt-BR", LookupLocale("PT").Tag)
	assert.Equal(t, "en", LookupLocale("").Tag)
	assert.Equal(t, "en", LookupLocale("de-DE").Tag)
}

func TestExternalRecurrence(t *testing.T) {
	assert.Nil(t, ExternalRecurrence(""))
	assert.Nil(t, ExternalRecurrence("  "))
	assert.Nil(t, ExternalRecurrence("RRULE:"))
	assert.Equal(t, []string{"RRULE:FREQ=DAILY"}, ExternalRecurrence("FREQ=DAILY"))
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;BYDAY=MO"}, ExternalRecurrence("rrule:FREQ=WEEKLY;BYDAY=MO"))
}
