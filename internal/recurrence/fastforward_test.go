package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFastForwardSteps(t *testing.T) {
	tests := []struct {
		name                   string
		from, target, interval int
		want                   int
	}{
		{"target behind", 100, 50, 1, 0},
		{"target equal", 100, 100, 3, 0},
		{"within one step", 100, 102, 3, 0},
		{"exact multiple keeps slack", 0, 30, 3, 9},
		{"partial step", 0, 31, 3, 9},
		{"daily", 0, 10, 1, 9},
		{"bad interval", 0, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fastForwardSteps(tt.from, tt.target, tt.interval)
			assert.Equal(t, tt.want, got)
			// Never lands on or past the target.
			if got > 0 {
				assert.Less(t, tt.from+got*tt.interval, tt.target)
			}
		})
	}
}

func TestUnitIndexes(t *testing.T) {
	assert.Equal(t, 0, dayIndex(time.Date(1970, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, dayIndex(time.Date(1969, 12, 31, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, dayIndex(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))-1,
		dayIndex(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)))

	// Monday through Sunday share a week; the next Monday does not.
	mon := weekIndex(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, mon, weekIndex(time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, mon+1, weekIndex(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, 2024*12+1, monthIndex(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2024, yearIndex(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(2), floorDiv(7, 3))
	assert.Equal(t, int64(-3), floorDiv(-7, 3))
	assert.Equal(t, int64(-2), floorDiv(-6, 3))
}
