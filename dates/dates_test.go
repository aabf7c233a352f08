package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	day, err := Parse("2020-01-02")
	assert.NoError(t, err)
	assert.Equal(t, New(2020, time.January, 2), day)
	assert.Equal(t, "2020-01-02", Format(day))
}

func TestIsWeekend(t *testing.T) {
	t.Parallel()

	assert.False(t, IsWeekend(New(2020, time.January, 3))) // Friday
	assert.True(t, IsWeekend(New(2020, time.January, 4)))  // Saturday
	assert.True(t, IsWeekend(New(2020, time.January, 5)))  // Sunday
	assert.False(t, IsWeekend(New(2020, time.January, 6))) // Monday
}

func TestDayTruncates(t *testing.T) {
	t.Parallel()

	ts := time.Date(2020, time.March, 15, 17, 30, 12, 0, time.UTC)
	assert.Equal(t, New(2020, time.March, 15), Day(ts))
}

func TestAddDays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, New(2020, time.February, 1), AddDays(New(2020, time.January, 31), 1))
	assert.Equal(t, New(2019, time.December, 31), AddDays(New(2020, time.January, 1), -1))
}
