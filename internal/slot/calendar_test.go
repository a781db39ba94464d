package slot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func monday() time.Time {
	return time.Date(2025, 3, 10, 15, 30, 0, 0, time.Local)
}

func TestWeekdayLabelCyclesFiveNames(t *testing.T) {
	w := DefaultWeekdays
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) // Monday

	want := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Monday", "Tuesday"}
	for i, label := range want {
		assert.Equal(t, label, w.Label(base.AddDate(0, 0, i)), "day offset %d", i)
	}

	got, err := w.LabelFor("2025-03-15")
	require.NoError(t, err)
	assert.Equal(t, "Monday", got, "saturday takes the first label")

	_, err = w.LabelFor("2025-02-30")
	assert.Error(t, err)
}

func TestDaySlots(t *testing.T) {
	cal := NewCalendar(NewMemoryStore(DefaultWeekdays), DefaultCalendarSettings(), zap.NewNop())

	slots, err := cal.DaySlots(monday())
	require.NoError(t, err)
	require.Len(t, slots, 30)

	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "09:20", slots[1].Time)
	assert.Equal(t, "18:40", slots[29].Time)
	for _, s := range slots {
		assert.Equal(t, "2025-03-10", s.Date)
		assert.Equal(t, "Monday", s.Weekday)
		assert.False(t, s.Occupied)
	}
}

func TestDaySlotsStopAtMidnight(t *testing.T) {
	settings := DefaultCalendarSettings()
	settings.StartTime = "23:00"
	cal := NewCalendar(NewMemoryStore(DefaultWeekdays), settings, zap.NewNop())

	slots, err := cal.DaySlots(monday())
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "23:40", slots[2].Time)
}

func TestEnsureWindowGeneratesInclusiveHorizon(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultWeekdays)
	cal := NewCalendar(store, DefaultCalendarSettings(), zap.NewNop())

	res, err := cal.EnsureWindow(ctx, monday())
	require.NoError(t, err)

	assert.Len(t, res.GeneratedDates, 15)
	assert.Equal(t, "2025-03-10", res.GeneratedDates[0])
	assert.Equal(t, "2025-03-24", res.GeneratedDates[14])
	assert.Equal(t, 15*30, res.GeneratedSlots)
	assert.Equal(t, 15*30, store.Len())
}

func TestEnsureWindowIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultWeekdays)
	cal := NewCalendar(store, DefaultCalendarSettings(), zap.NewNop())

	_, err := cal.EnsureWindow(ctx, monday())
	require.NoError(t, err)
	before := store.Len()

	res, err := cal.EnsureWindow(ctx, monday())
	require.NoError(t, err)
	assert.Empty(t, res.GeneratedDates)
	assert.Zero(t, res.Expired)
	assert.Equal(t, before, store.Len())
}

func TestEnsureWindowLeavesPopulatedDateAlone(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultWeekdays)
	cal := NewCalendar(store, DefaultCalendarSettings(), zap.NewNop())

	require.NoError(t, store.Book(ctx, Booking{
		Date: "2025-03-11", Time: "10:00", Name: "Ana", Surname: "Lopez", PatientID: "12345678",
	}))

	res, err := cal.EnsureWindow(ctx, monday())
	require.NoError(t, err)
	assert.NotContains(t, res.GeneratedDates, "2025-03-11")

	n, err := store.CountByDate(ctx, "2025-03-11")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestEnsureWindowExpiresPastDates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultWeekdays)
	cal := NewCalendar(store, DefaultCalendarSettings(), zap.NewNop())

	_, err := cal.EnsureWindow(ctx, monday())
	require.NoError(t, err)

	next := monday().AddDate(0, 0, 2)
	res, err := cal.EnsureWindow(ctx, next)
	require.NoError(t, err)

	assert.EqualValues(t, 60, res.Expired)
	assert.Equal(t, []string{"2025-03-25", "2025-03-26"}, res.GeneratedDates)

	for _, date := range []string{"2025-03-10", "2025-03-11"} {
		n, err := store.CountByDate(ctx, date)
		require.NoError(t, err)
		assert.Zero(t, n, "slots on %s must be gone", date)
	}
	n, err := store.CountByDate(ctx, "2025-03-12")
	require.NoError(t, err)
	assert.EqualValues(t, 30, n, "today is kept")
}

func TestEnsureWindowKeysAreUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultWeekdays)
	cal := NewCalendar(store, DefaultCalendarSettings(), zap.NewNop())

	_, err := cal.EnsureWindow(ctx, monday())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i <= 14; i++ {
		date := time.Date(2025, 3, 10+i, 0, 0, 0, 0, time.UTC).Format(DateLayout)
		weekday, err := DefaultWeekdays.LabelFor(date)
		require.NoError(t, err)

		free, err := store.ListAvailable(ctx, weekday, date)
		require.NoError(t, err)
		require.Len(t, free, 30)
		for _, s := range free {
			key := s.Date + " " + s.Time
			assert.False(t, seen[key], "duplicate slot %s", key)
			seen[key] = true
		}
	}
}
