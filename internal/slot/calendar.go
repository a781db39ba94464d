package slot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type CalendarSettings struct {
	HorizonDays     int
	IntervalMinutes int
	SlotsPerDay     int
	StartTime       string // HH:MM
	Weekdays        Weekdays
}

func DefaultCalendarSettings() CalendarSettings {
	return CalendarSettings{
		HorizonDays:     14,
		IntervalMinutes: 20,
		SlotsPerDay:     30,
		StartTime:       "09:00",
		Weekdays:        DefaultWeekdays,
	}
}

// WindowResult describes what one EnsureWindow pass changed.
type WindowResult struct {
	Expired        int64
	GeneratedDates []string
	GeneratedSlots int
}

// Calendar keeps a rolling window of slots in the store.
type Calendar struct {
	store    Store
	settings CalendarSettings
	log      *zap.Logger
}

func NewCalendar(store Store, settings CalendarSettings, log *zap.Logger) *Calendar {
	return &Calendar{
		store:    store,
		settings: settings,
		log:      log,
	}
}

// EnsureWindow expires slots dated before today and generates a full day of
// free slots for every date in [today, today+HorizonDays] that has none.
// Dates that already have slots are left alone, so it is safe on every start.
func (c *Calendar) EnsureWindow(ctx context.Context, today time.Time) (WindowResult, error) {
	var res WindowResult

	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	expired, err := c.store.DeleteBefore(ctx, day.Format(DateLayout))
	if err != nil {
		return res, fmt.Errorf("expire slots: %w", err)
	}
	res.Expired = expired

	for i := 0; i <= c.settings.HorizonDays; i++ {
		d := day.AddDate(0, 0, i)
		date := d.Format(DateLayout)

		n, err := c.store.CountByDate(ctx, date)
		if err != nil {
			return res, fmt.Errorf("count slots for %s: %w", date, err)
		}
		if n > 0 {
			continue
		}

		slots, err := c.DaySlots(d)
		if err != nil {
			return res, err
		}
		if err := c.store.InsertSlots(ctx, slots); err != nil {
			return res, fmt.Errorf("insert slots for %s: %w", date, err)
		}

		res.GeneratedDates = append(res.GeneratedDates, date)
		res.GeneratedSlots += len(slots)
	}

	c.log.Info("calendar window ensured",
		zap.String("from", day.Format(DateLayout)),
		zap.Int("horizon_days", c.settings.HorizonDays),
		zap.Int64("expired", res.Expired),
		zap.Int("generated_dates", len(res.GeneratedDates)),
		zap.Int("generated_slots", res.GeneratedSlots),
	)

	return res, nil
}

// DaySlots builds the free slots for one date.
func (c *Calendar) DaySlots(d time.Time) ([]Slot, error) {
	start, err := time.Parse(TimeLayout, c.settings.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse start time %q: %w", c.settings.StartTime, err)
	}

	date := d.Format(DateLayout)
	label := c.settings.Weekdays.Label(d)
	step := time.Duration(c.settings.IntervalMinutes) * time.Minute

	slots := make([]Slot, 0, c.settings.SlotsPerDay)
	for i := 0; i < c.settings.SlotsPerDay; i++ {
		at := start.Add(time.Duration(i) * step)
		// Slots stay within the day; a profile that would run past
		// midnight is cut short instead of wrapping onto 00:00.
		if at.Day() != start.Day() {
			break
		}
		slots = append(slots, Slot{
			Date:    date,
			Weekday: label,
			Time:    at.Format(TimeLayout),
		})
	}
	return slots, nil
}
