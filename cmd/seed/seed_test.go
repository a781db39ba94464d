package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/booking"
	"github.com/hackgods/clinic-slot-scheduling/internal/fallback"
	"github.com/hackgods/clinic-slot-scheduling/internal/metrics"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
	"github.com/hackgods/clinic-slot-scheduling/internal/validate"
)

func TestFakeBookingPassesValidation(t *testing.T) {
	f := gofakeit.New(42)
	s := slot.Slot{Date: "2025-03-10", Time: "09:00"}

	for i := 0; i < 200; i++ {
		b := fakeBooking(f, s)
		assert.True(t, validate.PersonName(b.Name), b.Name)
		assert.True(t, validate.PersonName(b.Surname), b.Surname)
		assert.True(t, validate.Identifier(b.PatientID), b.PatientID)
		assert.Len(t, b.PatientID, 8)
		if b.Insurance != nil {
			assert.Contains(t, insurers, *b.Insurance)
		}
	}
}

func TestLettersOnly(t *testing.T) {
	assert.Equal(t, "ONeil", lettersOnly("O'Neil", "x"))
	assert.Equal(t, "MaríaJosé", lettersOnly("María José", "x"))
	assert.Equal(t, "x", lettersOnly("-- ", "x"))
}

func TestSeedBookingsFillsFreeSlots(t *testing.T) {
	ctx := context.Background()
	store := slot.NewMemoryStore(slot.DefaultWeekdays)
	cal := slot.NewCalendar(store, slot.DefaultCalendarSettings(), zap.NewNop())
	today := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := cal.EnsureWindow(ctx, today)
	require.NoError(t, err)

	q := fallback.NewQueue(filepath.Join(t.TempDir(), "pending.jsonl"))
	svc := booking.NewService(store, q, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())

	free, err := freeSlots(ctx, svc, slot.DefaultWeekdays, today, 14)
	require.NoError(t, err)
	require.Len(t, free, 15*30)

	stored, err := seedBookings(ctx, svc, gofakeit.New(7), free, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, stored)

	occupied, err := svc.ListOccupied(ctx)
	require.NoError(t, err)
	assert.Len(t, occupied, 25)
}
