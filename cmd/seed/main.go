package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/app"
	"github.com/hackgods/clinic-slot-scheduling/internal/booking"
	"github.com/hackgods/clinic-slot-scheduling/internal/config"
	"github.com/hackgods/clinic-slot-scheduling/internal/logger"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	zlog.Info("seed starting", zap.Int("bookings", cfg.SeedBookings))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := app.NewContainer(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("startup failed", zap.Error(err))
	}
	defer c.Close()

	if !c.Online() {
		zlog.Fatal("seed needs the slot store", zap.Error(c.StoreErr))
	}

	if _, err := c.RollCalendar(ctx); err != nil && !errors.Is(err, redisclient.ErrLockNotAcquired) {
		zlog.Fatal("prepare calendar", zap.Error(err))
	}

	free, err := freeSlots(ctx, c.Booking, slot.Weekdays(cfg.Calendar.Weekdays), c.Today(), cfg.Calendar.HorizonDays)
	if err != nil {
		zlog.Fatal("list free slots", zap.Error(err))
	}

	f := gofakeit.New(0)
	stored, err := seedBookings(ctx, c.Booking, f, free, cfg.SeedBookings)
	if err != nil {
		zlog.Fatal("seed bookings", zap.Error(err))
	}

	zlog.Info("seed complete", zap.Int("stored", stored), zap.Int("free_before", len(free)))
}

func freeSlots(ctx context.Context, svc *booking.Service, weekdays slot.Weekdays, today time.Time, horizon int) ([]slot.Slot, error) {
	var free []slot.Slot
	for i := 0; i <= horizon; i++ {
		d := today.AddDate(0, 0, i)
		slots, err := svc.ListAvailable(ctx, weekdays.Label(d), d.Format(slot.DateLayout))
		if err != nil {
			return nil, err
		}
		free = append(free, slots...)
	}
	return free, nil
}

// seedBookings books up to count random slots out of free. A slot taken in
// the meantime is skipped.
func seedBookings(ctx context.Context, svc *booking.Service, f *gofakeit.Faker, free []slot.Slot, count int) (int, error) {
	f.ShuffleAnySlice(free)

	stored := 0
	for _, s := range free {
		if stored == count {
			break
		}
		_, err := svc.Book(ctx, fakeBooking(f, s))
		if errors.Is(err, slot.ErrAlreadyOccupied) {
			continue
		}
		if err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}
