package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/booking"
	"github.com/hackgods/clinic-slot-scheduling/internal/config"
	"github.com/hackgods/clinic-slot-scheduling/internal/db"
	"github.com/hackgods/clinic-slot-scheduling/internal/fallback"
	"github.com/hackgods/clinic-slot-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/reconcile"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

var ErrUnsupportedStore = errors.New("unsupported STORE_URI scheme")

// Container holds every wired component for one process. Store, Calendar and
// Reconciler are nil when the store could not be reached at startup.
type Container struct {
	Config     config.Config
	Log        *zap.Logger
	Metrics    *metrics.Collector
	Store      slot.Store
	StoreErr   error
	Queue      *fallback.Queue
	Conflicts  *fallback.ConflictLog
	Booking    *booking.Service
	Calendar   *slot.Calendar
	Reconciler *reconcile.Engine
	Redis      *redis.Client
	Locker     redisclient.Locker

	location  *time.Location
	lockRetry time.Duration
	lockWait  time.Duration
	closers   []func()
}

// NewContainer connects to the store once. A connection failure is not an
// error: the container comes up offline and bookings go to the fallback
// queue for the rest of the session.
func NewContainer(ctx context.Context, cfg config.Config, log *zap.Logger) (*Container, error) {
	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, fmt.Errorf("calendar timezone: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Container{
		Config:    cfg,
		Log:       log,
		Metrics:   metrics.NewCollector(reg),
		Queue:     fallback.NewQueue(cfg.FallbackPath),
		Conflicts: fallback.NewConflictLog(cfg.ConflictPath),
		Locker:    redisclient.NoopLocker{},
		location:  loc,
		lockRetry: 250 * time.Millisecond,
		lockWait:  cfg.LockTTL,
	}

	weekdays := slot.Weekdays(cfg.Calendar.Weekdays)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	store, closer, err := openStore(connectCtx, cfg, weekdays)
	cancel()
	switch {
	case err == nil:
		c.Store = store
		c.closers = append(c.closers, closer)
		log.Info("connected to slot store", zap.String("scheme", storeScheme(cfg.StoreURI)))
	case errors.Is(err, slot.ErrStoreUnreachable):
		c.StoreErr = err
		log.Warn("slot store unreachable, bookings will be queued offline",
			zap.Error(err),
			zap.String("fallback_path", cfg.FallbackPath),
		)
	default:
		return nil, err
	}

	if c.Store != nil {
		c.Calendar = slot.NewCalendar(c.Store, slot.CalendarSettings{
			HorizonDays:     cfg.Calendar.HorizonDays,
			IntervalMinutes: cfg.Calendar.IntervalMinutes,
			SlotsPerDay:     cfg.Calendar.SlotsPerDay,
			StartTime:       cfg.Calendar.StartTime,
			Weekdays:        weekdays,
		}, log)
		c.Reconciler = reconcile.NewEngine(c.Store, c.Queue, c.Conflicts, c.Metrics, log)
		c.Booking = booking.NewService(c.Store, c.Queue, c.Metrics, log)
	} else {
		c.Booking = booking.NewService(nil, c.Queue, c.Metrics, log)
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, maintenance runs unlocked", zap.Error(err))
		} else {
			c.Redis = rdb
			c.Locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
			c.closers = append(c.closers, func() {
				if err := rdb.Close(); err != nil {
					log.Warn("error closing redis", zap.Error(err))
				}
			})
			log.Info("connected to Redis")
		}
	}

	if n, err := c.Queue.Len(); err == nil {
		c.Metrics.FallbackPending.Set(float64(n))
	}

	return c, nil
}

func (c *Container) Online() bool {
	return c.Store != nil
}

// Today is the current date in the calendar timezone.
func (c *Container) Today() time.Time {
	return time.Now().In(c.location)
}

// MaintenanceResult groups what one startup maintenance pass did.
type MaintenanceResult struct {
	Window          slot.WindowResult
	Reconcile       reconcile.Summary
	CalendarSkipped bool // another process held the maintenance lock
}

// Maintain rolls the calendar window forward and then drains the offline
// queue into the store. The calendar step is skipped when another process
// is already rolling it; reconciliation always runs, waiting for its own
// lock, and runs even when the calendar step failed.
func (c *Container) Maintain(ctx context.Context) (MaintenanceResult, error) {
	var res MaintenanceResult
	if !c.Online() {
		return res, slot.ErrStoreUnreachable
	}

	window, err := c.RollCalendar(ctx)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		res.CalendarSkipped = true
		err = nil
	case err != nil:
		c.Log.Error("calendar window not updated, reconciling anyway", zap.Error(err))
		err = fmt.Errorf("ensure calendar window: %w", err)
	}
	res.Window = window

	recErr := c.waitLock(ctx, redisclient.ReconcileLock, func(ctx context.Context) error {
		sum, err := c.Reconciler.Run(ctx)
		res.Reconcile = sum
		return err
	})
	if recErr != nil {
		recErr = fmt.Errorf("reconcile offline bookings: %w", recErr)
	}

	return res, errors.Join(err, recErr)
}

// waitLock retries the lock until it is free, the lock TTL has passed or
// ctx ends. A holder that died lets go within one TTL.
func (c *Container) waitLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	deadline := time.Now().Add(c.lockWait)
	for {
		err := c.Locker.WithLock(ctx, name, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for %s lock: %w", name, err)
		}

		c.Log.Info("lock busy, waiting", zap.String("lock", name))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.lockRetry):
		}
	}
}

// RollCalendar runs only the calendar half of Maintain. The expiry worker
// and the seed command use it since the offline queue belongs to the desk
// process. It returns redisclient.ErrLockNotAcquired when another process
// is rolling the calendar.
func (c *Container) RollCalendar(ctx context.Context) (slot.WindowResult, error) {
	var res slot.WindowResult
	if !c.Online() {
		return res, slot.ErrStoreUnreachable
	}

	err := c.Locker.WithLock(ctx, redisclient.MaintenanceLock, func(ctx context.Context) error {
		window, err := c.Calendar.EnsureWindow(ctx, c.Today())
		if err != nil {
			return err
		}
		res = window
		c.Metrics.SlotsGeneratedTotal.Add(float64(window.GeneratedSlots))
		c.Metrics.SlotsExpiredTotal.Add(float64(window.Expired))
		return nil
	})
	return res, err
}

func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Log.Sync()
}

func storeScheme(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// openStore picks the slot store from the STORE_URI scheme. Connection
// failures come back wrapped in slot.ErrStoreUnreachable; anything else is
// a configuration mistake.
func openStore(ctx context.Context, cfg config.Config, weekdays slot.Weekdays) (slot.Store, func(), error) {
	switch storeScheme(cfg.StoreURI) {
	case "mongodb", "mongodb+srv":
		client, err := db.ConnectMongo(ctx, cfg.StoreURI)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", slot.ErrStoreUnreachable, err)
		}
		closer := func() { _ = client.Disconnect(context.Background()) }

		store := slot.NewMongoStore(client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection), weekdays)
		if err := store.EnsureIndexes(ctx); err != nil {
			closer()
			return nil, nil, fmt.Errorf("%w: %v", slot.ErrStoreUnreachable, err)
		}
		return store, closer, nil

	case "postgres", "postgresql":
		pool, err := db.ConnectPostgres(ctx, cfg.StoreURI)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", slot.ErrStoreUnreachable, err)
		}

		store := slot.NewPgStore(pool, weekdays)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("%w: %v", slot.ErrStoreUnreachable, err)
		}
		return store, pool.Close, nil

	case "memory":
		return slot.NewMemoryStore(weekdays), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, cfg.StoreURI)
	}
}
