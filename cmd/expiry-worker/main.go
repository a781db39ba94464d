package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/app"
	"github.com/hackgods/clinic-slot-scheduling/internal/config"
	"github.com/hackgods/clinic-slot-scheduling/internal/logger"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
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
	zlog.Info("expiry-worker starting up", zap.String("env", cfg.Env), zap.Duration("interval", cfg.WorkerInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.NewContainer(rootCtx, cfg, zlog)
	if err != nil {
		zlog.Fatal("startup failed", zap.Error(err))
	}
	defer c.Close()

	if !c.Online() {
		zlog.Fatal("expiry worker needs the slot store", zap.Error(c.StoreErr))
	}

	// Run once at startup
	runOnce(rootCtx, c)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			zlog.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, c)
		}
	}
}

func runOnce(ctx context.Context, c *app.Container) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	res, err := c.RollCalendar(runCtx)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		c.Log.Info("calendar rollover running elsewhere, skipped")
		return
	}
	if err != nil {
		c.Log.Error("calendar rollover failed", zap.Error(err))
		return
	}
	c.Log.Info("calendar rollover complete",
		zap.Int64("expired", res.Expired),
		zap.Int("generated_slots", res.GeneratedSlots),
		zap.Duration("took", time.Since(start)),
	)
}
