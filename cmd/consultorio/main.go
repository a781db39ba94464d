package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/app"
	"github.com/hackgods/clinic-slot-scheduling/internal/config"
	"github.com/hackgods/clinic-slot-scheduling/internal/logger"
	"github.com/hackgods/clinic-slot-scheduling/internal/menu"
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

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.NewContainer(rootCtx, cfg, zlog)
	if err != nil {
		zlog.Fatal("startup failed", zap.Error(err))
	}
	defer c.Close()

	if c.Online() {
		res, err := c.Maintain(rootCtx)
		if err != nil {
			// The desk can still book against what is in the store.
			zlog.Error("startup maintenance failed", zap.Error(err))
		}
		sum := res.Reconcile
		if sum.Pending > 0 || sum.Rejected > 0 {
			fmt.Printf("Offline bookings: %s\n", sum)
			if sum.Conflicted > 0 {
				fmt.Printf("Conflicts were written to %s.\n", c.Conflicts.Path())
			}
			if sum.Rejected > 0 {
				fmt.Printf("Unreadable queue lines were copied to %s.\n", c.Queue.RejectedPath())
			}
			if sum.Conflicted > 0 || sum.Rejected > 0 {
				fmt.Println("Clear the offline queue (option 7) once they are handled.")
			}
		}
	}

	m := menu.New(c.Booking, os.Stdin, os.Stdout, zlog)
	if err := m.Run(rootCtx); err != nil && rootCtx.Err() == nil {
		zlog.Error("menu stopped", zap.Error(err))
	}
}
