package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/config"
	"github.com/hackgods/clinic-slot-scheduling/internal/logger"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

// SimConfig drives a read-only load run against the slot API. The desk
// console is the only writer, so the simulator never books.
type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
}

// Keys is the pool of (date, time) pairs the simulator asks about, built from
// the calendar settings rather than read from the store.
type Keys struct {
	Dates    []string
	Labels   []string
	Times    []string
	Weekdays slot.Weekdays
}

type Metrics struct {
	Occupied  OperationMetrics
	Insurance OperationMetrics
	Available OperationMetrics
	GetSlot   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	keys    Keys
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(baseCfg.LogLevel, baseCfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		zlog.Fatal("invalid config", zap.Error(err))
	}

	keys, err := buildKeys(baseCfg.Calendar, time.Now())
	if err != nil {
		zlog.Fatal("build key pool", zap.Error(err))
	}

	zlog.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Int("dates", len(keys.Dates)),
	)

	sim := &Simulator{
		config: cfg,
		keys:   keys,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    zlog,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:   getDuration("SIM_DURATION", 30*time.Second),
		Workers:    getInt("SIM_WORKERS", 4),
	}
}

func validateConfig(cfg SimConfig) error {
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("SIM_API_BASE_URL: %w", err)
	}
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	return nil
}

func buildKeys(cal config.Calendar, now time.Time) (Keys, error) {
	loc, err := cal.Location()
	if err != nil {
		return Keys{}, err
	}
	today := now.In(loc)

	settings := slot.CalendarSettings{
		HorizonDays:     cal.HorizonDays,
		IntervalMinutes: cal.IntervalMinutes,
		SlotsPerDay:     cal.SlotsPerDay,
		StartTime:       cal.StartTime,
		Weekdays:        slot.Weekdays(cal.Weekdays),
	}
	day, err := slot.NewCalendar(nil, settings, zap.NewNop()).DaySlots(today)
	if err != nil {
		return Keys{}, err
	}

	keys := Keys{Weekdays: settings.Weekdays}
	for _, s := range day {
		keys.Times = append(keys.Times, s.Time)
	}
	for i := 0; i <= cal.HorizonDays; i++ {
		d := today.AddDate(0, 0, i)
		keys.Dates = append(keys.Dates, d.Format(slot.DateLayout))
		keys.Labels = append(keys.Labels, settings.Weekdays.Label(d))
	}
	return keys, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		i := rng.Intn(len(s.keys.Dates))
		switch rng.Intn(4) {
		case 0:
			s.call(ctx, &s.metrics.Occupied, "/slots/occupied")
		case 1:
			s.call(ctx, &s.metrics.Insurance, "/slots/insurance")
		case 2:
			q := url.Values{"weekday": {s.keys.Labels[i]}, "date": {s.keys.Dates[i]}}
			s.call(ctx, &s.metrics.Available, "/slots/available?"+q.Encode())
		case 3:
			tm := s.keys.Times[rng.Intn(len(s.keys.Times))]
			s.call(ctx, &s.metrics.GetSlot, fmt.Sprintf("/slots/%s/%s", s.keys.Dates[i], tm))
		}
	}
}

func (s *Simulator) call(ctx context.Context, om *OperationMetrics, path string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		om.Record(0, false, false)
		return
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		// Requests cut off by the end of the run are not failures.
		if ctx.Err() == nil {
			om.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	om.Record(latency, resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusServiceUnavailable)
}

func (s *Simulator) PrintReport() {
	out := os.Stdout
	fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(out, "SIMULATION REPORT")
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintf(out, "Duration: %s\n", s.config.Duration)
	fmt.Fprintf(out, "Workers: %d\n\n", s.config.Workers)

	printOperationReport(out, "List occupied", &s.metrics.Occupied)
	printOperationReport(out, "List with insurance", &s.metrics.Insurance)
	printOperationReport(out, "List available", &s.metrics.Available)
	printOperationReport(out, "Get slot", &s.metrics.GetSlot)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
