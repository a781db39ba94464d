package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/fallback"
	"github.com/hackgods/clinic-slot-scheduling/internal/metrics"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
	"github.com/hackgods/clinic-slot-scheduling/internal/validate"
)

// Outcome tells the caller where a booking ended up.
type Outcome int

const (
	OutcomeStored Outcome = iota + 1
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// Service routes receptionist actions to the slot store, or to the offline
// queue when the store could not be reached at startup. It is not safe for
// concurrent use; one operator drives it.
type Service struct {
	store   slot.Store // nil when offline
	queue   *fallback.Queue
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time
}

// NewService builds the service. Pass a nil store to run offline.
func NewService(store slot.Store, queue *fallback.Queue, m *metrics.Collector, log *zap.Logger) *Service {
	return &Service{
		store:   store,
		queue:   queue,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) Online() bool {
	return s.store != nil
}

// Book occupies a slot. Online it goes straight to the store; offline it is
// appended to the fallback queue and reconciled on a later start.
func (s *Service) Book(ctx context.Context, b slot.Booking) (Outcome, error) {
	if err := checkBooking(b); err != nil {
		s.metrics.BookingsTotal.WithLabelValues("invalid").Inc()
		return 0, err
	}

	if !s.Online() {
		p := slot.NewPendingBooking(b, s.now())
		if err := s.queue.Enqueue(p); err != nil {
			s.metrics.BookingsTotal.WithLabelValues("error").Inc()
			return 0, fmt.Errorf("queue offline booking: %w", err)
		}
		s.metrics.BookingsTotal.WithLabelValues("queued").Inc()
		s.metrics.FallbackPending.Inc()
		s.log.Info("booking queued offline",
			zap.String("id", p.ID.String()),
			zap.String("date", b.Date),
			zap.String("time", b.Time),
		)
		return OutcomeQueued, nil
	}

	if err := s.store.Book(ctx, b); err != nil {
		if errors.Is(err, slot.ErrAlreadyOccupied) {
			s.metrics.BookingsTotal.WithLabelValues("occupied").Inc()
			return 0, err
		}
		s.metrics.BookingsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("book slot: %w", err)
	}

	s.metrics.BookingsTotal.WithLabelValues("stored").Inc()
	s.log.Info("slot booked", zap.String("date", b.Date), zap.String("time", b.Time))
	return OutcomeStored, nil
}

func (s *Service) Cancel(ctx context.Context, date, tm string) error {
	if err := validate.Key(date, tm); err != nil {
		return err
	}
	if !s.Online() {
		return slot.ErrStoreUnreachable
	}

	if err := s.store.Cancel(ctx, date, tm); err != nil {
		if errors.Is(err, slot.ErrNotFound) {
			s.metrics.CancellationsTotal.WithLabelValues("not_found").Inc()
			return err
		}
		s.metrics.CancellationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("cancel slot: %w", err)
	}

	s.metrics.CancellationsTotal.WithLabelValues("cancelled").Inc()
	s.log.Info("booking cancelled", zap.String("date", date), zap.String("time", tm))
	return nil
}

func (s *Service) FindSlot(ctx context.Context, date, tm string) (*slot.Slot, error) {
	if err := validate.Key(date, tm); err != nil {
		return nil, err
	}
	if !s.Online() {
		return nil, slot.ErrStoreUnreachable
	}
	return s.store.FindSlot(ctx, date, tm)
}

func (s *Service) ListOccupied(ctx context.Context) ([]slot.Slot, error) {
	if !s.Online() {
		return nil, slot.ErrStoreUnreachable
	}
	return s.store.ListOccupied(ctx)
}

func (s *Service) ListWithInsurance(ctx context.Context) ([]slot.Slot, error) {
	if !s.Online() {
		return nil, slot.ErrStoreUnreachable
	}
	return s.store.ListWithInsurance(ctx)
}

// ListAvailable filters on both the weekday label and the date, exactly as
// given. A label that does not match the date yields nothing.
func (s *Service) ListAvailable(ctx context.Context, weekday, date string) ([]slot.Slot, error) {
	if !validate.Date(date) {
		return nil, &validate.ValidationError{Fields: []string{"date: must be YYYY-MM-DD"}}
	}
	if !s.Online() {
		return nil, slot.ErrStoreUnreachable
	}
	return s.store.ListAvailable(ctx, weekday, date)
}

func (s *Service) PendingCount() (int, error) {
	return s.queue.Len()
}

// ClearPending discards the offline queue. The operator uses it once the
// conflicts left in it have been dealt with by hand.
func (s *Service) ClearPending() error {
	if err := s.queue.Clear(); err != nil {
		return err
	}
	s.metrics.FallbackPending.Set(0)
	s.log.Warn("offline queue cleared by operator", zap.String("path", s.queue.Path()))
	return nil
}

func checkBooking(b slot.Booking) error {
	var f validate.Fields
	f.Check(validate.Date(b.Date), "date", "must be YYYY-MM-DD").
		Check(validate.Time(b.Time), "time", "must be HH:MM").
		Check(validate.PersonName(b.Name), "name", "letters only").
		Check(validate.PersonName(b.Surname), "surname", "letters only").
		Check(validate.Identifier(b.PatientID), "patient_id", "digits only")
	return f.Err()
}
