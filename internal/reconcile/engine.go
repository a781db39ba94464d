package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/fallback"
	"github.com/hackgods/clinic-slot-scheduling/internal/metrics"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

const (
	ResultTransferred = "transferred"
	ResultReconfirmed = "reconfirmed"
	ResultConflict    = "conflict"
	ResultRejected    = "rejected"
)

// Summary reports one reconciliation pass.
type Summary struct {
	Pending      int
	Transferred  int
	Reconfirmed  int
	Conflicted   int
	Rejected     int // unreadable queue lines
	QueueCleared bool
}

func (s Summary) String() string {
	out := fmt.Sprintf("%d pending: %d transferred, %d reconfirmed, %d conflicted",
		s.Pending, s.Transferred, s.Reconfirmed, s.Conflicted)
	if s.Rejected > 0 {
		out += fmt.Sprintf(", %d unreadable", s.Rejected)
	}
	return out + fmt.Sprintf(" (queue cleared: %t)", s.QueueCleared)
}

// Engine replays the offline queue into the store once it is reachable.
type Engine struct {
	store     slot.Store
	queue     *fallback.Queue
	conflicts *fallback.ConflictLog
	metrics   *metrics.Collector
	log       *zap.Logger
	now       func() time.Time
}

func NewEngine(store slot.Store, queue *fallback.Queue, conflicts *fallback.ConflictLog, m *metrics.Collector, log *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		queue:     queue,
		conflicts: conflicts,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Run processes every pending booking in enqueue order. A booking whose slot
// is free (or missing) is applied; one whose slot is held by somebody else
// is quarantined in the conflict log. The queue file is removed only when the
// whole batch went through without a single conflict, otherwise it is kept
// as is and the next pass walks it again. Lines that do not decode are
// copied aside and keep the queue too, so nothing is lost by a Clear that
// the operator did not ask for.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	batch, err := e.queue.Read()
	if err != nil {
		return sum, fmt.Errorf("drain fallback queue: %w", err)
	}
	pending := batch.Pending
	sum.Pending = len(pending)
	sum.Rejected = len(batch.Rejected)
	if sum.Pending == 0 && sum.Rejected == 0 {
		return sum, nil
	}

	if sum.Rejected > 0 {
		if err := e.queue.Reject(batch.Rejected); err != nil {
			return sum, fmt.Errorf("copy unreadable queue lines: %w", err)
		}
		for _, l := range batch.Rejected {
			e.log.Warn("unreadable line in fallback queue",
				zap.String("path", e.queue.Path()),
				zap.Int("line", l.Line),
				zap.String("error", l.Error),
				zap.String("copied_to", e.queue.RejectedPath()),
			)
		}
		e.metrics.ReconciledTotal.WithLabelValues(ResultRejected).Add(float64(sum.Rejected))
	}

	for _, p := range pending {
		result, err := e.apply(ctx, p)
		if err != nil {
			return sum, fmt.Errorf("reconcile pending booking %s: %w", p.ID, err)
		}

		switch result {
		case ResultTransferred:
			sum.Transferred++
		case ResultReconfirmed:
			sum.Reconfirmed++
		case ResultConflict:
			sum.Conflicted++
		}
		e.metrics.ReconciledTotal.WithLabelValues(result).Inc()
	}

	if sum.Conflicted == 0 && sum.Rejected == 0 {
		if err := e.queue.Clear(); err != nil {
			return sum, fmt.Errorf("clear fallback queue: %w", err)
		}
		sum.QueueCleared = true
		e.metrics.FallbackPending.Set(0)
	} else {
		e.metrics.FallbackPending.Set(float64(sum.Pending + sum.Rejected))
	}

	e.log.Info("reconciliation finished",
		zap.Int("pending", sum.Pending),
		zap.Int("transferred", sum.Transferred),
		zap.Int("reconfirmed", sum.Reconfirmed),
		zap.Int("conflicted", sum.Conflicted),
		zap.Int("rejected", sum.Rejected),
		zap.Bool("queue_cleared", sum.QueueCleared),
	)

	return sum, nil
}

func (e *Engine) apply(ctx context.Context, p slot.PendingBooking) (string, error) {
	b := p.Booking()

	existing, err := e.store.FindSlot(ctx, p.Date, p.Time)
	if err != nil && !errors.Is(err, slot.ErrSlotNotFound) {
		return "", fmt.Errorf("find slot: %w", err)
	}

	if existing != nil && existing.Occupied {
		// A booking applied by an earlier pass whose batch was kept because
		// of some other conflict finds its own patient in the slot.
		if b.SamePatient(*existing) {
			e.log.Info("pending booking already applied, reconfirmed",
				zap.String("id", p.ID.String()),
				zap.String("date", p.Date),
				zap.String("time", p.Time),
				zap.String("patient_id", p.PatientID),
			)
			return ResultReconfirmed, nil
		}
		return ResultConflict, e.quarantine(p, existing.PatientID)
	}

	err = e.store.Book(ctx, b)
	switch {
	case err == nil:
		return ResultTransferred, nil
	case errors.Is(err, slot.ErrAlreadyOccupied):
		return ResultConflict, e.quarantine(p, "")
	default:
		return "", fmt.Errorf("book slot: %w", err)
	}
}

func (e *Engine) quarantine(p slot.PendingBooking, occupant string) error {
	reason := slot.ErrReconciliationConflict.Error()
	if occupant != "" {
		reason = fmt.Sprintf("%s (occupant %s)", reason, occupant)
	}

	rec := slot.ConflictRecord{
		PendingBooking: p,
		ConflictAt:     e.now().UTC(),
		Reason:         reason,
	}
	if err := e.conflicts.Append(rec); err != nil {
		return fmt.Errorf("write conflict log: %w", err)
	}

	e.log.Warn("pending booking quarantined",
		zap.String("id", p.ID.String()),
		zap.String("date", p.Date),
		zap.String("time", p.Time),
		zap.String("patient_id", p.PatientID),
		zap.String("reason", reason),
	)
	return nil
}
