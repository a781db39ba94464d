package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hackgods/clinic-slot-scheduling/internal/fallback"
	"github.com/hackgods/clinic-slot-scheduling/internal/metrics"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

type fixture struct {
	store     *slot.MemoryStore
	queue     *fallback.Queue
	conflicts *fallback.ConflictLog
	engine    *Engine
}

func newFixture(t *testing.T, store slot.Store) fixture {
	t.Helper()
	dir := t.TempDir()

	mem, _ := store.(*slot.MemoryStore)
	f := fixture{
		store:     mem,
		queue:     fallback.NewQueue(filepath.Join(dir, "pending.jsonl")),
		conflicts: fallback.NewConflictLog(filepath.Join(dir, "conflicts.jsonl")),
	}
	f.engine = NewEngine(store, f.queue, f.conflicts, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())
	return f
}

func enqueue(t *testing.T, q *fallback.Queue, b slot.Booking) slot.PendingBooking {
	t.Helper()
	p := slot.NewPendingBooking(b, time.Now())
	require.NoError(t, q.Enqueue(p))
	return p
}

func juan() slot.Booking {
	return slot.Booking{Date: "2025-03-10", Time: "09:00", Name: "Juan", Surname: "Perez", PatientID: "1111"}
}

func TestRunEmptyQueue(t *testing.T) {
	f := newFixture(t, slot.NewMemoryStore(slot.DefaultWeekdays))

	sum, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestRunTransfersAndClearsQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, slot.NewMemoryStore(slot.DefaultWeekdays))

	enqueue(t, f.queue, juan())

	sum, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, 1, sum.Transferred)
	assert.Zero(t, sum.Conflicted)
	assert.True(t, sum.QueueCleared)

	s, err := f.store.FindSlot(ctx, "2025-03-10", "09:00")
	require.NoError(t, err)
	assert.True(t, s.Occupied)
	assert.Equal(t, "Juan", s.PatientName)
	assert.Equal(t, "Perez", s.PatientSurname)
	assert.Equal(t, "1111", s.PatientID)
	assert.Nil(t, s.Insurance)
	assert.Equal(t, "Monday", s.Weekday)

	left, err := f.queue.Drain()
	require.NoError(t, err)
	assert.Empty(t, left)

	conflicts, err := f.conflicts.Records()
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestRunQuarantinesConflictAndKeepsWholeQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, slot.NewMemoryStore(slot.DefaultWeekdays))

	require.NoError(t, f.store.Book(ctx, slot.Booking{
		Date: "2025-03-10", Time: "09:00", Name: "Maria", Surname: "Gomez", PatientID: "2222",
	}))

	clash := enqueue(t, f.queue, juan())
	other := juan()
	other.Time = "09:20"
	enqueue(t, f.queue, other)

	sum, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Pending)
	assert.Equal(t, 1, sum.Transferred)
	assert.Equal(t, 1, sum.Conflicted)
	assert.False(t, sum.QueueCleared)

	s, err := f.store.FindSlot(ctx, "2025-03-10", "09:00")
	require.NoError(t, err)
	assert.Equal(t, "Maria", s.PatientName)
	assert.Equal(t, "2222", s.PatientID)

	applied, err := f.store.FindSlot(ctx, "2025-03-10", "09:20")
	require.NoError(t, err)
	assert.True(t, applied.Occupied)
	assert.Equal(t, "Juan", applied.PatientName)

	conflicts, err := f.conflicts.Records()
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, clash.ID, conflicts[0].ID)
	assert.Contains(t, conflicts[0].Reason, "2222")

	left, err := f.queue.Drain()
	require.NoError(t, err)
	assert.Len(t, left, 2, "queue is kept whole when any conflict occurs")
}

func TestRunSecondPassReconfirmsAppliedBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, slot.NewMemoryStore(slot.DefaultWeekdays))

	require.NoError(t, f.store.Book(ctx, slot.Booking{
		Date: "2025-03-10", Time: "09:00", Name: "Maria", Surname: "Gomez", PatientID: "2222",
	}))
	enqueue(t, f.queue, juan())
	other := juan()
	other.Time = "09:20"
	enqueue(t, f.queue, other)

	_, err := f.engine.Run(ctx)
	require.NoError(t, err)

	sum, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Transferred)
	assert.Equal(t, 1, sum.Reconfirmed)
	assert.Equal(t, 1, sum.Conflicted)
	assert.False(t, sum.QueueCleared)

	conflicts, err := f.conflicts.Records()
	require.NoError(t, err)
	assert.Len(t, conflicts, 2, "every pass appends the unresolved conflict again")
}

func TestRunFillsFreeGeneratedSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, slot.NewMemoryStore(slot.DefaultWeekdays))

	require.NoError(t, f.store.InsertSlots(ctx, []slot.Slot{{Date: "2025-03-10", Weekday: "Monday", Time: "09:00"}}))
	enqueue(t, f.queue, juan())

	sum, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Transferred)
	assert.Equal(t, 1, f.store.Len())
}

type brokenStore struct {
	slot.Store
}

func (brokenStore) FindSlot(ctx context.Context, date, tm string) (*slot.Slot, error) {
	return nil, errors.New("connection reset")
}

func TestRunStoreFailureLeavesQueue(t *testing.T) {
	f := newFixture(t, brokenStore{Store: slot.NewMemoryStore(slot.DefaultWeekdays)})
	enqueue(t, f.queue, juan())

	_, err := f.engine.Run(context.Background())
	require.Error(t, err)

	left, err := f.queue.Drain()
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestRunReconfirmIsLoggedWithPendingID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, slot.NewMemoryStore(slot.DefaultWeekdays))
	core, logs := observer.New(zapcore.InfoLevel)
	f.engine = NewEngine(f.store, f.queue, f.conflicts, metrics.NewCollector(prometheus.NewRegistry()), zap.New(core))

	require.NoError(t, f.store.Book(ctx, juan()))
	p := enqueue(t, f.queue, juan())

	sum, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Reconfirmed)

	entries := logs.FilterMessage("pending booking already applied, reconfirmed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, p.ID.String(), entries[0].ContextMap()["id"])
	assert.Equal(t, "1111", entries[0].ContextMap()["patient_id"])
}

func TestRunUnreadableLineDoesNotBlockReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, slot.NewMemoryStore(slot.DefaultWeekdays))

	enqueue(t, f.queue, juan())
	fh, err := os.OpenFile(f.queue.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fh.WriteString("{\"date\":\n")
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	sum, err := f.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Transferred)
	assert.Equal(t, 1, sum.Rejected)
	assert.False(t, sum.QueueCleared, "an unreadable line keeps the queue for the operator")
	assert.Contains(t, sum.String(), "1 unreadable")

	s, err := f.store.FindSlot(ctx, "2025-03-10", "09:00")
	require.NoError(t, err)
	assert.Equal(t, "Juan", s.PatientName)

	lines, err := f.queue.RejectedLines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Line)
}
