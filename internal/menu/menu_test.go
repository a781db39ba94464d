package menu

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/booking"
	"github.com/hackgods/clinic-slot-scheduling/internal/fallback"
	"github.com/hackgods/clinic-slot-scheduling/internal/metrics"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func newSvc(t *testing.T, store slot.Store) (*booking.Service, *fallback.Queue) {
	t.Helper()
	q := fallback.NewQueue(filepath.Join(t.TempDir(), "pending.jsonl"))
	return booking.NewService(store, q, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop()), q
}

func TestAssignRepromptsUntilValid(t *testing.T) {
	ctx := context.Background()
	store := slot.NewMemoryStore(slot.DefaultWeekdays)
	svc, _ := newSvc(t, store)

	var out bytes.Buffer
	in := script(
		"1",
		"2025-02-30", "2025-03-10",
		"9:00", "09:00",
		"Ana2", "Ana",
		"Lopez",
		"12a", "12345678",
		"OSDE",
		"6",
	)
	require.NoError(t, New(svc, in, &out, zap.NewNop()).Run(ctx))

	s, err := store.FindSlot(ctx, "2025-03-10", "09:00")
	require.NoError(t, err)
	assert.True(t, s.Occupied)
	assert.Equal(t, "Ana", s.PatientName)
	require.NotNil(t, s.Insurance)
	assert.Equal(t, "OSDE", *s.Insurance)

	text := out.String()
	assert.Equal(t, 4, strings.Count(text, "Invalid value."))
	assert.Contains(t, text, "Slot assigned.")
	assert.Contains(t, text, "Goodbye.")
}

func TestSessionBookListCancel(t *testing.T) {
	ctx := context.Background()
	store := slot.NewMemoryStore(slot.DefaultWeekdays)
	require.NoError(t, store.InsertSlots(ctx, []slot.Slot{
		{Date: "2025-03-10", Weekday: "Monday", Time: "09:00"},
		{Date: "2025-03-10", Weekday: "Monday", Time: "09:20"},
	}))
	svc, _ := newSvc(t, store)

	var out bytes.Buffer
	in := script(
		"1", "2025-03-10", "09:00", "Ana", "Lopez", "12345678", "",
		"1", "2025-03-10", "09:00", "Juan", "Perez", "1111", "",
		"3",
		"4",
		"5", "Monday", "2025-03-10",
		"2", "2025-03-10", "09:00",
		"2", "2025-03-10", "09:00",
	)
	// No explicit exit: end of input ends the session.
	require.NoError(t, New(svc, in, &out, zap.NewNop()).Run(ctx))

	text := out.String()
	assert.Contains(t, text, "That slot is already taken.")
	assert.Contains(t, text, "Ana Lopez")
	assert.NotContains(t, text, "Juan Perez")
	assert.Contains(t, text, "Slots with insurance: none.")
	assert.Contains(t, text, "Available slots for Monday 2025-03-10:\n  09:20\n")
	assert.Contains(t, text, "Booking cancelled.")
	assert.Contains(t, text, "No booking found for that date and time.")

	s, err := store.FindSlot(ctx, "2025-03-10", "09:00")
	require.NoError(t, err)
	assert.False(t, s.Occupied)
}

func TestOfflineSessionQueuesAndClears(t *testing.T) {
	ctx := context.Background()
	svc, q := newSvc(t, nil)

	var out bytes.Buffer
	in := script(
		"1", "2025-03-10", "09:00", "Juan", "Perez", "1111", "",
		"3",
		"7", "n",
		"7", "y",
		"7",
		"6",
	)
	require.NoError(t, New(svc, in, &out, zap.NewNop()).Run(ctx))

	text := out.String()
	assert.Contains(t, text, "The database is unreachable.")
	assert.Contains(t, text, "booking saved locally")
	assert.Contains(t, text, "Not available: the database was unreachable at startup.")
	assert.Contains(t, text, "Discard 1 pending booking(s)?")
	assert.Contains(t, text, "Kept.")
	assert.Contains(t, text, "Offline queue cleared.")
	assert.Contains(t, text, "The offline queue is empty.")

	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnknownOption(t *testing.T) {
	svc, _ := newSvc(t, slot.NewMemoryStore(slot.DefaultWeekdays))

	var out bytes.Buffer
	require.NoError(t, New(svc, script("9", "6"), &out, zap.NewNop()).Run(context.Background()))
	assert.Contains(t, out.String(), `Unknown option "9".`)
}
