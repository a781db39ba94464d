package slot

import (
	"context"
	"sort"
	"sync"
)

type slotKey struct {
	date string
	tm   string
}

// MemoryStore keeps slots in a map. It backs memory:// for local demos and
// the package tests.
type MemoryStore struct {
	mu       sync.Mutex
	slots    map[slotKey]Slot
	weekdays Weekdays
}

func NewMemoryStore(weekdays Weekdays) *MemoryStore {
	return &MemoryStore{
		slots:    make(map[slotKey]Slot),
		weekdays: weekdays,
	}
}

func (m *MemoryStore) FindSlot(ctx context.Context, date, tm string) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[slotKey{date, tm}]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.Insurance = cloneString(s.Insurance)
	return &s, nil
}

func (m *MemoryStore) Book(ctx context.Context, b Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey{b.Date, b.Time}
	s, ok := m.slots[key]
	if ok && s.Occupied {
		return ErrAlreadyOccupied
	}
	if !ok {
		label, err := m.weekdays.LabelFor(b.Date)
		if err != nil {
			return err
		}
		s = Slot{Date: b.Date, Time: b.Time, Weekday: label}
	}

	s.Occupied = true
	s.PatientName = b.Name
	s.PatientSurname = b.Surname
	s.PatientID = b.PatientID
	s.Insurance = cloneString(b.Insurance)
	m.slots[key] = s
	return nil
}

func (m *MemoryStore) Cancel(ctx context.Context, date, tm string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey{date, tm}
	s, ok := m.slots[key]
	if !ok || !s.Occupied {
		return ErrNotFound
	}

	m.slots[key] = Slot{Date: s.Date, Time: s.Time, Weekday: s.Weekday}
	return nil
}

func (m *MemoryStore) ListOccupied(ctx context.Context) ([]Slot, error) {
	return m.filter(func(s Slot) bool { return s.Occupied }), nil
}

func (m *MemoryStore) ListAvailable(ctx context.Context, weekday, date string) ([]Slot, error) {
	return m.filter(func(s Slot) bool {
		return !s.Occupied && s.Weekday == weekday && s.Date == date
	}), nil
}

func (m *MemoryStore) ListWithInsurance(ctx context.Context) ([]Slot, error) {
	return m.filter(Slot.HasInsurance), nil
}

func (m *MemoryStore) DeleteBefore(ctx context.Context, date string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k := range m.slots {
		if k.date < date {
			delete(m.slots, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountByDate(ctx context.Context, date string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k := range m.slots {
		if k.date == date {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertSlots(ctx context.Context, slots []Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range slots {
		key := slotKey{s.Date, s.Time}
		if _, exists := m.slots[key]; exists {
			continue
		}
		m.slots[key] = s
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Len is the total number of slots held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *MemoryStore) filter(keep func(Slot) bool) []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Slot, 0)
	for _, s := range m.slots {
		if keep(s) {
			s.Insurance = cloneString(s.Insurance)
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
