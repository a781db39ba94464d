package slot

import (
	"context"
	"errors"
)

var (
	ErrAlreadyOccupied        = errors.New("slot already occupied")
	ErrNotFound               = errors.New("no occupied slot for that date and time")
	ErrSlotNotFound           = errors.New("slot not found")
	ErrStoreUnreachable       = errors.New("slot store unreachable")
	ErrReconciliationConflict = errors.New("pending booking conflicts with an occupied slot")
)

// Store is the persistent slot collection addressed by (date, time).
type Store interface {
	FindSlot(ctx context.Context, date, tm string) (*Slot, error)

	// Book occupies the slot with create-if-missing semantics: a booking for
	// a key the calendar has not generated yet still succeeds. It returns
	// ErrAlreadyOccupied and leaves the record untouched when the slot is
	// already taken.
	Book(ctx context.Context, b Booking) error

	// Cancel frees an occupied slot and clears every patient field.
	Cancel(ctx context.Context, date, tm string) error

	// Listings, ordered by date then time.
	ListOccupied(ctx context.Context) ([]Slot, error)
	ListAvailable(ctx context.Context, weekday, date string) ([]Slot, error)
	ListWithInsurance(ctx context.Context) ([]Slot, error)

	// Calendar maintenance
	DeleteBefore(ctx context.Context, date string) (int64, error)
	CountByDate(ctx context.Context, date string) (int64, error)
	InsertSlots(ctx context.Context, slots []Slot) error

	Ping(ctx context.Context) error
}
