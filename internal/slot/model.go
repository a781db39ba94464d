package slot

import (
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is one bookable interval, keyed by (Date, Time).
type Slot struct {
	Date           string  `bson:"date" json:"date"`
	Weekday        string  `bson:"weekday" json:"weekday"`
	Time           string  `bson:"time" json:"time"`
	Occupied       bool    `bson:"occupied" json:"occupied"`
	PatientName    string  `bson:"name,omitempty" json:"name,omitempty"`
	PatientSurname string  `bson:"surname,omitempty" json:"surname,omitempty"`
	PatientID      string  `bson:"patient_id,omitempty" json:"patient_id,omitempty"`
	Insurance      *string `bson:"insurance,omitempty" json:"insurance,omitempty"`
}

// HasInsurance reports an occupied slot with a non-empty insurance provider.
func (s Slot) HasInsurance() bool {
	return s.Occupied && s.Insurance != nil && *s.Insurance != ""
}

// Booking is what a receptionist supplies to occupy a slot.
type Booking struct {
	Date      string
	Time      string
	Name      string
	Surname   string
	PatientID string
	Insurance *string
}

// SamePatient reports whether the slot is occupied by the patient b names.
func (b Booking) SamePatient(s Slot) bool {
	return s.Occupied &&
		s.PatientID == b.PatientID &&
		s.PatientName == b.Name &&
		s.PatientSurname == b.Surname
}

// PendingBooking is a booking captured while the store was unreachable. It
// serializes as one self-contained JSON line.
type PendingBooking struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	PatientID string    `json:"patient_id"`
	Insurance *string   `json:"insurance"`
	QueuedAt  time.Time `json:"queued_at"`
}

func NewPendingBooking(b Booking, now time.Time) PendingBooking {
	return PendingBooking{
		ID:        uuid.New(),
		Date:      b.Date,
		Time:      b.Time,
		Name:      b.Name,
		Surname:   b.Surname,
		PatientID: b.PatientID,
		Insurance: b.Insurance,
		QueuedAt:  now.UTC(),
	}
}

func (p PendingBooking) Booking() Booking {
	return Booking{
		Date:      p.Date,
		Time:      p.Time,
		Name:      p.Name,
		Surname:   p.Surname,
		PatientID: p.PatientID,
		Insurance: p.Insurance,
	}
}

// ConflictRecord quarantines a pending booking whose key was already taken.
type ConflictRecord struct {
	PendingBooking
	ConflictAt time.Time `json:"conflict_at"`
	Reason     string    `json:"reason"`
}
