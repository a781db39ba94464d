// Package fallback keeps bookings on local disk while the slot store is
// unreachable, plus the audit log of bookings that could not be replayed.
package fallback

import (
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

// Queue is the durable offline booking queue. Draining does not consume
// records; the reconciler decides when the file goes away.
type Queue struct {
	j        journal[slot.PendingBooking]
	rejected journal[RejectedLine]
}

func NewQueue(path string) *Queue {
	return &Queue{
		j:        journal[slot.PendingBooking]{path: path},
		rejected: journal[RejectedLine]{path: path + ".rejected"},
	}
}

// Batch is one read of the queue file.
type Batch struct {
	Pending  []slot.PendingBooking
	Rejected []RejectedLine
}

func (q *Queue) Path() string {
	return q.j.path
}

func (q *Queue) Enqueue(p slot.PendingBooking) error {
	return q.j.append(p)
}

// Read returns every pending booking in enqueue order together with the
// lines that did not decode.
func (q *Queue) Read() (Batch, error) {
	pending, rejected, err := q.j.readAll()
	if err != nil {
		return Batch{}, err
	}
	return Batch{Pending: pending, Rejected: rejected}, nil
}

// Drain returns every pending booking in enqueue order, skipping lines that
// do not decode.
func (q *Queue) Drain() ([]slot.PendingBooking, error) {
	b, err := q.Read()
	return b.Pending, err
}

// Len counts queue entries, unreadable lines included, since Clear drops
// them too.
func (q *Queue) Len() (int, error) {
	b, err := q.Read()
	if err != nil {
		return 0, err
	}
	return len(b.Pending) + len(b.Rejected), nil
}

// RejectedPath is where unreadable queue lines are copied.
func (q *Queue) RejectedPath() string {
	return q.rejected.path
}

// Reject copies unreadable lines next to the queue so they survive a
// later Clear.
func (q *Queue) Reject(lines []RejectedLine) error {
	for _, l := range lines {
		if err := q.rejected.append(l); err != nil {
			return err
		}
	}
	return nil
}

// RejectedLines returns what Reject has copied so far.
func (q *Queue) RejectedLines() ([]RejectedLine, error) {
	lines, _, err := q.rejected.readAll()
	return lines, err
}

// Clear deletes the backing file.
func (q *Queue) Clear() error {
	return q.j.remove()
}

// ConflictLog is the append-only quarantine of pending bookings whose slot
// was already occupied when they were replayed.
type ConflictLog struct {
	j journal[slot.ConflictRecord]
}

func NewConflictLog(path string) *ConflictLog {
	return &ConflictLog{j: journal[slot.ConflictRecord]{path: path}}
}

func (c *ConflictLog) Path() string {
	return c.j.path
}

func (c *ConflictLog) Append(rec slot.ConflictRecord) error {
	return c.j.append(rec)
}

// Records returns the decodable entries of the log.
func (c *ConflictLog) Records() ([]slot.ConflictRecord, error) {
	records, _, err := c.j.readAll()
	return records, err
}
