package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS slots (
	slot_date       text        NOT NULL,
	slot_time       text        NOT NULL,
	weekday         text        NOT NULL,
	occupied        boolean     NOT NULL DEFAULT false,
	patient_name    text,
	patient_surname text,
	patient_id      text,
	insurance       text,
	updated_at      timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (slot_date, slot_time)
)`

var slotColumns = []string{
	"slot_date", "weekday", "slot_time", "occupied",
	"patient_name", "patient_surname", "patient_id", "insurance",
}

type PgStore struct {
	pool     *pgxpool.Pool
	weekdays Weekdays
	psql     squirrel.StatementBuilderType
}

func NewPgStore(pool *pgxpool.Pool, weekdays Weekdays) *PgStore {
	return &PgStore{
		pool:     pool,
		weekdays: weekdays,
		psql:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EnsureSchema creates the slots table when it does not exist yet.
func (r *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create slots table: %w", err)
	}
	return nil
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var name, surname, patientID *string

	err := row.Scan(
		&s.Date,
		&s.Weekday,
		&s.Time,
		&s.Occupied,
		&name,
		&surname,
		&patientID,
		&s.Insurance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.PatientName = deref(name)
	s.PatientSurname = deref(surname)
	s.PatientID = deref(patientID)
	return &s, nil
}

func (r *PgStore) querySlots(ctx context.Context, q squirrel.SelectBuilder) ([]Slot, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgStore) selectSlots() squirrel.SelectBuilder {
	return r.psql.Select(slotColumns...).From("slots")
}

// Interface methods

func (r *PgStore) FindSlot(ctx context.Context, date, tm string) (*Slot, error) {
	query, args, err := r.selectSlots().
		Where(squirrel.Eq{"slot_date": date, "slot_time": tm}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find slot query: %w", err)
	}
	return scanSlot(r.pool.QueryRow(ctx, query, args...))
}

func (r *PgStore) Book(ctx context.Context, b Booking) error {
	label, err := r.weekdays.LabelFor(b.Date)
	if err != nil {
		return err
	}

	// The conflict branch only fires for free slots, so an occupied key
	// returns no row and the existing patient is kept.
	query, args, err := r.psql.Insert("slots").
		Columns(slotColumns...).
		Values(b.Date, label, b.Time, true, b.Name, b.Surname, b.PatientID, b.Insurance).
		Suffix(`ON CONFLICT (slot_date, slot_time) DO UPDATE SET
			occupied = true,
			patient_name = EXCLUDED.patient_name,
			patient_surname = EXCLUDED.patient_surname,
			patient_id = EXCLUDED.patient_id,
			insurance = EXCLUDED.insurance,
			updated_at = now()
		WHERE NOT slots.occupied
		RETURNING slot_date`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build book query: %w", err)
	}

	var date string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyOccupied
		}
		return fmt.Errorf("book slot: %w", err)
	}
	return nil
}

func (r *PgStore) Cancel(ctx context.Context, date, tm string) error {
	query, args, err := r.psql.Update("slots").
		Set("occupied", false).
		Set("patient_name", nil).
		Set("patient_surname", nil).
		Set("patient_id", nil).
		Set("insurance", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"slot_date": date, "slot_time": tm, "occupied": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cancel query: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("cancel slot: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgStore) ListOccupied(ctx context.Context) ([]Slot, error) {
	return r.querySlots(ctx, r.selectSlots().
		Where(squirrel.Eq{"occupied": true}).
		OrderBy("slot_date ASC", "slot_time ASC"))
}

func (r *PgStore) ListAvailable(ctx context.Context, weekday, date string) ([]Slot, error) {
	return r.querySlots(ctx, r.selectSlots().
		Where(squirrel.Eq{"occupied": false, "weekday": weekday, "slot_date": date}).
		OrderBy("slot_time ASC"))
}

func (r *PgStore) ListWithInsurance(ctx context.Context) ([]Slot, error) {
	return r.querySlots(ctx, r.selectSlots().
		Where(squirrel.Eq{"occupied": true}).
		Where(squirrel.NotEq{"insurance": nil}).
		Where(squirrel.NotEq{"insurance": ""}).
		OrderBy("slot_date ASC", "slot_time ASC"))
}

func (r *PgStore) DeleteBefore(ctx context.Context, date string) (int64, error) {
	query, args, err := r.psql.Delete("slots").
		Where(squirrel.Lt{"slot_date": date}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete query: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgStore) CountByDate(ctx context.Context, date string) (int64, error) {
	query, args, err := r.psql.Select("count(*)").
		From("slots").
		Where(squirrel.Eq{"slot_date": date}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertSlots copies a day of slots in one round trip. A unique violation
// means another generator already populated the date, which is fine.
func (r *PgStore) InsertSlots(ctx context.Context, slots []Slot) error {
	if len(slots) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, []any{s.Date, s.Weekday, s.Time, s.Occupied})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"slots"},
		[]string{"slot_date", "weekday", "slot_time", "occupied"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil
		}
		return err
	}
	return nil
}

func (r *PgStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
