// Package menu is the receptionist's line-oriented console. It reads one
// answer per line, re-asks until every field passes its format check, and
// hands the validated values to the booking service.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-scheduling/internal/booking"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
	"github.com/hackgods/clinic-slot-scheduling/internal/validate"
)

const banner = `
1) Assign slot
2) Cancel slot
3) List occupied slots
4) List slots with insurance
5) List available slots
6) Exit
7) Clear offline queue
`

type Menu struct {
	svc *booking.Service
	in  *bufio.Scanner
	out io.Writer
	log *zap.Logger
}

func New(svc *booking.Service, in io.Reader, out io.Writer, log *zap.Logger) *Menu {
	return &Menu{
		svc: svc,
		in:  bufio.NewScanner(in),
		out: out,
		log: log,
	}
}

// Run loops until the operator picks Exit or input ends.
func (m *Menu) Run(ctx context.Context) error {
	if !m.svc.Online() {
		m.printf("The database is unreachable. Bookings will be saved locally and applied on the next start.\n")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.printf("%s", banner)
		choice, err := m.readLine("Option: ")
		if err != nil {
			return eofIsExit(err)
		}

		switch choice {
		case "1":
			err = m.assign(ctx)
		case "2":
			err = m.cancel(ctx)
		case "3":
			err = m.listOccupied(ctx)
		case "4":
			err = m.listInsurance(ctx)
		case "5":
			err = m.listAvailable(ctx)
		case "6":
			m.printf("Goodbye.\n")
			return nil
		case "7":
			err = m.clearQueue()
		default:
			m.printf("Unknown option %q.\n", choice)
			continue
		}
		if err != nil {
			return eofIsExit(err)
		}
	}
}

func (m *Menu) assign(ctx context.Context) error {
	var b slot.Booking
	var err error

	if b.Date, err = m.ask("Date (YYYY-MM-DD): ", validate.Date, "Use YYYY-MM-DD with a real calendar date."); err != nil {
		return err
	}
	if b.Time, err = m.ask("Time (HH:MM): ", validate.Time, "Use two-digit 24-hour HH:MM."); err != nil {
		return err
	}
	if b.Name, err = m.ask("Name: ", validate.PersonName, "Letters only."); err != nil {
		return err
	}
	if b.Surname, err = m.ask("Surname: ", validate.PersonName, "Letters only."); err != nil {
		return err
	}
	if b.PatientID, err = m.ask("Patient ID: ", validate.Identifier, "Digits only."); err != nil {
		return err
	}
	insurance, err := m.readLine("Insurance (empty for none): ")
	if err != nil {
		return err
	}
	if insurance != "" {
		b.Insurance = &insurance
	}

	outcome, err := m.svc.Book(ctx, b)
	if err != nil {
		m.report(err)
		return nil
	}
	switch outcome {
	case booking.OutcomeQueued:
		m.printf("Database unreachable: booking saved locally, it will be applied on the next start.\n")
	default:
		m.printf("Slot assigned.\n")
	}
	return nil
}

func (m *Menu) cancel(ctx context.Context) error {
	date, tm, err := m.askKey()
	if err != nil {
		return err
	}
	if err := m.svc.Cancel(ctx, date, tm); err != nil {
		m.report(err)
		return nil
	}
	m.printf("Booking cancelled.\n")
	return nil
}

func (m *Menu) listOccupied(ctx context.Context) error {
	slots, err := m.svc.ListOccupied(ctx)
	if err != nil {
		m.report(err)
		return nil
	}
	m.printOccupied("Occupied slots", slots)
	return nil
}

func (m *Menu) listInsurance(ctx context.Context) error {
	slots, err := m.svc.ListWithInsurance(ctx)
	if err != nil {
		m.report(err)
		return nil
	}
	m.printOccupied("Slots with insurance", slots)
	return nil
}

func (m *Menu) listAvailable(ctx context.Context) error {
	weekday, err := m.ask("Weekday: ", func(s string) bool { return s != "" }, "Enter a weekday name.")
	if err != nil {
		return err
	}
	date, err := m.ask("Date (YYYY-MM-DD): ", validate.Date, "Use YYYY-MM-DD with a real calendar date.")
	if err != nil {
		return err
	}

	slots, err := m.svc.ListAvailable(ctx, weekday, date)
	if err != nil {
		m.report(err)
		return nil
	}
	if len(slots) == 0 {
		m.printf("No available slots for %s %s.\n", weekday, date)
		return nil
	}

	m.printf("Available slots for %s %s:\n", weekday, date)
	for _, s := range slots {
		m.printf("  %s\n", s.Time)
	}
	return nil
}

func (m *Menu) clearQueue() error {
	n, err := m.svc.PendingCount()
	if err != nil {
		m.report(err)
		return nil
	}
	if n == 0 {
		m.printf("The offline queue is empty.\n")
		return nil
	}

	answer, err := m.readLine(fmt.Sprintf("Discard %d pending booking(s)? (y/N): ", n))
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") {
		m.printf("Kept.\n")
		return nil
	}
	if err := m.svc.ClearPending(); err != nil {
		m.report(err)
		return nil
	}
	m.printf("Offline queue cleared.\n")
	return nil
}

func (m *Menu) askKey() (string, string, error) {
	date, err := m.ask("Date (YYYY-MM-DD): ", validate.Date, "Use YYYY-MM-DD with a real calendar date.")
	if err != nil {
		return "", "", err
	}
	tm, err := m.ask("Time (HH:MM): ", validate.Time, "Use two-digit 24-hour HH:MM.")
	if err != nil {
		return "", "", err
	}
	return date, tm, nil
}

// ask re-prompts until ok accepts the answer.
func (m *Menu) ask(prompt string, ok func(string) bool, hint string) (string, error) {
	for {
		v, err := m.readLine(prompt)
		if err != nil {
			return "", err
		}
		if ok(v) {
			return v, nil
		}
		m.printf("Invalid value. %s\n", hint)
	}
}

func (m *Menu) readLine(prompt string) (string, error) {
	m.printf("%s", prompt)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func (m *Menu) printOccupied(title string, slots []slot.Slot) {
	if len(slots) == 0 {
		m.printf("%s: none.\n", title)
		return
	}

	m.printf("%s:\n", title)
	tw := tabwriter.NewWriter(m.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tTIME\tPATIENT\tID\tINSURANCE")
	for _, s := range slots {
		insurance := "-"
		if s.Insurance != nil && *s.Insurance != "" {
			insurance = *s.Insurance
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
			s.Date, s.Weekday, s.Time, s.PatientName, s.PatientSurname, s.PatientID, insurance)
	}
	_ = tw.Flush()
}

func (m *Menu) report(err error) {
	var verr *validate.ValidationError
	switch {
	case errors.Is(err, slot.ErrAlreadyOccupied):
		m.printf("That slot is already taken.\n")
	case errors.Is(err, slot.ErrNotFound):
		m.printf("No booking found for that date and time.\n")
	case errors.Is(err, slot.ErrStoreUnreachable):
		m.printf("Not available: the database was unreachable at startup.\n")
	case errors.As(err, &verr):
		m.printf("Invalid input: %s\n", strings.Join(verr.Fields, "; "))
	default:
		m.log.Error("menu action failed", zap.Error(err))
		m.printf("Something went wrong: %v\n", err)
	}
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

func eofIsExit(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
