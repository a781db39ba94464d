package main

import (
	"strings"
	"unicode"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

var insurers = []string{
	"OSDE",
	"Swiss Medical",
	"Galeno",
	"Medife",
	"IOMA",
	"PAMI",
}

// fakeBooking makes a patient that passes the desk's field checks: letters
// only in names, an 8-digit identifier, and insurance about half the time.
func fakeBooking(f *gofakeit.Faker, s slot.Slot) slot.Booking {
	b := slot.Booking{
		Date:      s.Date,
		Time:      s.Time,
		Name:      lettersOnly(f.FirstName(), "Ana"),
		Surname:   lettersOnly(f.LastName(), "Lopez"),
		PatientID: f.Numerify("########"),
	}
	if f.Bool() {
		ins := f.RandomString(insurers)
		b.Insurance = &ins
	}
	return b
}

// lettersOnly drops anything that is not a letter ("O'Neil" becomes
// "ONeil"), falling back when nothing is left.
func lettersOnly(s, fallback string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, s)
	if out == "" {
		return fallback
	}
	return out
}
