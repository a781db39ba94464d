// Package validate holds the format checks every date, time, name and
// identifier goes through before it reaches the slot store. The predicates
// never fail loudly; they only answer yes or no.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var ErrInvalidFormat = errors.New("invalid format")

var timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Date reports whether s is an ISO calendar date (YYYY-MM-DD) that exists.
func Date(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Time reports whether s is HH:MM on a 24-hour clock.
func Time(s string) bool {
	if !timePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// PersonName reports whether s is a non-empty run of letters.
func PersonName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Identifier reports whether s is a non-empty run of decimal digits.
func Identifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidFormat
}

// Fields collects failures for a group of checks and returns nil when all
// of them pass.
type Fields struct {
	failed []string
}

func (f *Fields) Check(ok bool, field, msg string) *Fields {
	if !ok {
		f.failed = append(f.failed, field+": "+msg)
	}
	return f
}

func (f *Fields) Err() error {
	if len(f.failed) == 0 {
		return nil
	}
	return &ValidationError{Fields: f.failed}
}

// Key checks a (date, time) slot key.
func Key(date, tm string) error {
	var f Fields
	f.Check(Date(date), "date", "must be YYYY-MM-DD").
		Check(Time(tm), "time", "must be HH:MM")
	return f.Err()
}
