package fallback

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// journal is an append-only file of JSON records, one per line.
type journal[T any] struct {
	path string
}

func (j journal[T]) append(rec T) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", j.path, err)
	}

	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", j.path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", j.path, err)
	}
	return f.Close()
}

// RejectedLine is a line of a journal that does not decode as a record.
type RejectedLine struct {
	Line  int    `json:"line"`
	Raw   string `json:"raw"`
	Error string `json:"error"`
}

// readAll returns every record in file order plus the lines that could not
// be decoded. A missing file reads as empty. Lines have no length limit.
func (j journal[T]) readAll() ([]T, []RejectedLine, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil, nil
		}
		return nil, nil, fmt.Errorf("open %s: %w", j.path, err)
	}
	defer f.Close()

	records := make([]T, 0)
	var rejected []RejectedLine
	r := bufio.NewReader(f)

	lineNo := 0
	for {
		raw, readErr := r.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, nil, fmt.Errorf("read %s: %w", j.path, readErr)
		}
		if len(raw) > 0 {
			lineNo++
			line := bytes.TrimSpace(raw)
			if len(line) > 0 {
				var rec T
				if err := json.Unmarshal(line, &rec); err != nil {
					rejected = append(rejected, RejectedLine{
						Line:  lineNo,
						Raw:   string(line),
						Error: err.Error(),
					})
				} else {
					records = append(records, rec)
				}
			}
		}
		if readErr != nil {
			break
		}
	}

	return records, rejected, nil
}

func (j journal[T]) remove() error {
	if err := os.Remove(j.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", j.path, err)
	}
	return nil
}
