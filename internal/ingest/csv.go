// Package ingest turns uploaded contact CSVs into pipeline triggers.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/znz-systems/coldpipe/internal/contact"
)

// ErrDuplicateEmail marks a row whose email already appeared earlier in the
// same file. Only the first row for an email is queued.
var ErrDuplicateEmail = errors.New("duplicate email")

// RowError is a data row that failed validation. Row is the 1-based line
// number in the file, counting the header.
type RowError struct {
	Row int
	Err error
}

type Parsed struct {
	Contacts []contact.Fields
	Invalid  []RowError
	// Total counts non-blank data rows.
	Total int
}

// ParseCSV reads a contact export. Headers are trimmed, blank rows are
// skipped, and each remaining row is validated on its own. Later rows
// repeating an email are reported as invalid.
func ParseCSV(r io.Reader) (*Parsed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Parsed{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	out := &Parsed{}
	seen := make(map[string]int)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		fields := contact.FromRecord(header, rec)
		if len(fields) == 0 {
			continue
		}
		out.Total++
		if err := fields.Validate(); err != nil {
			out.Invalid = append(out.Invalid, RowError{Row: line, Err: err})
			continue
		}
		email := fields.NormalizedEmail()
		if first, ok := seen[email]; ok {
			out.Invalid = append(out.Invalid, RowError{Row: line, Err: fmt.Errorf("%w: first seen on row %d", ErrDuplicateEmail, first)})
			continue
		}
		seen[email] = line
		out.Contacts = append(out.Contacts, fields)
	}

	if len(out.Invalid) > 0 {
		slog.Warn("skipped invalid contact rows", "count", len(out.Invalid), "first_row", out.Invalid[0].Row, "first_error", out.Invalid[0].Err)
	}
	return out, nil
}
