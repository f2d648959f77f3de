// Package rowparser turns one semicolon-delimited feed line into a structured
// candidate record, accumulating field-level validation errors instead of
// stopping at the first failure.
package rowparser

import (
	"strings"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/fields"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// The historical feed pads every row to this many semicolon-delimited
// columns; only the first eight carry data.
const ColumnCount = 25

// Column positions in the feed row.
const (
	colTRN = iota
	colGender
	colLastName
	colForenames
	_ // unused historical column
	colDateOfBirth
	colNationalInsuranceNumber
	colDateOfDeath
)

// CandidateRecord is the parsed form of one incoming row. Immutable once
// built; zero values mean the field was absent. Raw keeps the verbatim line
// for the transaction record.
type CandidateRecord struct {
	TRN                     id.TRN
	Gender                  id.Gender
	LastName                string
	Forenames               string
	DateOfBirth             *time.Time
	NationalInsuranceNumber id.NationalInsuranceNumber
	DateOfDeath             *time.Time
	Raw                     string
}

// Outcome pairs the candidate record with whatever validation failed.
// Errors are fatal to the row; Warnings are attached but do not block
// record creation (currently only a malformed national insurance number).
type Outcome struct {
	Record   CandidateRecord
	Errors   []*fields.Error
	Warnings []*fields.Error
}

// Valid reports whether the row may proceed to matching.
func (o Outcome) Valid() bool { return len(o.Errors) == 0 }

// Messages joins every fatal error into the human-readable text stored on
// the transaction record. Multiple failures are reported together, not just
// the first.
func (o Outcome) Messages() string {
	msgs := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Parser parses feed rows against an injected processing clock so
// future-date checks are deterministic under test.
type Parser struct {
	now func() time.Time
}

type Option func(*Parser)

func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseRow parses one delimited line. Missing trailing columns read as empty
// values, which surface as missing-field errors rather than a distinct
// malformed-row failure.
func (p *Parser) ParseRow(line string) Outcome {
	cols := strings.Split(line, ";")
	col := func(i int) string {
		if i >= len(cols) {
			return ""
		}
		return strings.TrimSpace(cols[i])
	}

	now := p.now().UTC()
	out := Outcome{Record: CandidateRecord{Raw: line}}
	collect := func(e *fields.Error) {
		if e != nil {
			out.Errors = append(out.Errors, e)
		}
	}

	trn, err := fields.ParseTRN(col(colTRN))
	collect(err)
	out.Record.TRN = trn

	gender, err := fields.ParseGender(col(colGender))
	collect(err)
	out.Record.Gender = gender

	out.Record.LastName = col(colLastName)
	out.Record.Forenames = col(colForenames)

	dob, err := fields.ParseDateOfBirth(col(colDateOfBirth), now)
	collect(err)
	if err == nil {
		out.Record.DateOfBirth = &dob
	}

	nino, err := fields.ParseNationalInsuranceNumber(col(colNationalInsuranceNumber))
	if err != nil {
		// Non-fatal: the message travels with the row, the field is
		// stored as absent.
		out.Warnings = append(out.Warnings, err)
	}
	out.Record.NationalInsuranceNumber = nino

	dod, err := fields.ParseDateOfDeath(col(colDateOfDeath), now)
	collect(err)
	out.Record.DateOfDeath = dod

	return out
}
