// Package match resolves a candidate record to existing persons through a
// fixed sequence of match tiers. Tiers run strictly in order and the first
// tier yielding at least one person wins; later tiers never run.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/rowparser"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

// Confidence is the tier class of a match result.
type Confidence string

const (
	// ConfidenceExact is a TRN match: exactly one person.
	ConfidenceExact Confidence = "exact"
	// ConfidenceTentative is an attribute match; multiplicity is a
	// downstream duplicate-handling concern, not a confidence signal.
	ConfidenceTentative Confidence = "tentative"
	ConfidenceNone      Confidence = "none"
)

// Result is the outcome of running the tiers for one candidate row.
type Result struct {
	Confidence Confidence
	// Tier is the 1-based tier that produced the match, 0 for none.
	Tier    int
	Persons []*models.Person
}

func (r Result) PersonIDs() []id.PersonID {
	out := make([]id.PersonID, 0, len(r.Persons))
	for _, p := range r.Persons {
		out = append(out, p.ID)
	}
	return out
}

// DeactivatedError reports that the incoming TRN belongs to a deactivated
// person. This is a distinct row failure, not a normal match.
type DeactivatedError struct {
	TRN id.TRN
}

func (e *DeactivatedError) Error() string {
	return fmt.Sprintf("A deactivated record already exists for TRN %s", e.TRN)
}

// tier pairs an applicability predicate with the query it issues. Keeping
// tiers as data makes each one insertable and testable in isolation.
type tier struct {
	number  int
	applies func(rec rowparser.CandidateRecord) bool
	query   func(rec rowparser.CandidateRecord) store.Query
}

type Engine struct {
	persons store.Store
	logger  *slog.Logger
	tiers   []tier
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func New(persons store.Store, opts ...Option) (*Engine, error) {
	if persons == nil {
		return nil, fmt.Errorf("person store is required")
	}

	e := &Engine{
		persons: persons,
		logger:  slog.Default(),
		tiers:   attributeTiers(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// attributeTiers builds tiers 2-9. Tier 1 (TRN) is handled separately
// because it alone may match deactivated persons and alone yields Exact.
func attributeTiers() []tier {
	hasNino := func(r rowparser.CandidateRecord) bool { return !r.NationalInsuranceNumber.IsZero() }
	hasGender := func(r rowparser.CandidateRecord) bool { return r.Gender != "" }
	hasSurname := func(r rowparser.CandidateRecord) bool { return r.LastName != "" }
	hasForename := func(r rowparser.CandidateRecord) bool { return r.Forenames != "" }
	hasDOB := func(r rowparser.CandidateRecord) bool { return r.DateOfBirth != nil }

	nino := func(r rowparser.CandidateRecord) *id.NationalInsuranceNumber {
		v := r.NationalInsuranceNumber
		return &v
	}
	gender := func(r rowparser.CandidateRecord) *id.Gender {
		v := r.Gender
		return &v
	}
	surname := func(r rowparser.CandidateRecord) *string {
		v := r.LastName
		return &v
	}
	forename := func(r rowparser.CandidateRecord) *string {
		first, _ := models.SplitForenames(r.Forenames)
		return &first
	}
	dob := func(r rowparser.CandidateRecord) *time.Time { return r.DateOfBirth }

	return []tier{
		{
			number:  2,
			applies: all(hasNino, hasGender, hasSurname, hasDOB),
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{NationalInsuranceNumber: nino(r), Gender: gender(r), LastName: surname(r), DateOfBirth: dob(r)}
			},
		},
		{
			// Surname deliberately ignored to tolerate legal name
			// changes; applying the incoming surname afterwards is an
			// update subject to the protected-field rule.
			number:  3,
			applies: all(hasNino, hasGender, hasDOB),
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{NationalInsuranceNumber: nino(r), Gender: gender(r), DateOfBirth: dob(r)}
			},
		},
		{
			number:  4,
			applies: all(hasNino, hasGender),
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{NationalInsuranceNumber: nino(r), Gender: gender(r)}
			},
		},
		{
			number:  5,
			applies: all(hasNino, hasDOB),
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{NationalInsuranceNumber: nino(r), DateOfBirth: dob(r)}
			},
		},
		{
			number:  6,
			applies: hasNino,
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{NationalInsuranceNumber: nino(r)}
			},
		},
		{
			number:  7,
			applies: all(hasForename, hasSurname, hasDOB),
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{FirstName: forename(r), LastName: surname(r), DateOfBirth: dob(r)}
			},
		},
		{
			number:  8,
			applies: all(hasSurname, hasDOB),
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{LastName: surname(r), DateOfBirth: dob(r)}
			},
		},
		{
			number:  9,
			applies: hasDOB,
			query: func(r rowparser.CandidateRecord) store.Query {
				return store.Query{DateOfBirth: dob(r)}
			},
		},
	}
}

func all(preds ...func(rowparser.CandidateRecord) bool) func(rowparser.CandidateRecord) bool {
	return func(r rowparser.CandidateRecord) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Match runs the tiers for one candidate record. A *DeactivatedError is
// returned when the TRN resolves to a deactivated person; any other error is
// infrastructure.
func (e *Engine) Match(ctx context.Context, rec rowparser.CandidateRecord) (Result, error) {
	// Tier 1: exact TRN.
	if !rec.TRN.IsZero() {
		p, err := e.persons.GetByTRN(ctx, rec.TRN)
		switch {
		case err == nil:
			if p.Deactivated() {
				return Result{}, &DeactivatedError{TRN: rec.TRN}
			}
			return Result{Confidence: ConfidenceExact, Tier: 1, Persons: []*models.Person{p}}, nil
		case errors.Is(err, sentinel.ErrNotFound):
			// Fall through to the attribute tiers.
		default:
			return Result{}, fmt.Errorf("tier 1 lookup: %w", err)
		}
	}

	for _, t := range e.tiers {
		if !t.applies(rec) {
			continue
		}
		persons, err := e.persons.FindBy(ctx, t.query(rec))
		if err != nil {
			return Result{}, fmt.Errorf("tier %d lookup: %w", t.number, err)
		}
		if len(persons) == 0 {
			continue
		}
		e.logger.DebugContext(ctx, "tentative match",
			"tier", t.number,
			"candidates", len(persons),
		)
		return Result{Confidence: ConfidenceTentative, Tier: t.number, Persons: persons}, nil
	}

	return Result{Confidence: ConfidenceNone}, nil
}
