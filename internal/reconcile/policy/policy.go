// Package policy turns a match result into a reconciliation decision and
// applies it. The engine is conservative: it never merges records
// automatically and never overwrites a protected identity field that already
// holds a value - it only warns.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/events"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/match"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/rowparser"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/tasks"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

// Decision names the reconciliation outcome for one row.
type Decision string

const (
	DecisionCreateNew           Decision = "create_new"
	DecisionUpdateExisting      Decision = "update_existing"
	DecisionDuplicateReview     Decision = "duplicate_review"
	DecisionRejected            Decision = "rejected"
	DecisionAcceptedWithWarning Decision = "accepted_with_warning"
)

// maxUpdateAttempts bounds the optimistic-concurrency retry loop. The person
// register is shared with interactive journeys, so a version conflict just
// means someone else wrote first; re-read and re-diff.
const maxUpdateAttempts = 3

// RowOutcome is what the batch driver records on the transaction ledger for
// one processed row.
type RowOutcome struct {
	Decision  Decision
	Status    ledger.RowStatus
	PersonID  *id.PersonID
	Duplicate bool
	Message   string
}

// Matcher is the slice of the matching engine the policy needs.
type Matcher interface {
	Match(ctx context.Context, rec rowparser.CandidateRecord) (match.Result, error)
}

type Service struct {
	matcher   Matcher
	persons   store.Store
	tasks     tasks.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(matcher Matcher, persons store.Store, taskStore tasks.Store, publisher events.Publisher, opts ...Option) (*Service, error) {
	if matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if persons == nil {
		return nil, fmt.Errorf("person store is required")
	}
	if taskStore == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("event publisher is required")
	}

	s := &Service{
		matcher:   matcher,
		persons:   persons,
		tasks:     taskStore,
		publisher: publisher,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Reconcile processes one parsed row end to end. The returned error is
// infrastructure only (store or publisher unavailable); every business
// outcome, including rejection, arrives as a RowOutcome.
func (s *Service) Reconcile(ctx context.Context, out rowparser.Outcome) (RowOutcome, error) {
	if !out.Valid() {
		return RowOutcome{
			Decision: DecisionRejected,
			Status:   ledger.RowFailure,
			Message:  out.Messages(),
		}, nil
	}

	rec := out.Record
	warnings := make([]string, 0, len(out.Warnings))
	for _, w := range out.Warnings {
		warnings = append(warnings, w.Message)
	}

	res, err := s.matcher.Match(ctx, rec)
	if err != nil {
		var deactivated *match.DeactivatedError
		if errors.As(err, &deactivated) {
			return RowOutcome{
				Decision: DecisionRejected,
				Status:   ledger.RowFailure,
				Message:  deactivated.Error(),
			}, nil
		}
		return RowOutcome{}, err
	}

	switch res.Confidence {
	case match.ConfidenceExact:
		return s.applyUpdate(ctx, rec, res.Persons[0], warnings)

	case match.ConfidenceTentative:
		if len(res.Persons) == 1 && samePerson(rec, res.Persons[0]) {
			return s.applyUpdate(ctx, rec, res.Persons[0], warnings)
		}
		return s.createPerson(ctx, rec, warnings, res.PersonIDs())

	default:
		return s.createPerson(ctx, rec, warnings, nil)
	}
}

// samePerson reports whether the single tentative candidate is the person
// the row is about: true when neither side holds a TRN that contradicts the
// other. TRNs are unique, so differing non-null TRNs can never be one person.
func samePerson(rec rowparser.CandidateRecord, p *models.Person) bool {
	return rec.TRN.IsZero() || p.TRN.IsZero() || rec.TRN == p.TRN
}

func (s *Service) createPerson(ctx context.Context, rec rowparser.CandidateRecord, warnings []string, candidates []id.PersonID) (RowOutcome, error) {
	var missing []string
	if rec.Forenames == "" {
		missing = append(missing, "Missing required field forename")
	}
	if rec.LastName == "" {
		missing = append(missing, "Missing required field surname")
	}
	if len(missing) > 0 {
		return RowOutcome{
			Decision: DecisionRejected,
			Status:   ledger.RowFailure,
			Message:  strings.Join(missing, "; "),
		}, nil
	}

	now := s.now().UTC()
	first, middle := models.SplitForenames(rec.Forenames)
	p := &models.Person{
		ID:                      id.NewPersonID(),
		TRN:                     rec.TRN,
		Gender:                  rec.Gender,
		FirstName:               first,
		MiddleName:              middle,
		LastName:                rec.LastName,
		DateOfBirth:             rec.DateOfBirth,
		NationalInsuranceNumber: rec.NationalInsuranceNumber,
		Status:                  models.StatusActive,
		CreatedByFeed:           true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if rec.DateOfDeath != nil {
		// A record arriving already deceased is never left active.
		p.DateOfDeath = rec.DateOfDeath
		p.Status = models.StatusDeactivated
	}

	if err := s.persons.Create(ctx, p); err != nil {
		return RowOutcome{}, fmt.Errorf("create person: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypePersonCreated,
		PersonID:   p.ID,
		TRN:        p.TRN,
		NewStatus:  p.Status,
		OccurredAt: now,
	}); err != nil {
		return RowOutcome{}, fmt.Errorf("publish person created: %w", err)
	}

	outcome := RowOutcome{
		Decision: DecisionCreateNew,
		Status:   ledger.RowSuccess,
		PersonID: &p.ID,
		Message:  strings.Join(warnings, "; "),
	}
	if len(warnings) > 0 {
		outcome.Decision = DecisionAcceptedWithWarning
		outcome.Status = ledger.RowWarning
	}

	if len(candidates) > 0 {
		task := &tasks.DuplicateReview{
			ID:           id.NewTaskID(),
			PersonID:     p.ID,
			CandidateIDs: candidates,
			Status:       tasks.StatusOpen,
			CreatedAt:    now,
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return RowOutcome{}, fmt.Errorf("create duplicate review task: %w", err)
		}
		outcome.Decision = DecisionDuplicateReview
		outcome.Duplicate = true
		s.logger.InfoContext(ctx, "duplicate review raised",
			"person_id", p.ID,
			"candidates", len(candidates),
		)
	}

	return outcome, nil
}

func (s *Service) applyUpdate(ctx context.Context, rec rowparser.CandidateRecord, matched *models.Person, warnings []string) (RowOutcome, error) {
	person := matched
	for attempt := 1; ; attempt++ {
		p := person.Clone()
		change := diff(rec, p, s.now().UTC())

		if !change.changed {
			status := ledger.RowSuccess
			decision := DecisionUpdateExisting
			all := append(append([]string(nil), warnings...), change.warnings...)
			if len(all) > 0 {
				status = ledger.RowWarning
				decision = DecisionAcceptedWithWarning
			}
			return RowOutcome{
				Decision: decision,
				Status:   status,
				PersonID: &person.ID,
				Message:  strings.Join(all, "; "),
			}, nil
		}

		err := s.persons.Update(ctx, p, person.Version)
		if errors.Is(err, sentinel.ErrConflict) {
			if attempt >= maxUpdateAttempts {
				return RowOutcome{}, fmt.Errorf("update person %s: conflict after %d attempts: %w", person.ID, attempt, err)
			}
			// Someone else wrote first; re-read and re-diff so the
			// protected-field check sees current values.
			fresh, gErr := s.persons.GetByID(ctx, person.ID)
			if gErr != nil {
				return RowOutcome{}, fmt.Errorf("re-read person %s: %w", person.ID, gErr)
			}
			person = fresh
			continue
		}
		if err != nil {
			return RowOutcome{}, fmt.Errorf("update person %s: %w", person.ID, err)
		}

		if change.statusChanged {
			if pErr := s.publisher.Publish(ctx, events.Event{
				Type:       events.TypePersonStatusChanged,
				PersonID:   p.ID,
				TRN:        p.TRN,
				OldStatus:  models.StatusActive,
				NewStatus:  models.StatusDeactivated,
				Reason:     "date of death received from feed",
				OccurredAt: s.now().UTC(),
			}); pErr != nil {
				return RowOutcome{}, fmt.Errorf("publish status change: %w", pErr)
			}
		}

		status := ledger.RowSuccess
		decision := DecisionUpdateExisting
		all := append(append([]string(nil), warnings...), change.warnings...)
		if len(all) > 0 {
			status = ledger.RowWarning
			decision = DecisionAcceptedWithWarning
		}
		return RowOutcome{
			Decision: decision,
			Status:   status,
			PersonID: &person.ID,
			Message:  strings.Join(all, "; "),
		}, nil
	}
}

// changeset is the explicit diff of incoming values against the stored
// person. Protected fields that already hold a value are never applied; the
// attempt is converted into a warning instead.
type changeset struct {
	changed       bool
	statusChanged bool
	warnings      []string
}

func diff(rec rowparser.CandidateRecord, p *models.Person, now time.Time) changeset {
	var cs changeset

	protect := func(field, old, incoming string, apply func()) {
		if incoming == "" || incoming == old {
			return
		}
		if old != "" {
			cs.warnings = append(cs.warnings,
				fmt.Sprintf("Attempted to update %s from %s to %s", field, old, incoming))
			return
		}
		apply()
		cs.changed = true
	}

	protect("trn", string(p.TRN), string(rec.TRN), func() { p.TRN = rec.TRN })
	protect("gender", string(p.Gender), string(rec.Gender), func() { p.Gender = rec.Gender })
	protect("lastname", p.LastName, rec.LastName, func() { p.LastName = rec.LastName })
	protect("national-insurance-number",
		string(p.NationalInsuranceNumber), string(rec.NationalInsuranceNumber),
		func() { p.NationalInsuranceNumber = rec.NationalInsuranceNumber })
	protect("date-of-birth",
		models.DateValue(p.DateOfBirth), models.DateValue(rec.DateOfBirth),
		func() { p.DateOfBirth = rec.DateOfBirth })

	// Forenames are not protected.
	if rec.Forenames != "" {
		first, middle := models.SplitForenames(rec.Forenames)
		if first != p.FirstName || middle != p.MiddleName {
			p.FirstName = first
			p.MiddleName = middle
			cs.changed = true
		}
	}

	// A newly reported death deactivates the person as a side effect.
	if rec.DateOfDeath != nil && p.DateOfDeath == nil {
		p.DateOfDeath = rec.DateOfDeath
		cs.changed = true
		if p.Status == models.StatusActive {
			p.Status = models.StatusDeactivated
			cs.statusChanged = true
		}
	}

	if cs.changed {
		p.UpdatedAt = now
	}
	return cs
}
