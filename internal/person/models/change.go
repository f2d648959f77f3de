package models

import (
	"time"

	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// ChangedField names a tracked attribute in the change log. Only the fields
// the amend export cares about are tracked.
type ChangedField string

const (
	FieldLastName                ChangedField = "last_name"
	FieldDateOfBirth             ChangedField = "date_of_birth"
	FieldNationalInsuranceNumber ChangedField = "national_insurance_number"
)

// FieldChange is one entry in the append-only, time-ordered change log the
// amend export and name-history queries read from.
type FieldChange struct {
	PersonID   id.PersonID
	Field      ChangedField
	OldValue   string
	NewValue   string
	OccurredAt time.Time
}

// DateValue renders a nullable date the way the change log stores it.
func DateValue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("20060102")
}
