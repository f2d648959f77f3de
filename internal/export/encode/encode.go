// Package encode renders outgoing person records into the legacy positional
// interchange format. The downstream mainframe consumer reads byte
// positions, not delimiters: every row is exactly RowWidth characters and a
// mismatch is a programming defect, not a data condition.
package encode

import (
	"fmt"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/fields"
)

// RowWidth is the fixed interchange row width.
const RowWidth = 86

// 8-character record type codes occupying the final positional slot.
const (
	CodeNewRecord  = "NEWREC  "
	CodeAmendDOB   = "AMDDOB  "
	CodeAmendNino  = "AMDNINO "
	CodeNameChange = "NAMECHG "
)

// DOBLayout is the ddMMyy rendering of a date of birth in export rows.
const DOBLayout = "020106"

func dobSlot(d *time.Time, width int) string {
	if d == nil {
		return fields.Spaces(width)
	}
	return fields.FixedWidth(d.Format(DOBLayout), width)
}

func checkWidth(row string) (string, error) {
	if len(row) != RowWidth {
		return "", fmt.Errorf("encoded row is %d characters, want %d", len(row), RowWidth)
	}
	return row, nil
}

// NewPersonRow renders the new-record layout. hadPriorSurname drives the
// single-character prior-surname flag.
func NewPersonRow(p *models.Person, hadPriorSurname bool) (string, error) {
	flag := " "
	if hadPriorSurname {
		flag = "1"
	}
	row := fields.FixedWidth(string(p.TRN), 7) +
		fields.GenderExportCode(p.Gender) +
		fields.Spaces(9) +
		dobSlot(p.DateOfBirth, 6) +
		" " +
		fields.FixedWidth(p.LastName, 17) +
		flag +
		fields.FixedWidth(p.Forenames(), 35) +
		" " +
		CodeNewRecord
	return checkWidth(row)
}

// AmendDOBRow renders the amended layout for a date-of-birth change. The
// date slot carries ddMMyy followed by a literal asterisk; the national
// insurance slot stays blank.
func AmendDOBRow(p *models.Person) (string, error) {
	row := fields.FixedWidth(string(p.TRN), 7) +
		fields.GenderExportCode(p.Gender) +
		"//" +
		fields.FixedWidth(p.LastName, 6) +
		" " +
		dobSlot(p.DateOfBirth, 6) + "*" +
		" " +
		fields.Spaces(9) +
		fields.Spaces(44) +
		CodeAmendDOB
	return checkWidth(row)
}

// AmendNinoRow renders the amended layout for a national-insurance-number
// change; the date slot stays blank.
func AmendNinoRow(p *models.Person) (string, error) {
	row := fields.FixedWidth(string(p.TRN), 7) +
		fields.GenderExportCode(p.Gender) +
		"//" +
		fields.FixedWidth(p.LastName, 6) +
		" " +
		fields.Spaces(7) +
		" " +
		fields.FixedWidth(string(p.NationalInsuranceNumber), 9) +
		fields.Spaces(44) +
		CodeAmendNino
	return checkWidth(row)
}

// PreviousSurnameRow renders the name-change layout. previousSurname is the
// surname held immediately before the person's most recent change, not the
// oldest one.
func PreviousSurnameRow(p *models.Person, previousSurname string) (string, error) {
	row := fields.FixedWidth(string(p.TRN), 7) +
		fields.GenderExportCode(p.Gender) +
		fields.Spaces(9) +
		fields.FixedWidth(previousSurname, 54) +
		fields.Spaces(7) +
		CodeNameChange
	return checkWidth(row)
}

// Kind selects the export file flavor for naming.
type Kind string

const (
	KindNew   Kind = "New"
	KindAmend Kind = "Amend"
)

// FileName builds the interchange file name from the batch's processing
// clock, e.g. Reg01_DTR_20240131_153000_New.txt.
func FileName(kind Kind, at time.Time) string {
	return fmt.Sprintf("Reg01_DTR_%s_%s_%s.txt", at.Format("20060102"), at.Format("150405"), kind)
}

// PreviousSurname extracts the value held immediately before the most recent
// change from an oldest-first surname history: for changes A->B->C it
// returns B. Empty history returns "", false.
func PreviousSurname(history []models.FieldChange) (string, bool) {
	if len(history) == 0 {
		return "", false
	}
	return history[len(history)-1].OldValue, true
}
