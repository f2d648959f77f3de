package fields

import (
	"regexp"
	"strings"

	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

var ninoPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{6}[A-Z]$`)

// ParseNationalInsuranceNumber canonicalizes a national insurance number:
// two letters, six digits, one trailing letter, case-insensitive, with any
// embedded whitespace ignored. Callers treat a failure as non-fatal - the
// message is attached to the row and the field stored as absent.
func ParseNationalInsuranceNumber(raw string) (id.NationalInsuranceNumber, *Error) {
	if raw == "" {
		return "", nil
	}
	compact := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if !ninoPattern.MatchString(compact) {
		return "", invalidFormat("national insurance number", raw)
	}
	return id.NationalInsuranceNumber(compact), nil
}
