package fields

import (
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// Feed gender codes. Anything outside this set is rejected.
var genderCodes = map[string]id.Gender{
	"0": id.GenderNotAvailable,
	"1": id.GenderMale,
	"2": id.GenderFemale,
	"3": id.GenderOther,
}

// ParseGender maps a numeric feed code onto a gender value.
func ParseGender(raw string) (id.Gender, *Error) {
	if raw == "" {
		return "", missing("gender")
	}
	g, ok := genderCodes[raw]
	if !ok {
		return "", invalidValue("gender", raw)
	}
	return g, nil
}

// GenderExportCode renders the single-character positional gender code.
// Only male and female have a code; every other variant, including
// not-available, occupies the slot with a blank.
func GenderExportCode(g id.Gender) string {
	switch g {
	case id.GenderMale:
		return "M"
	case id.GenderFemale:
		return "F"
	default:
		return " "
	}
}
