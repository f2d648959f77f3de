package fields

import (
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// TRNLength is the accepted digit length for a teacher reference number.
const TRNLength = 7

// ParseTRN validates a teacher reference number from the feed. The value must
// be purely numeric and exactly seven digits. A missing value is an error
// because every import row is keyed on it.
func ParseTRN(raw string) (id.TRN, *Error) {
	if raw == "" {
		return "", missing("TRN")
	}
	if len(raw) != TRNLength || !allDigits(raw) {
		return "", invalidFormat("TRN", raw)
	}
	return id.TRN(raw), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
