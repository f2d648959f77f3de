package fields

import (
	"fmt"
	"time"
)

// feedDateLayout is the fixed 8-digit token the interchange feed uses.
const feedDateLayout = "20060102"

func parseFeedDate(raw, field string) (time.Time, *Error) {
	if len(raw) != 8 || !allDigits(raw) {
		return time.Time{}, invalidFormat(field, raw)
	}
	// time.Parse rejects impossible day/month combinations.
	d, err := time.Parse(feedDateLayout, raw)
	if err != nil {
		return time.Time{}, invalidFormat(field, raw)
	}
	return d.UTC(), nil
}

// ParseDateOfBirth parses a required yyyymmdd date of birth. A date after the
// processing date is rejected: nobody in the feed is born in the future.
func ParseDateOfBirth(raw string, now time.Time) (time.Time, *Error) {
	if raw == "" {
		return time.Time{}, missing("date of birth")
	}
	d, ferr := parseFeedDate(raw, "date of birth")
	if ferr != nil {
		return time.Time{}, ferr
	}
	if d.After(now) {
		return time.Time{}, &Error{
			Code:    CodeFutureDate,
			Field:   "date of birth",
			Message: fmt.Sprintf("Date of birth %s is in the future", raw),
		}
	}
	return d, nil
}

// ParseDateOfDeath parses an optional yyyymmdd date of death. A missing value
// means no death recorded and is not an error; the returned pointer is nil.
func ParseDateOfDeath(raw string, now time.Time) (*time.Time, *Error) {
	if raw == "" {
		return nil, nil
	}
	d, ferr := parseFeedDate(raw, "date of death")
	if ferr != nil {
		return nil, ferr
	}
	if d.After(now) {
		return nil, &Error{
			Code:    CodeFutureDate,
			Field:   "date of death",
			Message: fmt.Sprintf("Date of death %s is in the future", raw),
		}
	}
	return &d, nil
}
