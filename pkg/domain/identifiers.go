package domain

// TRN is the teacher reference number, the register's unique natural key.
// Always exactly seven digits once parsed.
type TRN string

func (t TRN) IsZero() bool { return t == "" }

// NationalInsuranceNumber holds a canonicalized national insurance number:
// two upper-case letters, six digits, one upper-case letter, no whitespace.
type NationalInsuranceNumber string

func (n NationalInsuranceNumber) IsZero() bool { return n == "" }
