package models

import (
	"strings"
	"time"

	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// Status is the person record's lifecycle state.
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// Person is the register's view of one teacher identity. TRN, gender,
// surname, national insurance number, and date of birth are protected: once
// a non-null value exists, the batch engine never silently overwrites it.
type Person struct {
	ID                      id.PersonID
	TRN                     id.TRN
	Gender                  id.Gender
	FirstName               string
	MiddleName              string
	LastName                string
	DateOfBirth             *time.Time
	NationalInsuranceNumber id.NationalInsuranceNumber
	DateOfDeath             *time.Time
	Status                  Status
	CreatedByFeed           bool
	CreatedAt               time.Time
	UpdatedAt               time.Time

	// Version supports optimistic concurrency; the store bumps it on
	// every successful update.
	Version int
}

func (p *Person) Deactivated() bool { return p.Status == StatusDeactivated }

// Forenames joins first and middle names the way the interchange format
// expects them.
func (p *Person) Forenames() string {
	if p.MiddleName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.MiddleName
}

// SplitForenames splits a feed forenames field into first and middle names.
// The first whitespace-separated token is the first name; the remainder, if
// any, becomes the middle name.
func SplitForenames(forenames string) (first, middle string) {
	parts := strings.Fields(forenames)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// Clone returns a deep copy so store callers can mutate freely.
func (p *Person) Clone() *Person {
	cp := *p
	if p.DateOfBirth != nil {
		d := *p.DateOfBirth
		cp.DateOfBirth = &d
	}
	if p.DateOfDeath != nil {
		d := *p.DateOfDeath
		cp.DateOfDeath = &d
	}
	return &cp
}
