package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed IDs prevent accidental cross-entity assignment at compile time.
type (
	PersonID      uuid.UUID
	TransactionID uuid.UUID
	RecordID      uuid.UUID
	TaskID        uuid.UUID
)

func NewPersonID() PersonID           { return PersonID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewRecordID() RecordID           { return RecordID(uuid.New()) }
func NewTaskID() TaskID               { return TaskID(uuid.New()) }

func (id PersonID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TaskID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

func (id PersonID) String() string      { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id RecordID) String() string      { return uuid.UUID(id).String() }
func (id TaskID) String() string        { return uuid.UUID(id).String() }

// Defined types do not inherit uuid.UUID's text marshaling; without these the
// ids render as 16-element byte arrays in JSON payloads.
func (id PersonID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id TaskID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }

func (id *PersonID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("person id %q is not a valid uuid: %w", b, err)
	}
	*id = PersonID(u)
	return nil
}

func (id *TransactionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("transaction id %q is not a valid uuid: %w", b, err)
	}
	*id = TransactionID(u)
	return nil
}

func (id *RecordID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("record id %q is not a valid uuid: %w", b, err)
	}
	*id = RecordID(u)
	return nil
}

func (id *TaskID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("task id %q is not a valid uuid: %w", b, err)
	}
	*id = TaskID(u)
	return nil
}

// ParsePersonID validates and converts a string to a PersonID.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParsePersonID(s string) (PersonID, error) {
	if s == "" {
		return PersonID{}, fmt.Errorf("person id is empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return PersonID{}, fmt.Errorf("person id %q is not a valid uuid: %w", s, err)
	}
	if u == uuid.Nil {
		return PersonID{}, fmt.Errorf("person id is the nil uuid")
	}
	return PersonID(u), nil
}
