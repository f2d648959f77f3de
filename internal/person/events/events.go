// Package events defines the outbound domain events the notification
// collaborator consumes. Events are emitted once per affected person per
// batch run.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

type Type string

const (
	TypePersonCreated       Type = "person_created"
	TypePersonStatusChanged Type = "person_status_changed"
)

type Event struct {
	Type       Type          `json:"type"`
	PersonID   id.PersonID   `json:"person_id"`
	TRN        id.TRN        `json:"trn,omitempty"`
	OldStatus  models.Status `json:"old_status,omitempty"`
	NewStatus  models.Status `json:"new_status,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Publisher delivers domain events to the notification collaborator.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Recorder keeps published events in memory. Used in tests and when no
// broker is configured.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

var _ Publisher = (*Recorder)(nil)
