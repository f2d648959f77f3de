package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

func TestEventWireFormat(t *testing.T) {
	ev := Event{
		Type:       TypePersonCreated,
		PersonID:   id.NewPersonID(),
		TRN:        "1234567",
		NewStatus:  models.StatusActive,
		OccurredAt: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	t.Run("person id renders as a uuid string", func(t *testing.T) {
		var raw map[string]any
		require.NoError(t, json.Unmarshal(payload, &raw))
		assert.Equal(t, ev.PersonID.String(), raw["person_id"],
			"consumers read the id as a uuid, not a byte array")
	})

	t.Run("round trip", func(t *testing.T) {
		var got Event
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, ev.PersonID, got.PersonID)
		assert.Equal(t, ev.Type, got.Type)
		assert.Equal(t, ev.TRN, got.TRN)
		assert.True(t, ev.OccurredAt.Equal(got.OccurredAt))
	})

	t.Run("empty optional fields are omitted", func(t *testing.T) {
		minimal, err := json.Marshal(Event{Type: TypePersonCreated, PersonID: ev.PersonID})
		require.NoError(t, err)
		assert.NotContains(t, string(minimal), "old_status")
		assert.NotContains(t, string(minimal), "reason")
	})
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(), Event{Type: TypePersonCreated}))
	require.NoError(t, r.Publish(context.Background(), Event{Type: TypePersonStatusChanged}))

	got := r.Events()
	require.Len(t, got, 2)
	assert.Equal(t, TypePersonCreated, got[0].Type)
	assert.Equal(t, TypePersonStatusChanged, got[1].Type)

	got[0].Type = "mutated"
	assert.Equal(t, TypePersonCreated, r.Events()[0].Type)
}
