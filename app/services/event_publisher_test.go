package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	a := NewEvent(EventLeadCreated, map[string]uint{"lead_id": 1})
	b := NewEvent(EventLeadCreated, map[string]uint{"lead_id": 1})

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, EventLeadCreated, a.Type)
	assert.False(t, a.OccurredAt.IsZero())

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"lead.created"`)
	assert.Contains(t, string(raw), `"lead_id":1`)
}

func TestLogEventPublisher(t *testing.T) {
	p := NewLogEventPublisher()
	assert.NoError(t, p.Publish(t.Context(), EventLeadDeleted, map[string]uint{"lead_id": 9}))
	assert.Error(t, p.Publish(t.Context(), EventLeadDeleted, make(chan int)))
	assert.NoError(t, p.Close())
}
