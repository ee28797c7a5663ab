package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUserUpdated(t *testing.T) {
	data := []byte(`{"type":"FAMILY_UPDATED","patient_id":"p1","patient_name":"Seema","before":["a@x.com"],"after":["a@x.com","b@x.com"],"occurred_at":"2024-05-01T10:00:00Z"}`)

	evt, err := DecodeUserUpdated(data)
	require.NoError(t, err)
	assert.Equal(t, EventTypeFamilyUpdated, evt.Type)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, evt.After)
	assert.Equal(t, 2024, evt.OccurredAt.Year())
}

func TestDecodeUserUpdated_Invalid(t *testing.T) {
	_, err := DecodeUserUpdated([]byte(`not json`))
	assert.Error(t, err)
}
