package aggregation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/matricare/internal/models"
)

func TestEmptySnapshot(t *testing.T) {
	s := EmptySnapshot()
	assert.True(t, s.IsEmpty())

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []any{}, decoded["stats"])
	assert.Equal(t, []any{}, decoded["patients"])
	assert.Equal(t, []any{}, decoded["alerts"])
	assert.Equal(t, []any{}, decoded["maternalVitals"])
	assert.Equal(t, map[string]any{"labels": []any{}, "data": []any{}}, decoded["fetalHR"])
}

func TestBuildSnapshot_Stats(t *testing.T) {
	recs := Merge([]models.VitalsRow{
		{PregnancyWeeks: 30, FetalHeartRate: 150, MaternalHeartRate: 90, BloodPressure: "130/85", FetalMovement: 20},
		{PregnancyWeeks: 22, FetalHeartRate: 140, MaternalHeartRate: 80, BloodPressure: "110/75", FetalMovement: 40},
	}, patients("Seema", "Bela", "Chitra"))
	alerts := []models.Alert{{ID: "1"}}

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := BuildSnapshot(recs, alerts, now)

	require.Len(t, s.Stats, 4)
	assert.Equal(t, "3", s.Stats[0].Value)
	assert.Equal(t, "1", s.Stats[1].Value)
	assert.Equal(t, "33.3% of total", s.Stats[1].Trend)
	assert.Equal(t, "2", s.Stats[2].Value)
	assert.Equal(t, "1", s.Stats[3].Value)
	assert.False(t, s.IsEmpty())
	assert.Equal(t, now, s.UpdatedAt)

	assert.Equal(t, []string{"Seema", "Bela", "Chitra"}, s.FetalMovement.Labels)
	assert.Equal(t, []float64{20, 40, 20}, s.FetalMovement.Data)
	assert.Equal(t, []float64{150, 140, 150}, s.FetalHR.Data)

	require.Len(t, s.MaternalVitals, 2)
	assert.Equal(t, "123/82", s.MaternalVitals[0].Value)
	assert.Equal(t, "87 bpm", s.MaternalVitals[1].Value)
}

func TestBuildSnapshot_NoVitals(t *testing.T) {
	s := BuildSnapshot(Merge(nil, patients("a")), nil, time.Now())

	assert.Equal(t, "--", s.MaternalVitals[0].Value)
	assert.Empty(t, s.FetalHR.Data)
	assert.NotNil(t, s.Alerts)
	assert.Equal(t, "0", s.Stats[3].Value)
}
