package aggregation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/matricare/internal/models"
)

func record(id string, fetal float64) models.PatientRecord {
	return models.PatientRecord{
		Patient: models.Patient{ID: id, Name: id},
		Vitals:  &models.Vitals{FetalHR: fetal, MaternalHR: 80, BP: "120/80", Movement: 30},
	}
}

func assertParallel(t *testing.T, h models.PatientHistory) {
	t.Helper()
	n := len(h.Timestamps)
	assert.Len(t, h.FetalHR, n)
	assert.Len(t, h.MaternalHR, n)
	assert.Len(t, h.BP, n)
	assert.Len(t, h.Movement, n)
}

func TestUpdateHistory_FifteenPushes(t *testing.T) {
	var h models.History
	for i := 1; i <= 15; i++ {
		h = UpdateHistory(h, []models.PatientRecord{record("p", float64(i))}, fmt.Sprintf("push-%d", i))
		assertParallel(t, h["p"])
		assert.LessOrEqual(t, h["p"].Len(), HistoryCapacity)
	}

	got := h["p"]
	require.Equal(t, 11, got.Len())
	assert.Equal(t, 5.0, got.FetalHR[0])
	assert.Equal(t, "push-5", got.Timestamps[0])
	assert.Equal(t, 15.0, got.FetalHR[10])
}

func TestUpdateHistory_OnlyFirstThree(t *testing.T) {
	recs := []models.PatientRecord{record("a", 1), record("b", 2), record("c", 3), record("d", 4)}

	h := UpdateHistory(nil, recs, "10:00")

	assert.Len(t, h, 3)
	assert.NotContains(t, h, "d")
}

func TestUpdateHistory_DoesNotMutatePrevious(t *testing.T) {
	prev := UpdateHistory(nil, []models.PatientRecord{record("a", 1)}, "10:00")
	prevCopy := prev["a"]

	next := UpdateHistory(prev, []models.PatientRecord{record("a", 2)}, "10:05")

	assert.Equal(t, 1, prev["a"].Len())
	assert.Equal(t, prevCopy, prev["a"])
	assert.Equal(t, 2, next["a"].Len())

	next["a"].FetalHR[0] = 999
	assert.Equal(t, 1.0, prev["a"].FetalHR[0])
}

func TestUpdateHistory_CarriesUntrackedEntries(t *testing.T) {
	prev := UpdateHistory(nil, []models.PatientRecord{record("gone", 1)}, "10:00")

	next := UpdateHistory(prev, []models.PatientRecord{record("a", 2)}, "10:05")

	assert.Equal(t, 1, next["gone"].Len())
	assert.Equal(t, 1, next["a"].Len())
}

func TestUpdateHistory_SkipsPatientsWithoutVitals(t *testing.T) {
	rec := record("a", 1)
	rec.Vitals = nil

	h := UpdateHistory(nil, []models.PatientRecord{rec}, "10:00")

	assert.Empty(t, h)
}

func TestTimestampLabel(t *testing.T) {
	assert.Equal(t, "07:04", TimestampLabel(time.Date(2024, 1, 1, 7, 4, 59, 0, time.UTC)))
}
