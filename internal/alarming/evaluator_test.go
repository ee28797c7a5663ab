package alarming

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/database"
	"github.com/smukkama/matricare/internal/models"
)

type fakeAlertLog struct {
	mu       sync.Mutex
	nextID   int64
	inserted []database.AlertLog
	cleared  []int64
	fail     bool
}

func (f *fakeAlertLog) InsertAlertLog(ctx context.Context, a *database.AlertLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("db down")
	}
	f.nextID++
	a.AlertID = f.nextID
	f.inserted = append(f.inserted, *a)
	return nil
}

func (f *fakeAlertLog) UpdateAlertLogCleared(ctx context.Context, alertID int64, endTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, alertID)
	return nil
}

func newTestEvaluator(t *testing.T, rules []Rule) (*Evaluator, *fakeAlertLog, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := &fakeAlertLog{}
	e := NewEvaluator(rules, NewStateManager(client), log, zap.NewNop())
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, log, mr, &now
}

func patient(id, name string, v models.Vitals) models.PatientRecord {
	return models.PatientRecord{
		Patient: models.Patient{ID: id, Name: name},
		Week:    "30",
		Vitals:  &v,
	}
}

func normalVitals() models.Vitals {
	return models.Vitals{FetalHR: 140, MaternalHR: 80, BP: "118/76", Movement: 14}
}

func TestEvaluate_NormalVitalsNoAlerts(t *testing.T) {
	e, log, _, _ := newTestEvaluator(t, DefaultThresholds())

	alerts, err := e.Evaluate(context.Background(), []models.PatientRecord{patient("p1", "Asha", normalVitals())})
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.NotNil(t, alerts)
	assert.Empty(t, log.inserted)
}

func TestEvaluate_ImmediateTriggerAndClear(t *testing.T) {
	e, log, _, _ := newTestEvaluator(t, DefaultThresholds())
	ctx := context.Background()

	v := normalVitals()
	v.FetalHR = 187
	alerts, err := e.Evaluate(ctx, []models.PatientRecord{patient("p1", "Seema", v)})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "p1-fetal_hr_high", a.ID)
	assert.Equal(t, "CRITICAL", a.Type)
	assert.Equal(t, "red", a.Color)
	assert.Equal(t, "Seema - p1", a.Patient)
	assert.Equal(t, "Just now", a.Time)
	assert.Contains(t, a.Message, "187 bpm")
	assert.Equal(t, "187 bpm", a.FullDetails.VitalsAtAlert.FetalHR)
	assert.Equal(t, "118/76 mmHg", a.FullDetails.VitalsAtAlert.BloodPressure)
	assert.NotEmpty(t, a.FullDetails.RecommendedActions)
	assert.Len(t, a.FullDetails.AlertHistory, 1)
	require.Len(t, log.inserted, 1)
	assert.Equal(t, database.AlertStatusActive, log.inserted[0].Status)

	// Still breached: same alarm, no second log row
	alerts, err = e.Evaluate(ctx, []models.PatientRecord{patient("p1", "Seema", v)})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Len(t, alerts[0].FullDetails.AlertHistory, 2)
	assert.Len(t, log.inserted, 1)

	alerts, err = e.Evaluate(ctx, []models.PatientRecord{patient("p1", "Seema", normalVitals())})
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, []int64{1}, log.cleared)
}

func TestEvaluate_DurationGatesTrigger(t *testing.T) {
	rules := DefaultThresholds()[:1]
	rules[0].Duration = 2 * time.Minute
	e, log, mr, now := newTestEvaluator(t, rules)
	ctx := context.Background()

	v := normalVitals()
	v.FetalHR = 170
	p := []models.PatientRecord{patient("p1", "Asha", v)}

	alerts, err := e.Evaluate(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.True(t, mr.Exists("alarm_state:p1:fetal_hr_high"))

	*now = now.Add(3 * time.Minute)
	alerts, err = e.Evaluate(ctx, p)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "3 min ago", alerts[0].Time)
	assert.Len(t, log.inserted, 1)
}

func TestEvaluate_PendingClearsWithoutLog(t *testing.T) {
	rules := DefaultThresholds()[:1]
	rules[0].Duration = time.Hour
	e, log, mr, _ := newTestEvaluator(t, rules)
	ctx := context.Background()

	v := normalVitals()
	v.FetalHR = 170
	_, err := e.Evaluate(ctx, []models.PatientRecord{patient("p1", "Asha", v)})
	require.NoError(t, err)

	_, err = e.Evaluate(ctx, []models.PatientRecord{patient("p1", "Asha", normalVitals())})
	require.NoError(t, err)
	assert.False(t, mr.Exists("alarm_state:p1:fetal_hr_high"))
	assert.Empty(t, log.inserted)
	assert.Empty(t, log.cleared)
}

func TestEvaluate_SortsCriticalFirstAndSkipsMissingVitals(t *testing.T) {
	e, _, _, _ := newTestEvaluator(t, DefaultThresholds())

	warn := normalVitals()
	warn.Movement = 4
	crit := normalVitals()
	crit.BP = "150/95"

	patients := []models.PatientRecord{
		patient("p1", "Asha", warn),
		{Patient: models.Patient{ID: "p2", Name: "NoData"}},
		patient("p3", "Bela", crit),
	}
	alerts, err := e.Evaluate(context.Background(), patients)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "CRITICAL", alerts[0].Type)
	assert.Equal(t, "CRITICAL", alerts[1].Type)
	assert.Equal(t, "WARNING", alerts[2].Type)
	assert.Equal(t, "orange", alerts[2].Color)
}

func TestEvaluate_UnparseableBloodPressureIgnored(t *testing.T) {
	e, _, _, _ := newTestEvaluator(t, DefaultThresholds())

	v := normalVitals()
	v.BP = "n/a"
	alerts, err := e.Evaluate(context.Background(), []models.PatientRecord{patient("p1", "Asha", v)})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluate_LogFailureReported(t *testing.T) {
	e, log, _, _ := newTestEvaluator(t, DefaultThresholds())
	log.fail = true

	v := normalVitals()
	v.FetalHR = 90
	alerts, err := e.Evaluate(context.Background(), []models.PatientRecord{patient("p1", "Asha", v)})
	assert.Error(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluate_RedisDown(t *testing.T) {
	e, _, mr, _ := newTestEvaluator(t, DefaultThresholds())
	mr.Close()

	_, err := e.Evaluate(context.Background(), []models.PatientRecord{patient("p1", "Asha", normalVitals())})
	assert.Error(t, err)
}

func TestStateManager_GetAllStates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sm := NewStateManager(client)
	ctx := context.Background()

	require.NoError(t, sm.SetState(ctx, "p1", "fetal_hr_high", &AlarmState{Status: AlarmStateActive}))
	require.NoError(t, sm.SetState(ctx, "p2", "bp_systolic_high", &AlarmState{Status: AlarmStatePending}))
	mr.Set("unrelated", "x")

	states, err := sm.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
	assert.Equal(t, AlarmStateActive, states["alarm_state:p1:fetal_hr_high"].Status)

	st, err := sm.GetState(ctx, "p9", "none")
	require.NoError(t, err)
	assert.Equal(t, AlarmStateClear, st.Status)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Just now", humanize(30*time.Second))
	assert.Equal(t, "5 min ago", humanize(5*time.Minute))
	assert.Equal(t, "2 hr ago", humanize(150*time.Minute))
}

func TestAppendHistoryBounded(t *testing.T) {
	var h []string
	for i := 0; i < 15; i++ {
		h = appendHistory(h, string(rune('a'+i)))
	}
	assert.Len(t, h, maxHistory)
	assert.Equal(t, "f", h[0])
}
