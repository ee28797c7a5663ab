package alarming

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/database"
	"github.com/smukkama/matricare/internal/models"
)

// AlertLog persists alert lifecycle transitions. *database.DB implements it.
type AlertLog interface {
	InsertAlertLog(ctx context.Context, alert *database.AlertLog) error
	UpdateAlertLogCleared(ctx context.Context, alertID int64, endTime time.Time) error
}

// Evaluator evaluates patient vitals against thresholds and manages alarm state
type Evaluator struct {
	rules        []Rule
	stateManager *StateManager
	alertLog     AlertLog
	logger       *zap.Logger
	now          func() time.Time
}

// NewEvaluator creates a new alert evaluator. alertLog may be nil.
func NewEvaluator(rules []Rule, stateManager *StateManager, alertLog AlertLog, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		rules:        rules,
		stateManager: stateManager,
		alertLog:     alertLog,
		logger:       logger,
		now:          time.Now,
	}
}

// Evaluate runs every rule against every patient that has vitals and
// returns the alerts currently in the ALARMING state, critical first.
// Failures for one patient/rule pair are collected and do not stop the rest.
func (e *Evaluator) Evaluate(ctx context.Context, patients []models.PatientRecord) ([]models.Alert, error) {
	now := e.now()
	alerts := make([]models.Alert, 0)
	var errs []error

	for _, p := range patients {
		if p.Vitals == nil {
			continue
		}
		for _, rule := range e.rules {
			value, ok := rule.Metric(*p.Vitals)
			if !ok {
				continue
			}

			state, err := e.evaluateRule(ctx, p, rule, value, now)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", p.ID, rule.Name, err))
				continue
			}
			if state.Status == AlarmStateActive {
				alerts = append(alerts, buildAlert(p, rule, state, now))
			}
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := severityRank[Severity(alerts[i].Type)], severityRank[Severity(alerts[j].Type)]
		if ri != rj {
			return ri < rj
		}
		return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt)
	})

	return alerts, errors.Join(errs...)
}

func (e *Evaluator) evaluateRule(ctx context.Context, p models.PatientRecord, rule Rule, value float64, now time.Time) (*AlarmState, error) {
	state, err := e.stateManager.GetState(ctx, p.ID, rule.Name)
	if err != nil {
		return nil, err
	}

	if rule.Breached(value) {
		return e.handleBreach(ctx, p, rule, value, state, now)
	}
	return e.handleNoBreach(ctx, p, rule, state, now)
}

func (e *Evaluator) handleBreach(ctx context.Context, p models.PatientRecord, rule Rule, value float64, state *AlarmState, now time.Time) (*AlarmState, error) {
	entry := historyEntry(now, rule, value)

	switch state.Status {
	case AlarmStateClear:
		// New breach detected
		newState := &AlarmState{
			Status:          AlarmStatePending,
			BreachStartTime: now,
			LastChecked:     now,
			BreachValue:     value,
			History:         []string{entry},
		}
		if rule.Duration <= 0 {
			return e.triggerAlarm(ctx, p, rule, value, newState, now)
		}
		return newState, e.stateManager.SetState(ctx, p.ID, rule.Name, newState)

	case AlarmStatePending:
		state.History = appendHistory(state.History, entry)
		if now.Sub(state.BreachStartTime) >= rule.Duration {
			return e.triggerAlarm(ctx, p, rule, value, state, now)
		}

		state.LastChecked = now
		state.BreachValue = value
		return state, e.stateManager.SetState(ctx, p.ID, rule.Name, state)

	case AlarmStateActive:
		state.LastChecked = now
		state.BreachValue = value
		state.History = appendHistory(state.History, entry)
		return state, e.stateManager.SetState(ctx, p.ID, rule.Name, state)
	}

	return state, nil
}

func (e *Evaluator) handleNoBreach(ctx context.Context, p models.PatientRecord, rule Rule, state *AlarmState, now time.Time) (*AlarmState, error) {
	switch state.Status {
	case AlarmStatePending:
		// Breach ended before alarm triggered
		return &AlarmState{Status: AlarmStateClear}, e.stateManager.DeleteState(ctx, p.ID, rule.Name)

	case AlarmStateActive:
		return e.clearAlarm(ctx, p, rule, state, now)
	}

	return state, nil
}

func (e *Evaluator) triggerAlarm(ctx context.Context, p models.PatientRecord, rule Rule, value float64, state *AlarmState, now time.Time) (*AlarmState, error) {
	e.logger.Warn("alert triggered",
		zap.String("patient_id", p.ID),
		zap.String("patient", p.Name),
		zap.String("rule", rule.Name),
		zap.Float64("value", value),
		zap.Float64("threshold", rule.Threshold))

	if e.alertLog != nil {
		alertLog := &database.AlertLog{
			UserID:      p.ID,
			Rule:        rule.Name,
			Severity:    string(rule.Severity),
			BreachValue: value,
			StartTime:   state.BreachStartTime,
			Status:      database.AlertStatusActive,
		}
		if err := e.alertLog.InsertAlertLog(ctx, alertLog); err != nil {
			return nil, fmt.Errorf("failed to insert alert log: %w", err)
		}
		state.AlarmID = alertLog.AlertID
	}

	state.Status = AlarmStateActive
	state.LastChecked = now
	state.BreachValue = value
	state.VitalsAtAlert = *p.Vitals
	if err := e.stateManager.SetState(ctx, p.ID, rule.Name, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (e *Evaluator) clearAlarm(ctx context.Context, p models.PatientRecord, rule Rule, state *AlarmState, now time.Time) (*AlarmState, error) {
	e.logger.Info("alert cleared",
		zap.String("patient_id", p.ID),
		zap.String("rule", rule.Name))

	if e.alertLog != nil && state.AlarmID > 0 {
		if err := e.alertLog.UpdateAlertLogCleared(ctx, state.AlarmID, now); err != nil {
			return nil, fmt.Errorf("failed to update alert log: %w", err)
		}
	}

	if err := e.stateManager.DeleteState(ctx, p.ID, rule.Name); err != nil {
		return nil, err
	}
	return &AlarmState{Status: AlarmStateClear}, nil
}

func historyEntry(at time.Time, rule Rule, value float64) string {
	return fmt.Sprintf("%s %s %s %s", at.Format("15:04"), rule.Name, models.FormatNumber(value), rule.Unit)
}

func buildAlert(p models.PatientRecord, rule Rule, state *AlarmState, now time.Time) models.Alert {
	v := state.VitalsAtAlert
	return models.Alert{
		ID:          fmt.Sprintf("%s-%s", p.ID, rule.Name),
		Type:        string(rule.Severity),
		Color:       rule.Severity.Color(),
		Rule:        rule.Name,
		Patient:     fmt.Sprintf("%s - %s", p.Name, p.ID),
		PatientID:   p.ID,
		Message:     fmt.Sprintf("%s detected (%s %s)", rule.AlertType, models.FormatNumber(state.BreachValue), rule.Unit),
		Time:        humanize(now.Sub(state.BreachStartTime)),
		TriggeredAt: state.BreachStartTime,
		FullDetails: models.AlertDetails{
			PatientName:   p.Name,
			PatientID:     p.ID,
			PatientImage:  p.Image,
			PregnancyWeek: p.Week,
			AlertType:     rule.AlertType,
			Severity:      string(rule.Severity),
			Timestamp:     state.BreachStartTime.Format(time.RFC3339),
			Description:   rule.Description,
			VitalsAtAlert: models.AlertVitals{
				FetalHR:       models.FormatNumber(v.FetalHR) + " bpm",
				MaternalHR:    models.FormatNumber(v.MaternalHR) + " bpm",
				BloodPressure: string(v.BP) + " mmHg",
				Movement:      models.FormatNumber(v.Movement),
			},
			RecommendedActions: append([]string{}, rule.RecommendedActions...),
			AlertHistory:       append([]string{}, state.History...),
		},
	}
}

func humanize(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d/time.Minute))
	default:
		return fmt.Sprintf("%d hr ago", int(d/time.Hour))
	}
}
