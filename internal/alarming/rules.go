package alarming

import (
	"time"

	"github.com/smukkama/matricare/internal/models"
)

// Severity of an alert.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

var severityColors = map[Severity]string{
	SeverityCritical: "red",
	SeverityWarning:  "orange",
}

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityWarning:  1,
}

func (s Severity) Color() string { return severityColors[s] }

// Metric extracts one reading from a vitals record. ok is false when the
// reading is not available.
type Metric func(v models.Vitals) (value float64, ok bool)

// Rule is one threshold check applied to every patient.
type Rule struct {
	Name               string
	AlertType          string
	Description        string
	Severity           Severity
	Operator           string
	Threshold          float64
	Unit               string
	Duration           time.Duration // 0 alarms on first breach
	Metric             Metric
	RecommendedActions []string
}

func (r Rule) Breached(value float64) bool {
	return evaluateCondition(value, r.Operator, r.Threshold)
}

func fetalHR(v models.Vitals) (float64, bool)    { return v.FetalHR, v.FetalHR > 0 }
func maternalHR(v models.Vitals) (float64, bool) { return v.MaternalHR, v.MaternalHR > 0 }
func movement(v models.Vitals) (float64, bool)   { return v.Movement, true }

func systolic(v models.Vitals) (float64, bool) {
	sys, _, ok := v.BP.Parse()
	return sys, ok
}

func diastolic(v models.Vitals) (float64, bool) {
	_, dia, ok := v.BP.Parse()
	return dia, ok
}

// DefaultThresholds returns the built-in rule set.
func DefaultThresholds() []Rule {
	fetalActions := []string{
		"Immediate ultrasound examination",
		"Continuous fetal monitoring",
		"Notify on-call obstetrician",
	}
	bpActions := []string{
		"Repeat blood pressure measurement in 15 minutes",
		"Check urine protein for pre-eclampsia",
		"Notify on-call obstetrician",
	}

	return []Rule{
		{
			Name: "fetal_hr_high", AlertType: "Critical Fetal Heart Rate", Severity: SeverityCritical,
			Description: "Fetal heart rate above 160 bpm (tachycardia).",
			Operator:    ">", Threshold: 160, Unit: "bpm", Metric: fetalHR, RecommendedActions: fetalActions,
		},
		{
			Name: "fetal_hr_low", AlertType: "Critical Fetal Heart Rate", Severity: SeverityCritical,
			Description: "Fetal heart rate below 110 bpm (bradycardia).",
			Operator:    "<", Threshold: 110, Unit: "bpm", Metric: fetalHR, RecommendedActions: fetalActions,
		},
		{
			Name: "maternal_hr_high", AlertType: "Maternal Tachycardia", Severity: SeverityWarning,
			Description: "Maternal heart rate above 100 bpm.",
			Operator:    ">", Threshold: 100, Unit: "bpm", Metric: maternalHR,
			RecommendedActions: []string{"Check for fever, dehydration or anaemia", "Recheck heart rate at rest"},
		},
		{
			Name: "maternal_hr_low", AlertType: "Maternal Bradycardia", Severity: SeverityWarning,
			Description: "Maternal heart rate below 60 bpm.",
			Operator:    "<", Threshold: 60, Unit: "bpm", Metric: maternalHR,
			RecommendedActions: []string{"Recheck heart rate at rest", "Review current medication"},
		},
		{
			Name: "bp_systolic_high", AlertType: "Hypertension", Severity: SeverityCritical,
			Description: "Systolic blood pressure at or above 140 mmHg.",
			Operator:    ">=", Threshold: 140, Unit: "mmHg", Metric: systolic, RecommendedActions: bpActions,
		},
		{
			Name: "bp_diastolic_high", AlertType: "Hypertension", Severity: SeverityCritical,
			Description: "Diastolic blood pressure at or above 90 mmHg.",
			Operator:    ">=", Threshold: 90, Unit: "mmHg", Metric: diastolic, RecommendedActions: bpActions,
		},
		{
			Name: "fetal_movement_low", AlertType: "Reduced Fetal Movement", Severity: SeverityWarning,
			Description: "Fewer than 10 fetal movements recorded.",
			Operator:    "<", Threshold: 10, Unit: "movements", Metric: movement,
			RecommendedActions: []string{"Ask patient to perform a kick count", "Schedule a non-stress test"},
		},
	}
}

func evaluateCondition(value float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		return false
	}
}
