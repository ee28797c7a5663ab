package aggregation

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/smukkama/matricare/internal/models"
)

// EmptySnapshot is the sentinel returned when no vitals are available.
// Every collection is empty but non-nil so it encodes as [].
func EmptySnapshot() models.Snapshot {
	return models.Snapshot{
		Stats:          []models.Stat{},
		FetalHR:        models.Series{Labels: []string{}, Data: []float64{}},
		MaternalVitals: []models.VitalSummary{},
		FetalMovement:  models.Series{Labels: []string{}, Data: []float64{}},
		Patients:       []models.PatientRecord{},
		Alerts:         []models.Alert{},
	}
}

// BuildSnapshot assembles the dashboard payload from merged patients.
func BuildSnapshot(patients []models.PatientRecord, alerts []models.Alert, now time.Time) models.Snapshot {
	if patients == nil {
		patients = []models.PatientRecord{}
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	return models.Snapshot{
		Stats:          buildStats(patients, alerts),
		FetalHR:        series(patients, func(v models.Vitals) float64 { return v.FetalHR }),
		MaternalVitals: maternalAverages(patients),
		FetalMovement:  series(patients, func(v models.Vitals) float64 { return v.Movement }),
		Patients:       patients,
		Alerts:         alerts,
		UpdatedAt:      now,
	}
}

func buildStats(patients []models.PatientRecord, alerts []models.Alert) []models.Stat {
	total := len(patients)
	high, low := 0, 0
	for _, p := range patients {
		switch p.Risk {
		case models.RiskHigh:
			high++
		case models.RiskLow:
			low++
		}
	}

	share := "0"
	if total > 0 {
		share = strconv.FormatFloat(float64(high)/float64(total)*100, 'f', 1, 64)
	}

	return []models.Stat{
		{Title: "Total Patients", Value: strconv.Itoa(total), Icon: "fa-users", Color: "blue", Trend: "Live Data", TrendIcon: "fa-sync", TrendColor: "blue"},
		{Title: "High-Risk Patients", Value: strconv.Itoa(high), Icon: "fa-exclamation-triangle", Color: "red", Trend: share + "% of total", TrendIcon: "fa-chart-pie", TrendColor: "red", Border: "border-red-500"},
		{Title: "Low-Risk Patients", Value: strconv.Itoa(low), Icon: "fa-check-circle", Color: "green", Trend: "Stable condition", TrendIcon: "fa-smile", TrendColor: "green", Border: "border-green-500"},
		{Title: "Active Alerts", Value: strconv.Itoa(len(alerts)), Icon: "fa-bell", Color: "purple", Trend: "Last 24 hours", TrendIcon: "fa-clock", TrendColor: "purple"},
	}
}

func series(patients []models.PatientRecord, pick func(models.Vitals) float64) models.Series {
	s := models.Series{Labels: []string{}, Data: []float64{}}
	for _, p := range patients {
		if p.Vitals == nil {
			continue
		}
		s.Labels = append(s.Labels, p.Name)
		s.Data = append(s.Data, pick(*p.Vitals))
	}
	return s
}

func maternalAverages(patients []models.PatientRecord) []models.VitalSummary {
	var sysSum, diaSum, hrSum float64
	var bpCount, hrCount int

	for _, p := range patients {
		if p.Vitals == nil {
			continue
		}
		hrSum += p.Vitals.MaternalHR
		hrCount++
		if sys, dia, ok := p.Vitals.BP.Parse(); ok {
			sysSum += sys
			diaSum += dia
			bpCount++
		}
	}

	bp, hr := "--", "--"
	if bpCount > 0 {
		bp = fmt.Sprintf("%.0f/%.0f", math.Round(sysSum/float64(bpCount)), math.Round(diaSum/float64(bpCount)))
	}
	if hrCount > 0 {
		hr = fmt.Sprintf("%.0f bpm", math.Round(hrSum/float64(hrCount)))
	}

	return []models.VitalSummary{
		{Title: "Avg Blood Pressure", Value: bp, Unit: "mmHg", Icon: "fa-heartbeat", Color: "red"},
		{Title: "Avg Heart Rate", Value: hr, Unit: "Maternal average", Icon: "fa-heart", Color: "purple"},
	}
}
