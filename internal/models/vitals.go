package models

import (
	"strconv"
	"strings"
)

// VitalsRow is one snapshot reading as served by the vitals backend.
// Numbers are float64 because the upstream serializes dataframe rows and
// integral columns may arrive as 29.0.
type VitalsRow struct {
	PatientID         string        `json:"patientId,omitempty"`
	PregnancyWeeks    float64       `json:"pregnancyWeeks"`
	FetalHeartRate    float64       `json:"fetalHeartRate"`
	MaternalHeartRate float64       `json:"maternalHeartRate"`
	BloodPressure     BloodPressure `json:"bloodPressure"`
	FetalMovement     float64       `json:"fetalMovement"`
}

// Vitals is the per-patient view of a VitalsRow.
type Vitals struct {
	FetalHR    float64       `json:"fetalHR"`
	MaternalHR float64       `json:"maternalHR"`
	BP         BloodPressure `json:"bp"`
	Movement   float64       `json:"movement"`
}

// Vitals projects the row onto the fields the dashboard tracks.
func (r VitalsRow) Vitals() Vitals {
	return Vitals{
		FetalHR:    r.FetalHeartRate,
		MaternalHR: r.MaternalHeartRate,
		BP:         r.BloodPressure,
		Movement:   r.FetalMovement,
	}
}

// BloodPressure is a "systolic/diastolic" reading, e.g. "120/80".
type BloodPressure string

// Parse splits the reading. ok is false for anything not shaped N/M.
func (bp BloodPressure) Parse() (systolic, diastolic float64, ok bool) {
	sys, dia, found := strings.Cut(string(bp), "/")
	if !found {
		return 0, 0, false
	}
	s, err := strconv.ParseFloat(strings.TrimSpace(sys), 64)
	if err != nil {
		return 0, 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(dia), 64)
	if err != nil {
		return 0, 0, false
	}
	return s, d, true
}

// FormatNumber renders a reading without a trailing ".0".
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
