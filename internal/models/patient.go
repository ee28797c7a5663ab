package models

import "time"

// Patient is a directory document with its two sub-collections.
type Patient struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	PhotoURL     string        `json:"photoURL,omitempty"`
	Family       []string      `json:"family,omitempty"`
	Appointments []Appointment `json:"appointments"`
	Symptoms     []Symptom     `json:"symptoms"`
	CreatedAt    time.Time     `json:"createdAt,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt,omitempty"`
}

type Appointment struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patientId"`
	Date          time.Time `json:"date"`
	Type          string    `json:"type"`
	Notes         string    `json:"notes"`
	RecommendedBy string    `json:"recommendedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Symptom struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId"`
	Date      time.Time `json:"date"`
	Symptom   string    `json:"symptom"`
	Severity  string    `json:"severity"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

type Doctor struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	LicenceNumber string    `json:"license"`
	Phone         string    `json:"phone,omitempty"`
	PhotoURL      string    `json:"photoURL,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RiskLevel is the coarse display flag attached to a patient.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskHigh
)

type riskDisplay struct {
	label string
	color string
}

var riskDisplays = map[RiskLevel]riskDisplay{
	RiskLow:  {label: "Low Risk", color: "green"},
	RiskHigh: {label: "High Risk", color: "red"},
}

func (r RiskLevel) Label() string { return riskDisplays[r].label }

func (r RiskLevel) Color() string { return riskDisplays[r].color }

func (r RiskLevel) String() string { return r.Label() }

// PatientRecord is a Patient augmented with display fields by the
// aggregation pipeline. Vitals is nil when no vitals row was available.
type PatientRecord struct {
	Patient
	Risk       RiskLevel `json:"-"`
	RiskLabel  string    `json:"risk"`
	RiskColor  string    `json:"riskColor"`
	Week       string    `json:"week"`
	LastUpdate string    `json:"lastUpdate"`
	Image      string    `json:"image"`
	Vitals     *Vitals   `json:"vitals"`
}
