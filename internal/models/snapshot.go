package models

import "time"

// Stat is one summary card on the dashboard.
type Stat struct {
	Title      string `json:"title"`
	Value      string `json:"value"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Trend      string `json:"trend"`
	TrendIcon  string `json:"trendIcon"`
	TrendColor string `json:"trendColor"`
	Border     string `json:"border,omitempty"`
}

// Series is a labelled chart series.
type Series struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// VitalSummary is an averaged maternal reading.
type VitalSummary struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// AlertVitals is the vitals reading captured when an alert fired.
type AlertVitals struct {
	FetalHR       string `json:"fetalHR"`
	MaternalHR    string `json:"maternalHR"`
	BloodPressure string `json:"bloodPressure"`
	Movement      string `json:"movement"`
}

type AlertDetails struct {
	PatientName        string      `json:"patientName"`
	PatientID          string      `json:"patientId"`
	PatientImage       string      `json:"patientImage"`
	PregnancyWeek      string      `json:"pregnancyWeek"`
	AlertType          string      `json:"alertType"`
	Severity           string      `json:"severity"`
	Timestamp          string      `json:"timestamp"`
	Description        string      `json:"description"`
	VitalsAtAlert      AlertVitals `json:"vitalsAtAlert"`
	RecommendedActions []string    `json:"recommendedActions"`
	AlertHistory       []string    `json:"alertHistory"`
}

// Alert is a threshold breach currently in the ALARMING state.
type Alert struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Color       string       `json:"color"`
	Rule        string       `json:"rule"`
	Patient     string       `json:"patient"`
	PatientID   string       `json:"patientId"`
	Message     string       `json:"message"`
	Time        string       `json:"time"`
	TriggeredAt time.Time    `json:"triggeredAt"`
	FullDetails AlertDetails `json:"fullDetails"`
}

// Snapshot is the full dashboard payload produced by one poll cycle.
type Snapshot struct {
	Stats          []Stat          `json:"stats"`
	FetalHR        Series          `json:"fetalHR"`
	MaternalVitals []VitalSummary  `json:"maternalVitals"`
	FetalMovement  Series          `json:"fetalMovement"`
	Patients       []PatientRecord `json:"patients"`
	Alerts         []Alert         `json:"alerts"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsEmpty reports whether s is the no-data sentinel. Callers use it to
// surface a connectivity warning.
func (s Snapshot) IsEmpty() bool {
	return len(s.Stats) == 0
}

// PatientHistory holds five parallel series of equal length.
type PatientHistory struct {
	FetalHR    []float64 `json:"fetalHR"`
	MaternalHR []float64 `json:"maternalHR"`
	BP         []string  `json:"bp"`
	Movement   []float64 `json:"movement"`
	Timestamps []string  `json:"timestamps"`
}

func (h PatientHistory) Len() int {
	return len(h.Timestamps)
}

// History maps a patient id to its rolling buffers.
type History map[string]PatientHistory
