package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/models"
)

// AppointmentInput is an appointment as submitted by a clinician.
type AppointmentInput struct {
	Date          string `json:"date"`
	Type          string `json:"type"`
	Notes         string `json:"notes"`
	RecommendedBy string `json:"recommendedBy"`
}

// SymptomInput is a symptom as submitted by a clinician.
type SymptomInput struct {
	Date     string `json:"date"`
	Symptom  string `json:"symptom"`
	Severity string `json:"severity"`
	Notes    string `json:"notes"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// ParseDate normalizes a submitted date to a timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// AddAppointment appends an appointment. Any failure is logged and reported
// as false.
func (d *Directory) AddAppointment(ctx context.Context, patientID string, in AppointmentInput) bool {
	date, err := ParseDate(in.Date)
	if err != nil {
		d.logger.Warn("Rejected appointment", zap.String("patient_id", patientID), zap.Error(err))
		return false
	}

	a := &models.Appointment{
		PatientID:     patientID,
		Date:          date,
		Type:          in.Type,
		Notes:         in.Notes,
		RecommendedBy: in.RecommendedBy,
	}
	if err := d.store.InsertAppointment(ctx, a); err != nil {
		d.logger.Error("Failed to add appointment", zap.String("patient_id", patientID), zap.Error(err))
		return false
	}

	d.notify(ctx, patientID, KindAppointments)
	return true
}

// AddSymptom appends a symptom. Any failure is logged and reported as false.
func (d *Directory) AddSymptom(ctx context.Context, patientID string, in SymptomInput) bool {
	date, err := ParseDate(in.Date)
	if err != nil {
		d.logger.Warn("Rejected symptom", zap.String("patient_id", patientID), zap.Error(err))
		return false
	}
	if strings.TrimSpace(in.Symptom) == "" {
		d.logger.Warn("Rejected symptom without description", zap.String("patient_id", patientID))
		return false
	}

	s := &models.Symptom{
		PatientID: patientID,
		Date:      date,
		Symptom:   in.Symptom,
		Severity:  in.Severity,
		Notes:     in.Notes,
	}
	if err := d.store.InsertSymptom(ctx, s); err != nil {
		d.logger.Error("Failed to add symptom", zap.String("patient_id", patientID), zap.Error(err))
		return false
	}

	d.notify(ctx, patientID, KindSymptoms)
	return true
}
