package aggregation

import (
	"net/url"
	"sort"
	"strings"

	"github.com/smukkama/matricare/internal/models"
)

// HighRiskMarker flags the designated high-risk patient by name. This is a
// display placeholder, not a clinical risk model.
const HighRiskMarker = "seema"

const lastUpdateLabel = "Just now"

// FallbackRoster is rendered when the directory has no patients.
func FallbackRoster() []models.Patient {
	return []models.Patient{
		{ID: "default-seema", Name: "Seema"},
		{ID: "default-p2", Name: "Patient 2"},
		{ID: "default-p3", Name: "Patient 3"},
	}
}

// ClassifyRisk maps a patient name onto a RiskLevel.
func ClassifyRisk(name string) models.RiskLevel {
	if strings.Contains(strings.ToLower(name), HighRiskMarker) {
		return models.RiskHigh
	}
	return models.RiskLow
}

// AvatarURL is the generated picture used when a patient has no photo.
func AvatarURL(name string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return "https://ui-avatars.com/api/?name=" + escaped + "&background=random"
}

// Merge pairs every patient document with a vitals row and derives the
// display fields. A row carrying the patient's id wins; otherwise patient i
// is paired with rows[i mod len(rows)]. The output always has one record per
// document, with high-risk patients moved to the front in stable order.
func Merge(rows []models.VitalsRow, docs []models.Patient) []models.PatientRecord {
	if len(docs) == 0 {
		docs = FallbackRoster()
	}

	byID := make(map[string]models.VitalsRow, len(rows))
	for _, row := range rows {
		if row.PatientID == "" {
			continue
		}
		if _, seen := byID[row.PatientID]; !seen {
			byID[row.PatientID] = row
		}
	}

	records := make([]models.PatientRecord, 0, len(docs))
	for i, doc := range docs {
		row, ok := byID[doc.ID]
		if !ok && len(rows) > 0 {
			row, ok = rows[i%len(rows)], true
		}
		records = append(records, buildRecord(doc, row, ok))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Risk == models.RiskHigh && records[j].Risk != models.RiskHigh
	})

	return records
}

func buildRecord(doc models.Patient, row models.VitalsRow, hasRow bool) models.PatientRecord {
	risk := ClassifyRisk(doc.Name)

	rec := models.PatientRecord{
		Patient:    doc,
		Risk:       risk,
		RiskLabel:  risk.Label(),
		RiskColor:  risk.Color(),
		Week:       "No data",
		LastUpdate: lastUpdateLabel,
		Image:      doc.PhotoURL,
	}
	if rec.Image == "" {
		rec.Image = AvatarURL(doc.Name)
	}

	rec.Appointments = append([]models.Appointment{}, doc.Appointments...)
	rec.Symptoms = append([]models.Symptom{}, doc.Symptoms...)

	if hasRow {
		v := row.Vitals()
		rec.Vitals = &v
		rec.Week = models.FormatNumber(row.PregnancyWeeks) + " weeks"
	}

	return rec
}
