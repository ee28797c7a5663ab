package aggregation

import (
	"time"

	"github.com/smukkama/matricare/internal/models"
)

const (
	// HistoryCapacity is the number of points kept per series.
	HistoryCapacity = 11
	// HistoryTrackedPatients is how many leading patients get a buffer.
	HistoryTrackedPatients = 3
)

// TimestampLabel formats a history label as HH:MM.
func TimestampLabel(t time.Time) string {
	return t.Format("15:04")
}

// UpdateHistory appends the current vitals of the first
// HistoryTrackedPatients patients to their rolling buffers. prev is never
// modified; the result shares no slice backing arrays with it for updated
// entries. Patients without vitals are left untouched.
func UpdateHistory(prev models.History, patients []models.PatientRecord, label string) models.History {
	next := make(models.History, len(prev)+HistoryTrackedPatients)
	for id, h := range prev {
		next[id] = h
	}

	tracked := patients
	if len(tracked) > HistoryTrackedPatients {
		tracked = tracked[:HistoryTrackedPatients]
	}

	for _, p := range tracked {
		if p.Vitals == nil {
			continue
		}
		next[p.ID] = push(prev[p.ID], *p.Vitals, label)
	}

	return next
}

func push(h models.PatientHistory, v models.Vitals, label string) models.PatientHistory {
	return models.PatientHistory{
		FetalHR:    appendBounded(h.FetalHR, v.FetalHR),
		MaternalHR: appendBounded(h.MaternalHR, v.MaternalHR),
		BP:         appendBounded(h.BP, string(v.BP)),
		Movement:   appendBounded(h.Movement, v.Movement),
		Timestamps: appendBounded(h.Timestamps, label),
	}
}

// appendBounded copies s without its oldest entries so that, after v is
// appended, at most HistoryCapacity remain.
func appendBounded[T any](s []T, v T) []T {
	drop := len(s) - (HistoryCapacity - 1)
	if drop < 0 {
		drop = 0
	}
	out := make([]T, 0, HistoryCapacity)
	out = append(out, s[drop:]...)
	return append(out, v)
}
