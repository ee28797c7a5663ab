package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/smukkama/matricare/internal/models"
)

// ListUsers returns every patient document without sub-collections.
func (db *DB) ListUsers(ctx context.Context) ([]models.Patient, error) {
	query := `
		SELECT id, name, photo_url, family, created_at, updated_at
		FROM users
		ORDER BY created_at, id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.Patient
	for rows.Next() {
		var p models.Patient
		var family pq.StringArray
		if err := rows.Scan(&p.ID, &p.Name, &p.PhotoURL, &family, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		p.Family = []string(family)
		users = append(users, p)
	}

	return users, rows.Err()
}

// GetUser retrieves one patient document. ErrNotFound when absent.
func (db *DB) GetUser(ctx context.Context, id string) (*models.Patient, error) {
	query := `
		SELECT id, name, photo_url, family, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var p models.Patient
	var family pq.StringArray
	err := db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.PhotoURL,
		&family,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	p.Family = []string(family)
	return &p, nil
}

// InsertUser creates a patient document and assigns its id.
func (db *DB) InsertUser(ctx context.Context, p *models.Patient) error {
	query := `
		INSERT INTO users (id, name, photo_url, family)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	return db.QueryRowContext(ctx, query, p.ID, p.Name, p.PhotoURL, pq.StringArray(p.Family)).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

// ReplaceFamily overwrites the family list and returns the previous one.
func (db *DB) ReplaceFamily(ctx context.Context, userID string, family []string) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var before pq.StringArray
	err = tx.QueryRowContext(ctx, `SELECT family FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&before)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read family: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET family = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		pq.StringArray(family), userID,
	); err != nil {
		return nil, fmt.Errorf("failed to update family: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit family update: %w", err)
	}

	return []string(before), nil
}

// ListAppointments returns a patient's appointments ordered by date.
func (db *DB) ListAppointments(ctx context.Context, userID string) ([]models.Appointment, error) {
	query := `
		SELECT id, user_id, date, type, notes, recommended_by, created_at
		FROM appointments
		WHERE user_id = $1
		ORDER BY date, created_at
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appointments := []models.Appointment{}
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Date, &a.Type, &a.Notes, &a.RecommendedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}

	return appointments, rows.Err()
}

// ListSymptoms returns a patient's symptoms ordered by date.
func (db *DB) ListSymptoms(ctx context.Context, userID string) ([]models.Symptom, error) {
	query := `
		SELECT id, user_id, date, symptom, severity, notes, created_at
		FROM symptoms
		WHERE user_id = $1
		ORDER BY date, created_at
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list symptoms: %w", err)
	}
	defer rows.Close()

	symptoms := []models.Symptom{}
	for rows.Next() {
		var s models.Symptom
		if err := rows.Scan(&s.ID, &s.PatientID, &s.Date, &s.Symptom, &s.Severity, &s.Notes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan symptom: %w", err)
		}
		symptoms = append(symptoms, s)
	}

	return symptoms, rows.Err()
}

// InsertAppointment appends an appointment and assigns its id.
func (db *DB) InsertAppointment(ctx context.Context, a *models.Appointment) error {
	query := `
		INSERT INTO appointments (id, user_id, date, type, notes, recommended_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	a.ID = uuid.NewString()
	if err := db.QueryRowContext(ctx, query,
		a.ID, a.PatientID, a.Date, a.Type, a.Notes, a.RecommendedBy,
	).Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

// InsertSymptom appends a symptom and assigns its id.
func (db *DB) InsertSymptom(ctx context.Context, s *models.Symptom) error {
	query := `
		INSERT INTO symptoms (id, user_id, date, symptom, severity, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	s.ID = uuid.NewString()
	if err := db.QueryRowContext(ctx, query,
		s.ID, s.PatientID, s.Date, s.Symptom, s.Severity, s.Notes,
	).Scan(&s.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert symptom: %w", err)
	}
	return nil
}
