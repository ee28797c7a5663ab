package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/smukkama/matricare/internal/models"
)

const uniqueViolation = "23505"

// GetDoctorByLicence looks a doctor up by licence number.
func (db *DB) GetDoctorByLicence(ctx context.Context, licence string) (*models.Doctor, error) {
	query := `
		SELECT id, name, licence_number, phone_number, photo_url, created_at
		FROM doctors
		WHERE licence_number = $1
	`

	var d models.Doctor
	err := db.QueryRowContext(ctx, query, licence).Scan(
		&d.ID,
		&d.Name,
		&d.LicenceNumber,
		&d.Phone,
		&d.PhotoURL,
		&d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	return &d, nil
}

// InsertDoctor registers a doctor. ErrDuplicateLicence when the licence
// number is taken.
func (db *DB) InsertDoctor(ctx context.Context, d *models.Doctor) error {
	query := `
		INSERT INTO doctors (id, name, licence_number, phone_number, photo_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	d.ID = uuid.NewString()
	err := db.QueryRowContext(ctx, query, d.ID, d.Name, d.LicenceNumber, d.Phone, d.PhotoURL).Scan(&d.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateLicence
	}
	if err != nil {
		return fmt.Errorf("failed to insert doctor: %w", err)
	}
	return nil
}
