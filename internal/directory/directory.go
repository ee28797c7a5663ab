package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/aggregation"
	"github.com/smukkama/matricare/internal/database"
	"github.com/smukkama/matricare/internal/models"
	"github.com/smukkama/matricare/internal/protocol"
	"github.com/smukkama/matricare/internal/subscription"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
)

// Store is the persistence the directory reads and writes.
// *database.DB implements it.
type Store interface {
	ListUsers(ctx context.Context) ([]models.Patient, error)
	GetUser(ctx context.Context, id string) (*models.Patient, error)
	InsertUser(ctx context.Context, p *models.Patient) error
	ReplaceFamily(ctx context.Context, userID string, family []string) ([]string, error)
	ListAppointments(ctx context.Context, userID string) ([]models.Appointment, error)
	ListSymptoms(ctx context.Context, userID string) ([]models.Symptom, error)
	InsertAppointment(ctx context.Context, a *models.Appointment) error
	InsertSymptom(ctx context.Context, s *models.Symptom) error
	GetDoctorByLicence(ctx context.Context, licence string) (*models.Doctor, error)
	InsertDoctor(ctx context.Context, d *models.Doctor) error
}

// EventPublisher publishes user events. *queue.Producer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Directory is the patient directory adapter.
type Directory struct {
	store    Store
	redis    *redis.Client
	events   EventPublisher
	registry *subscription.Registry
	logger   *zap.Logger
}

// New creates a directory. events may be nil, in which case family updates
// are stored but never announced.
func New(store Store, redisClient *redis.Client, events EventPublisher, registry *subscription.Registry, logger *zap.Logger) *Directory {
	return &Directory{
		store:    store,
		redis:    redisClient,
		events:   events,
		registry: registry,
		logger:   logger,
	}
}

// GetAll scans every patient together with both sub-collections. A failed
// sub-collection read leaves that field empty for that patient only.
func (d *Directory) GetAll(ctx context.Context) ([]models.Patient, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan patients: %w", err)
	}

	patients := make([]models.Patient, 0, len(users))
	for _, u := range users {
		d.loadSubCollections(ctx, &u)
		patients = append(patients, u)
	}
	return patients, nil
}

// Get reads one patient with sub-collections.
func (d *Directory) Get(ctx context.Context, id string) (*models.Patient, error) {
	p, err := d.store.GetUser(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	d.loadSubCollections(ctx, p)
	return p, nil
}

func (d *Directory) loadSubCollections(ctx context.Context, p *models.Patient) {
	appointments, err := d.store.ListAppointments(ctx, p.ID)
	if err != nil {
		d.logger.Warn("Failed to read appointments, defaulting to empty",
			zap.String("patient_id", p.ID),
			zap.Error(err),
		)
		appointments = []models.Appointment{}
	}

	symptoms, err := d.store.ListSymptoms(ctx, p.ID)
	if err != nil {
		d.logger.Warn("Failed to read symptoms, defaulting to empty",
			zap.String("patient_id", p.ID),
			zap.Error(err),
		)
		symptoms = []models.Symptom{}
	}

	p.Appointments = appointments
	p.Symptoms = symptoms
}

// AddPatient creates a patient document.
func (d *Directory) AddPatient(ctx context.Context, name, photoURL string) (*models.Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("patient name is required")
	}

	p := &models.Patient{Name: name, PhotoURL: photoURL, Family: []string{}}
	if err := d.store.InsertUser(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to add patient: %w", err)
	}
	return p, nil
}

// UpdateFamily replaces a patient's family list and announces the change.
func (d *Directory) UpdateFamily(ctx context.Context, patientID string, emails []string) error {
	p, err := d.store.GetUser(ctx, patientID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get patient: %w", err)
	}

	after := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			after = append(after, e)
		}
	}

	before, err := d.store.ReplaceFamily(ctx, patientID, after)
	if errors.Is(err, database.ErrNotFound) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}

	if d.events == nil {
		return nil
	}

	data, err := protocol.EncodeUserUpdated(&protocol.UserUpdated{
		EventID:     uuid.NewString(),
		Type:        protocol.EventTypeFamilyUpdated,
		PatientID:   patientID,
		PatientName: p.Name,
		Before:      before,
		After:       after,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode user event: %w", err)
	}

	if err := d.events.Publish(ctx, patientID, data); err != nil {
		d.logger.Error("Family saved but event not published",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish user event: %w", err)
	}
	return nil
}

// DoctorInput is a registration request.
type DoctorInput struct {
	Name    string `json:"name"`
	License string `json:"license"`
	Phone   string `json:"phone"`
}

// RegistrationResult reports the outcome of RegisterDoctor.
type RegistrationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DoctorByLicense looks up a doctor account.
func (d *Directory) DoctorByLicense(ctx context.Context, license string) (*models.Doctor, error) {
	doc, err := d.store.GetDoctorByLicence(ctx, strings.TrimSpace(license))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return doc, nil
}

// RegisterDoctor creates a doctor account. Duplicate licences are rejected.
func (d *Directory) RegisterDoctor(ctx context.Context, in DoctorInput) RegistrationResult {
	in.Name = strings.TrimSpace(in.Name)
	in.License = strings.TrimSpace(in.License)
	if in.Name == "" || in.License == "" {
		return RegistrationResult{Success: false, Message: "Name and license number are required"}
	}

	doc := &models.Doctor{
		Name:          in.Name,
		LicenceNumber: in.License,
		Phone:         strings.TrimSpace(in.Phone),
		PhotoURL:      aggregation.AvatarURL(in.Name),
	}

	err := d.store.InsertDoctor(ctx, doc)
	if errors.Is(err, database.ErrDuplicateLicence) {
		return RegistrationResult{Success: false, Message: "License number already registered"}
	}
	if err != nil {
		d.logger.Error("Doctor registration failed", zap.Error(err))
		return RegistrationResult{Success: false, Message: err.Error()}
	}

	d.logger.Info("Doctor registered", zap.String("doctor_id", doc.ID))
	return RegistrationResult{Success: true, Message: "Registration successful"}
}
