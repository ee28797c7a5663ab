package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/matricare/internal/models"
)

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return New(sqlDB), mock
}

const userID = "0b6f3c0e-2d5e-4b43-9c59-2f1b7a0e9a11"

func TestRunMigrations_Ordered(t *testing.T) {
	db, mock := setupMockDB(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("CREATE TABLE b (id INT)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("CREATE TABLE a (id INT)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := db.RunMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StopsOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("BROKEN"), 0o644))
	mock.ExpectExec("BROKEN").WillReturnError(errors.New("syntax error"))

	_, err := db.RunMigrations(dir)
	assert.ErrorContains(t, err, "001_a.sql")
}

func TestListUsers(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, photo_url, family`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "photo_url", "family", "created_at", "updated_at"}).
			AddRow(userID, "Seema", "", "{mum@example.com,dad@example.com}", now, now).
			AddRow("9e1c", "Asha", "https://x/y.png", "{}", now, now))

	users, err := db.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []string{"mum@example.com", "dad@example.com"}, users[0].Family)
	assert.Empty(t, users[1].Family)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM users`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.GetUser(context.Background(), userID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetUser(context.Background(), "default-seema")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceFamily(t *testing.T) {
	db, mock := setupMockDB(t)
	after := []string{"mum@example.com", "aunt@example.com"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT family FROM users`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"family"}).AddRow("{mum@example.com}"))
	mock.ExpectExec(`UPDATE users SET family`).
		WithArgs(pq.StringArray(after), userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	before, err := db.ReplaceFamily(context.Background(), userID, after)
	require.NoError(t, err)
	assert.Equal(t, []string{"mum@example.com"}, before)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceFamily_MissingUser(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT family FROM users`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"family"}))
	mock.ExpectRollback()

	_, err := db.ReplaceFamily(context.Background(), userID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppointments_EmptyIsNonNil(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM appointments`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "date", "type", "notes", "recommended_by", "created_at"}))

	got, err := db.ListAppointments(context.Background(), userID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInsertSymptom(t *testing.T) {
	db, mock := setupMockDB(t)
	date := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO symptoms`).
		WithArgs(sqlmock.AnyArg(), userID, date, "Headache", "mild", "evening").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	s := &models.Symptom{PatientID: userID, Date: date, Symptom: "Headache", Severity: "mild", Notes: "evening"}
	require.NoError(t, db.InsertSymptom(context.Background(), s))
	assert.NotEmpty(t, s.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDoctor_Duplicate(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO doctors`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := db.InsertDoctor(context.Background(), &models.Doctor{Name: "Dr A", LicenceNumber: "LIC-1"})
	assert.ErrorIs(t, err, ErrDuplicateLicence)
}

func TestGetDoctorByLicence(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM doctors`).WithArgs("LIC-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "licence_number", "phone_number", "photo_url", "created_at"}).
			AddRow("d-1", "Dr A", "LIC-1", "555", "", time.Now()))

	d, err := db.GetDoctorByLicence(context.Background(), "LIC-1")
	require.NoError(t, err)
	assert.Equal(t, "Dr A", d.Name)

	mock.ExpectQuery(`FROM doctors`).WithArgs("LIC-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = db.GetDoctorByLicence(context.Background(), "LIC-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlertLogLifecycle(t *testing.T) {
	db, mock := setupMockDB(t)
	start := time.Now()

	mock.ExpectQuery(`INSERT INTO alerts_log`).
		WithArgs(userID, "fetal_hr_high", "CRITICAL", 175.0, start, AlertStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"alert_id"}).AddRow(int64(42)))
	mock.ExpectExec(`UPDATE alerts_log`).
		WithArgs(AlertStatusCleared, sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &AlertLog{UserID: userID, Rule: "fetal_hr_high", Severity: "CRITICAL", BreachValue: 175, StartTime: start, Status: AlertStatusActive}
	require.NoError(t, db.InsertAlertLog(context.Background(), entry))
	assert.Equal(t, int64(42), entry.AlertID)
	require.NoError(t, db.UpdateAlertLogCleared(context.Background(), entry.AlertID, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
