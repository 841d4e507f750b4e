// Package sqlite persists the patient registry and assessment history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	_ "modernc.org/sqlite"
)

// Store implements domain.PatientRepository and domain.HistoryStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Open opens (creating if needed) the database at path and applies migrations.
// path may be ":memory:".
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer; also keeps one shared in-memory database.
	db.SetMaxOpenConns(1)

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	return nil
}

const patientColumns = `id, name, age, pregnancy_icd10, pregnancy_description, comorbidity_icd10,
	comorbidity_description, weeks_pregnant, address, zip_code, phone_number, email,
	medications, medication_notes, ndc_codes, between_17_35, created_at, updated_at`

func (s *Store) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	now := domain.Now()
	p.CreatedAt, p.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (name, age, pregnancy_icd10, pregnancy_description, comorbidity_icd10,
			comorbidity_description, weeks_pregnant, address, zip_code, phone_number, email,
			medications, medication_notes, ndc_codes, between_17_35, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Age, p.PregnancyICD10, p.PregnancyDescription, p.ComorbidityICD10,
		p.ComorbidityDescription, p.WeeksPregnant, p.Address, p.ZipCode, p.PhoneNumber, p.Email,
		p.Medications, p.MedicationNotes, p.NDCCodes, nullBool(p.Between17And35),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Patient{}, fmt.Errorf("patient id: %w", err)
	}
	p.ID = id
	return p, nil
}

// UpdatePatient replaces every mutable field of an existing patient.
func (s *Store) UpdatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	existing, err := s.GetPatient(ctx, p.ID)
	if err != nil {
		return domain.Patient{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = domain.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE patients SET name = ?, age = ?, pregnancy_icd10 = ?, pregnancy_description = ?,
			comorbidity_icd10 = ?, comorbidity_description = ?, weeks_pregnant = ?, address = ?,
			zip_code = ?, phone_number = ?, email = ?, medications = ?, medication_notes = ?,
			ndc_codes = ?, between_17_35 = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Age, p.PregnancyICD10, p.PregnancyDescription,
		p.ComorbidityICD10, p.ComorbidityDescription, p.WeeksPregnant, p.Address,
		p.ZipCode, p.PhoneNumber, p.Email, p.Medications, p.MedicationNotes,
		p.NDCCodes, nullBool(p.Between17And35), formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	return p, nil
}

func (s *Store) GetPatient(ctx context.Context, id int64) (domain.Patient, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+patientColumns+" FROM patients WHERE id = ?", id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Patient{}, fmt.Errorf("%w: id %d", domain.ErrPatientNotFound, id)
	}
	if err != nil {
		return domain.Patient{}, fmt.Errorf("get patient %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListPatients(ctx context.Context, zip string) ([]domain.Patient, error) {
	query := "SELECT " + patientColumns + " FROM patients"
	var args []any
	if zip != "" {
		query += " WHERE zip_code = ?"
		args = append(args, zip)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := []domain.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// DeletePatient removes a patient and its assessment history.
func (s *Store) DeletePatient(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM assessments WHERE patient_id = ?", id); err != nil {
		return fmt.Errorf("delete history for patient %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrPatientNotFound, id)
	}
	return tx.Commit()
}

// SaveAssessment appends a history record.
func (s *Store) SaveAssessment(ctx context.Context, rec domain.AssessmentRecord) (domain.AssessmentRecord, error) {
	body, err := json.Marshal(rec.Assessment)
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("encode assessment: %w", err)
	}
	if rec.AssessedAt.IsZero() {
		rec.AssessedAt = domain.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO assessments (patient_id, risk_level, risk_score, heat_wave, assessment_json, assessed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.PatientID, string(rec.RiskLevel), rec.RiskScore, rec.HeatWaveRisk, string(body), formatTime(rec.AssessedAt),
	)
	if err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("insert assessment for patient %d: %w", rec.PatientID, err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return domain.AssessmentRecord{}, fmt.Errorf("assessment id: %w", err)
	}
	return rec, nil
}

// AssessmentHistory returns a patient's assessments, newest first.
func (s *Store) AssessmentHistory(ctx context.Context, patientID int64) ([]domain.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, risk_level, risk_score, heat_wave, assessment_json, assessed_at
		FROM assessments WHERE patient_id = ? ORDER BY assessed_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query history for patient %d: %w", patientID, err)
	}
	defer rows.Close()

	history := []domain.AssessmentRecord{}
	for rows.Next() {
		var (
			rec        domain.AssessmentRecord
			level      string
			body       string
			assessedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.PatientID, &level, &rec.RiskScore, &rec.HeatWaveRisk, &body, &assessedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		rec.RiskLevel = domain.Level(level)
		if err := json.Unmarshal([]byte(body), &rec.Assessment); err != nil {
			return nil, fmt.Errorf("decode assessment %d: %w", rec.ID, err)
		}
		if rec.AssessedAt, err = parseTime(assessedAt); err != nil {
			return nil, fmt.Errorf("assessment %d timestamp: %w", rec.ID, err)
		}
		history = append(history, rec)
	}
	return history, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(row scanner) (domain.Patient, error) {
	var (
		p                    domain.Patient
		band                 sql.NullBool
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.PregnancyICD10, &p.PregnancyDescription, &p.ComorbidityICD10,
		&p.ComorbidityDescription, &p.WeeksPregnant, &p.Address, &p.ZipCode, &p.PhoneNumber, &p.Email,
		&p.Medications, &p.MedicationNotes, &p.NDCCodes, &band, &createdAt, &updatedAt)
	if err != nil {
		return domain.Patient{}, err
	}
	if band.Valid {
		v := band.Bool
		p.Between17And35 = &v
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Patient{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Patient{}, err
	}
	return p, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
