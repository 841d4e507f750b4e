package sqlite

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, time.July, 14, 15, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(baseTime)
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	store, err := Open(context.Background(), ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func samplePatient() domain.Patient {
	return domain.Patient{
		Name:                 "Maria Garcia",
		Age:                  32,
		PregnancyICD10:       "O24.4",
		PregnancyDescription: "Gestational diabetes",
		WeeksPregnant:        28,
		Address:              "12 Palm St",
		ZipCode:              "85001",
		PhoneNumber:          "602-555-0101",
		Email:                "maria@example.com",
		Medications:          "Insulin;Folic acid",
		NDCCodes:             "0002-8215;0093-7180",
		Between17And35:       domain.AgeBandFlag(32),
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	version, err := store.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestMigrationVersion_Empty(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	store := New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.ensureMigrationsTable(context.Background()))

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestCreateAndGetPatient(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePatient(ctx, samplePatient())
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.True(t, created.CreatedAt.Equal(baseTime))

	got, err := store.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria Garcia", got.Name)
	assert.Equal(t, []string{"Insulin", "Folic acid"}, got.MedicationList())
	assert.Equal(t, []string{"0002-8215", "0093-7180"}, got.NDCCodeList())
	require.NotNil(t, got.Between17And35)
	assert.True(t, *got.Between17And35)
	assert.True(t, got.UpdatedAt.Equal(baseTime))
}

func TestGetPatient_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.GetPatient(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
}

func TestCreatePatient_NullAgeBand(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	p := samplePatient()
	p.Between17And35 = nil
	created, err := store.CreatePatient(ctx, p)
	require.NoError(t, err)

	got, err := store.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Between17And35)
}

func TestUpdatePatient(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePatient(ctx, samplePatient())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	created.WeeksPregnant = 30
	created.ZipCode = "85004"
	updated, err := store.UpdatePatient(ctx, created)
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(baseTime))
	assert.True(t, updated.UpdatedAt.Equal(baseTime.Add(time.Hour)))

	got, err := store.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.WeeksPregnant)
	assert.Equal(t, "85004", got.ZipCode)
	assert.True(t, got.UpdatedAt.Equal(baseTime.Add(time.Hour)))
}

func TestUpdatePatient_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	p := samplePatient()
	p.ID = 42
	_, err := store.UpdatePatient(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
}

func TestListPatients_FilterByZip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, zip := range []string{"85001", "85004", "85001"} {
		p := samplePatient()
		p.ZipCode = zip
		_, err := store.CreatePatient(ctx, p)
		require.NoError(t, err)
	}

	all, err := store.ListPatients(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	phoenix, err := store.ListPatients(ctx, "85001")
	require.NoError(t, err)
	assert.Len(t, phoenix, 2)

	none, err := store.ListPatients(ctx, "10001")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAssessmentHistory(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	patient, err := store.CreatePatient(ctx, samplePatient())
	require.NoError(t, err)

	first := domain.RiskAssessment{
		RiskLevel:  domain.LevelMedium,
		RiskScore:  4.5,
		Breakdown:  map[string]domain.FactorResult{},
		AssessedAt: domain.Now(),
	}
	_, err = store.SaveAssessment(ctx, domain.NewAssessmentRecord(patient.ID, first))
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	second := domain.RiskAssessment{
		RiskLevel:       domain.LevelHigh,
		RiskScore:       11,
		HeatWaveRisk:    true,
		WeatherSnapshot: domain.WeatherSnapshot{TemperatureC: 41.2, IsHeatWave: true},
		AssessedAt:      domain.Now(),
	}
	saved, err := store.SaveAssessment(ctx, domain.NewAssessmentRecord(patient.ID, second))
	require.NoError(t, err)
	assert.Positive(t, saved.ID)

	history, err := store.AssessmentHistory(ctx, patient.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, domain.LevelHigh, history[0].RiskLevel)
	assert.True(t, history[0].HeatWaveRisk)
	assert.Equal(t, 41.2, history[0].Assessment.WeatherSnapshot.TemperatureC)
	assert.True(t, history[0].AssessedAt.Equal(baseTime.Add(30*time.Minute)))
	assert.Equal(t, domain.LevelMedium, history[1].RiskLevel)
	assert.Equal(t, 4.5, history[1].RiskScore)
}

func TestSaveAssessment_DefaultsTimestamp(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	patient, err := store.CreatePatient(ctx, samplePatient())
	require.NoError(t, err)

	saved, err := store.SaveAssessment(ctx, domain.AssessmentRecord{PatientID: patient.ID, RiskLevel: domain.LevelLow})
	require.NoError(t, err)
	assert.True(t, saved.AssessedAt.Equal(baseTime))
}

func TestDeletePatient_RemovesHistory(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	patient, err := store.CreatePatient(ctx, samplePatient())
	require.NoError(t, err)
	_, err = store.SaveAssessment(ctx, domain.AssessmentRecord{PatientID: patient.ID, RiskLevel: domain.LevelLow})
	require.NoError(t, err)

	require.NoError(t, store.DeletePatient(ctx, patient.ID))

	_, err = store.GetPatient(ctx, patient.ID)
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)

	history, err := store.AssessmentHistory(ctx, patient.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, store.DeletePatient(ctx, patient.ID), domain.ErrPatientNotFound)
}

func TestCheckReadiness(t *testing.T) {
	store, _ := setupTestStore(t)
	require.NoError(t, store.CheckReadiness(context.Background()))

	require.NoError(t, store.Close())
	assert.Error(t, store.CheckReadiness(context.Background()))
}
