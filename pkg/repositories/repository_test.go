package repositories_test

import (
	"context"
	"database/sql/driver"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getMockDB(t *testing.T) (database.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return database.NewDatabaseInstance(sqlx.NewDb(conn, "postgres"), getTestLogger()), mock
}

// assertStatus asserts that err is an HTTP error with the given status code
func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, status, httperror.GetStatusCode(err), "expected %d, got: %d", status, httperror.GetStatusCode(err))
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	assertStatus(t, err, http.StatusNotFound)
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

var placementRowColumns = []string{
	"id", "application_id", "candidate_id", "job_id", "company_id",
	"candidate_recruiter_id", "company_recruiter_id", "job_owner_recruiter_id",
	"candidate_sourcer_recruiter_id", "company_sourcer_recruiter_id",
	"candidate_name", "candidate_email", "job_title", "company_name",
	"salary", "fee_percentage", "placement_fee", "status",
	"start_date", "guarantee_days", "guarantee_expires_at", "created_at", "updated_at",
}

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

// placementRows returns a single stored placement where recruiterID is both candidate
// recruiter and job owner. A share appends the recruiter_share enrichment column.
func placementRows(id, recruiterID uuid.UUID, status models.PlacementStatus, share ...string) *sqlmock.Rows {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	columns := placementRowColumns
	values := []driver.Value{
		id.String(), uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString(),
		recruiterID.String(), nil, recruiterID.String(), nil, nil,
		"Ada Lovelace", "ada@example.com", "Staff Engineer", "Analytical Engines",
		"150000.00", "20.00", "30000.00", string(status),
		start, 90, start.AddDate(0, 0, 90), testNow, testNow,
	}
	if len(share) > 0 {
		columns = append(append([]string{}, placementRowColumns...), "recruiter_share")
		values = append(values, share[0])
	}
	return sqlmock.NewRows(columns).AddRow(values...)
}

func adminAccess() *models.AccessContext {
	return &models.AccessContext{UserID: uuid.New(), IsPlatformAdmin: true, Roles: []models.Role{models.RolePlatformAdmin}}
}

func testContext() context.Context {
	return context.Background()
}
