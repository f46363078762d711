package repositories_test

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func TestPlacementRepository_Find(t *testing.T) {
	t.Run("admin reads without scoping", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		id, recruiterID := uuid.New(), uuid.New()
		mock.ExpectQuery(regexp.QuoteMeta("FROM placements WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(placementRows(id, recruiterID, models.PlacementStatusActive))

		placement, err := repo.Find(testContext(), id, adminAccess())
		require.NoError(t, err)
		assert.Equal(t, id, placement.ID)
		assert.Equal(t, models.PlacementStatusActive, placement.Status)
		assert.True(t, decimal.RequireFromString("30000").Equal(placement.PlacementFee))
		assert.Equal(t, []models.AttributionRole{models.RoleCandidateRecruiter, models.RoleJobOwner}, placement.RolesOf(recruiterID))
		assert.Nil(t, placement.RecruiterShare)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recruiter reads are scoped and enriched", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		id, recruiterID := uuid.New(), uuid.New()
		access := &models.AccessContext{
			UserID:      uuid.New(),
			RecruiterID: uuidPtr(recruiterID),
			Roles:       []models.Role{models.RoleRecruiter},
		}

		rows := placementRows(id, recruiterID, models.PlacementStatusPending, "4500.00")
		mock.ExpectQuery(regexp.QuoteMeta("AS recruiter_share FROM placements WHERE id = $2 AND (candidate_recruiter_id = $3 OR company_recruiter_id = $4 OR job_owner_recruiter_id = $5 OR candidate_sourcer_recruiter_id = $6 OR company_sourcer_recruiter_id = $7)")).
			WithArgs(recruiterID, id, recruiterID, recruiterID, recruiterID, recruiterID, recruiterID).
			WillReturnRows(rows)

		placement, err := repo.Find(testContext(), id, access)
		require.NoError(t, err)
		require.NotNil(t, placement.RecruiterShare)
		assert.True(t, decimal.RequireFromString("4500").Equal(*placement.RecruiterShare))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("caller without any visibility sees nothing", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		id := uuid.New()
		mock.ExpectQuery(regexp.QuoteMeta("FROM placements WHERE id = $1 AND 1 = 0")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(placementRowColumns))

		_, err := repo.Find(testContext(), id, &models.AccessContext{UserID: uuid.New()})
		assertNotFound(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("company users see their organizations' jobs", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		id, orgID := uuid.New(), uuid.New()
		access := &models.AccessContext{
			UserID:          uuid.New(),
			OrganizationIDs: []uuid.UUID{orgID},
			Roles:           []models.Role{models.RoleHiringManager},
		}

		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND (job_id IN (SELECT jobs.id FROM jobs JOIN companies ON companies.id = jobs.company_id WHERE companies.organization_id IN ($2)))")).
			WithArgs(id, orgID).
			WillReturnRows(sqlmock.NewRows(placementRowColumns))

		_, err := repo.Find(testContext(), id, access)
		assertNotFound(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPlacementRepository_List(t *testing.T) {
	db, mock := getMockDB(t)
	repo := repositories.NewPlacementRepository(db, getTestLogger())

	status := models.PlacementStatusActive
	filters := models.PlacementFilters{
		Search:    "50%_off",
		Status:    &status,
		SortBy:    "salary; DROP TABLE placements",
		SortOrder: models.SortAsc,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM placements WHERE status = $1 AND (candidate_name ILIKE $2 OR job_title ILIKE $3 OR company_name ILIKE $4)")).
		WithArgs(status, `%50\%\_off%`, `%50\%\_off%`, `%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC LIMIT")).
		WillReturnRows(placementRows(id, uuid.New(), status))

	placements, total, err := repo.List(testContext(), adminAccess(), filters, models.Pagination{Page: 1, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, placements, 1)
	assert.Equal(t, id, placements[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlacementRepository_Create(t *testing.T) {
	t.Run("stores the attribution snapshot", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		placement := &models.Placement{
			ApplicationID: uuid.New(),
			CandidateID:   uuid.New(),
			JobID:         uuid.New(),
			CompanyID:     uuid.New(),
			Attribution:   models.Attribution{CandidateRecruiterID: uuidPtr(uuid.New())},
			Status:        models.PlacementStatusPending,
		}

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO placements (id, application_id, candidate_id, job_id, company_id, candidate_recruiter_id, company_recruiter_id, job_owner_recruiter_id, candidate_sourcer_recruiter_id, company_sourcer_recruiter_id,")).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(testNow, testNow))

		require.NoError(t, repo.Create(testContext(), placement))
		assert.NotEqual(t, uuid.Nil, placement.ID)
		assert.Equal(t, testNow, placement.CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate application is a conflict", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		mock.ExpectQuery("INSERT INTO placements").WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(testContext(), &models.Placement{ApplicationID: uuid.New()})
		assertStatus(t, err, http.StatusConflict)
	})
}

func TestPlacementRepository_Update(t *testing.T) {
	t.Run("conditional transition applies", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		id := uuid.New()
		next, expected := models.PlacementStatusConfirmed, models.PlacementStatusPending

		mock.ExpectQuery(regexp.QuoteMeta("UPDATE placements SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3 RETURNING id,")).
			WithArgs(next, id, expected).
			WillReturnRows(placementRows(id, uuid.New(), next))

		placement, err := repo.Update(testContext(), id, models.PlacementPatch{Status: &next}, &expected)
		require.NoError(t, err)
		assert.Equal(t, next, placement.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race is a conflict", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		id := uuid.New()
		next, expected := models.PlacementStatusConfirmed, models.PlacementStatusPending

		mock.ExpectQuery("UPDATE placements").WillReturnRows(sqlmock.NewRows(placementRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("FROM placements WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(placementRows(id, uuid.New(), models.PlacementStatusCancelled))

		_, err := repo.Update(testContext(), id, models.PlacementPatch{Status: &next}, &expected)
		assertStatus(t, err, http.StatusConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing placement is not found", func(t *testing.T) {
		db, mock := getMockDB(t)
		repo := repositories.NewPlacementRepository(db, getTestLogger())

		id := uuid.New()
		salary := decimal.NewFromInt(100)

		mock.ExpectQuery("UPDATE placements").WillReturnRows(sqlmock.NewRows(placementRowColumns))
		mock.ExpectQuery("FROM placements").WillReturnRows(sqlmock.NewRows(placementRowColumns))

		_, err := repo.Update(testContext(), id, models.PlacementPatch{Salary: &salary}, nil)
		assertNotFound(t, err)
	})
}

func TestPlacementRepository_SoftDelete(t *testing.T) {
	db, mock := getMockDB(t)
	repo := repositories.NewPlacementRepository(db, getTestLogger())

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE placements SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3")).
		WithArgs(models.PlacementStatusCancelled, id, models.PlacementStatusActive).
		WillReturnRows(placementRows(id, uuid.New(), models.PlacementStatusCancelled))

	placement, err := repo.SoftDelete(testContext(), id, models.PlacementStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.PlacementStatusCancelled, placement.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
