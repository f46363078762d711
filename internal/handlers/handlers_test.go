package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/fakes"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/services/placement"
	"github.com/Ramsey-B/fern/pkg/services/sourcer"
)

// server wires the handlers over in-memory stores. Callers are looked up by the
// X-User-ID header in the callers map.
type server struct {
	e          *echo.Echo
	callers    map[string]*models.AccessContext
	directory  *fakes.Directory
	placements *fakes.Placements
	companies  *fakes.Sourcers
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	s := &server{
		callers:    map[string]*models.AccessContext{},
		directory:  fakes.NewDirectory(),
		placements: fakes.NewPlacements(),
		companies:  fakes.NewSourcers(models.SubjectCompany),
	}
	emitter := &fakes.Emitter{}

	candidateRegistry := sourcer.NewService(fakes.NewSourcers(models.SubjectCandidate), s.directory, nil, emitter, logger)
	companyRegistry := sourcer.NewService(s.companies, s.directory, &fakes.Locker{}, emitter, logger)
	placements := placement.NewService(s.placements, s.directory, candidateRegistry, companyRegistry, &fakes.Tx{}, emitter, logger, placement.Options{})

	resolver := resolverFunc(func(_ context.Context, identityUserID string) (*models.AccessContext, error) {
		access, ok := s.callers[identityUserID]
		if !ok {
			return nil, apperrors.Authentication("caller identity could not be resolved")
		}
		return access, nil
	})

	s.e = echo.New()
	s.e.HTTPErrorHandler = middleware.Error(logger)
	s.e.Use(middleware.Context(), middleware.HeaderAuth())

	public := s.e.Group("/api/v1")
	protected := s.e.Group("/api/v1", middleware.RequireAccess(resolver))

	handlers.NewPlacementHandler(placements, logger).Register(protected)
	handlers.NewSourcerHandler(companyRegistry, logger).Register(protected, public)
	handlers.NewSourcerHandler(candidateRegistry, logger).Register(protected, public)
	return s
}

type resolverFunc func(ctx context.Context, identityUserID string) (*models.AccessContext, error)

func (f resolverFunc) Resolve(ctx context.Context, identityUserID string) (*models.AccessContext, error) {
	return f(ctx, identityUserID)
}

func (s *server) do(t *testing.T, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if caller != "" {
		req.Header.Set(middleware.HeaderUserID, caller)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) addRecruiter(caller string) uuid.UUID {
	recruiterID := s.directory.AddRecruiter(models.RecruiterStatusActive)
	s.callers[caller] = &models.AccessContext{UserID: uuid.New(), RecruiterID: &recruiterID, Roles: []models.Role{models.RoleRecruiter}}
	return recruiterID
}

func (s *server) addAdmin(caller string) {
	s.callers[caller] = &models.AccessContext{UserID: uuid.New(), IsPlatformAdmin: true, Roles: []models.Role{models.RolePlatformAdmin}}
}

// seedPlacement stores a pending placement credited to recruiterID as job owner.
func (s *server) seedPlacement(recruiterID uuid.UUID) *models.Placement {
	row := &models.Placement{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		CandidateID:   uuid.New(),
		JobID:         uuid.New(),
		CompanyID:     uuid.New(),
		Attribution:   models.Attribution{JobOwnerRecruiterID: &recruiterID},
		Salary:        decimal.NewFromInt(100000),
		FeePercentage: decimal.NewFromInt(20),
		PlacementFee:  decimal.NewFromInt(20000),
		Status:        models.PlacementStatusPending,
		StartDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		GuaranteeDays: 90,
		CreatedAt:     time.Now(),
	}
	s.placements.Rows[row.ID] = row
	return row
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) apperrors.Kind {
	t.Helper()
	var response middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response.Error.Kind
}

func TestPlacementRoutes(t *testing.T) {
	t.Run("missing identity is rejected", func(t *testing.T) {
		s := newServer(t)
		rec := s.do(t, http.MethodGet, "/api/v1/placements", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, apperrors.KindAuthentication, errorKind(t, rec))
	})

	t.Run("list envelope", func(t *testing.T) {
		s := newServer(t)
		recruiterID := s.addRecruiter("r1")
		s.seedPlacement(recruiterID)
		s.seedPlacement(uuid.New())

		rec := s.do(t, http.MethodGet, "/api/v1/placements?limit=500", "r1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var page models.Page[models.Placement]
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Len(t, page.Data, 1)
		assert.Equal(t, 1, page.Pagination.Total)
		assert.Equal(t, 100, page.Pagination.Limit)
		assert.Equal(t, 1, page.Pagination.TotalPages)
	})

	t.Run("invalid filters", func(t *testing.T) {
		s := newServer(t)
		s.addAdmin("admin")

		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/placements?status=archived", "admin", "").Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/placements?job_id=nope", "admin", "").Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/placements?page=two", "admin", "").Code)
	})

	t.Run("get unknown placement", func(t *testing.T) {
		s := newServer(t)
		s.addAdmin("admin")
		rec := s.do(t, http.MethodGet, "/api/v1/placements/"+uuid.NewString(), "admin", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apperrors.KindNotFound, errorKind(t, rec))
	})

	t.Run("patch status", func(t *testing.T) {
		s := newServer(t)
		recruiterID := s.addRecruiter("r1")
		row := s.seedPlacement(recruiterID)

		rec := s.do(t, http.MethodPatch, "/api/v1/placements/"+row.ID.String(), "r1", `{"status":"confirmed","placement_fee":1}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated models.Placement
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, models.PlacementStatusConfirmed, updated.Status)
		assert.True(t, decimal.NewFromInt(20000).Equal(updated.PlacementFee))
	})

	t.Run("invalid transition", func(t *testing.T) {
		s := newServer(t)
		s.addAdmin("admin")
		row := s.seedPlacement(uuid.New())

		rec := s.do(t, http.MethodPatch, "/api/v1/placements/"+row.ID.String(), "admin", `{"status":"completed"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.KindInvalidTransition, errorKind(t, rec))
	})

	t.Run("delete cancels", func(t *testing.T) {
		s := newServer(t)
		s.addAdmin("admin")
		row := s.seedPlacement(uuid.New())

		rec := s.do(t, http.MethodDelete, "/api/v1/placements/"+row.ID.String(), "admin", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"placement cancelled","id":"`+row.ID.String()+`"}`, rec.Body.String())
		assert.Equal(t, models.PlacementStatusCancelled, s.placements.Rows[row.ID].Status)
	})

	t.Run("create validates the body", func(t *testing.T) {
		s := newServer(t)
		s.addAdmin("admin")
		rec := s.do(t, http.MethodPost, "/api/v1/placements", "admin", `{"salary":"100000"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.KindValidation, errorKind(t, rec))
	})
}

func TestSourcerRoutes(t *testing.T) {
	t.Run("claim and check protection", func(t *testing.T) {
		s := newServer(t)
		recruiterID := s.addRecruiter("r1")
		companyID := uuid.New()
		s.directory.Companies[companyID] = &models.Company{ID: companyID, OrganizationID: uuid.New(), Name: "Acme"}

		rec := s.do(t, http.MethodPost, "/api/v1/company-sourcers", "r1", `{"company_id":"`+companyID.String()+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var record models.SourcerRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
		assert.Equal(t, recruiterID, record.RecruiterID)
		require.NotNil(t, record.CompanyID)
		assert.Equal(t, companyID, *record.CompanyID)

		rec = s.do(t, http.MethodGet, "/api/v1/company-sourcers/check-protection/"+companyID.String(), "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var status models.ProtectionStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.HasProtection)
		assert.Equal(t, recruiterID, *status.SourcerRecruiterID)

		rec = s.do(t, http.MethodPost, "/api/v1/company-sourcers", "r1", `{"company_id":"`+companyID.String()+`"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("subject id is required", func(t *testing.T) {
		s := newServer(t)
		s.addRecruiter("r1")
		rec := s.do(t, http.MethodPost, "/api/v1/candidate-sourcers", "r1", `{"company_id":"`+uuid.NewString()+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unprotected candidate", func(t *testing.T) {
		s := newServer(t)
		rec := s.do(t, http.MethodGet, "/api/v1/candidate-sourcers/check-protection/"+uuid.NewString(), "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"has_protection":false}`, rec.Body.String())
	})

	t.Run("only admins delete", func(t *testing.T) {
		s := newServer(t)
		recruiterID := s.addRecruiter("r1")
		s.addAdmin("admin")
		record := s.companies.Add(models.SourcerRecord{SubjectID: uuid.New(), RecruiterID: recruiterID, Status: models.SourcerStatusActive})

		rec := s.do(t, http.MethodDelete, "/api/v1/company-sourcers/"+record.ID.String(), "r1", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(t, http.MethodDelete, "/api/v1/company-sourcers/"+record.ID.String(), "admin", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
