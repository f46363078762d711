package sourcer_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/fakes"
	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/services/sourcer"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	directory *fakes.Directory
	records   *fakes.Sourcers
	emitter   *fakes.Emitter
	locker    *fakes.Locker
	service   *sourcer.Service
	companyID uuid.UUID

	organizationID uuid.UUID
}

func newFixture(kind models.SubjectKind) *fixture {
	f := &fixture{
		directory: fakes.NewDirectory(),
		records:   fakes.NewSourcers(kind),
		emitter:   &fakes.Emitter{},
		locker:    &fakes.Locker{},
	}
	f.companyID = uuid.New()
	f.organizationID = uuid.New()
	f.directory.Companies[f.companyID] = &models.Company{ID: f.companyID, OrganizationID: f.organizationID, Name: "Acme"}
	f.records.CompanyOrganizations[f.companyID] = f.organizationID

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f.service = sourcer.NewService(f.records, f.directory, f.locker, f.emitter, logger).
		WithClock(func() time.Time { return now })
	return f
}

func recruiterAccess(recruiterID uuid.UUID) *models.AccessContext {
	return &models.AccessContext{UserID: uuid.New(), RecruiterID: &recruiterID, Roles: []models.Role{models.RoleRecruiter}}
}

func companyAdminAccess(organizationID uuid.UUID) *models.AccessContext {
	return &models.AccessContext{UserID: uuid.New(), OrganizationIDs: []uuid.UUID{organizationID}, Roles: []models.Role{models.RoleCompanyAdmin}}
}

func adminAccess() *models.AccessContext {
	return &models.AccessContext{UserID: uuid.New(), IsPlatformAdmin: true, Roles: []models.Role{models.RolePlatformAdmin}}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, status, httperror.GetStatusCode(err), "unexpected error: %v", err)
}

func TestService_Create(t *testing.T) {
	t.Run("recruiter claims for themselves", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)

		record, err := f.service.Create(context.Background(), recruiterAccess(recruiterID), models.CreateSourcerInput{SubjectID: f.companyID})
		require.NoError(t, err)
		assert.Equal(t, recruiterID, record.RecruiterID)
		assert.Equal(t, models.SourcerStatusActive, record.Status)
		assert.Equal(t, now, record.RelationshipStartDate)
		assert.Nil(t, record.ProtectionExpiresAt)
		assert.Equal(t, []string{"company:" + f.companyID.String()}, f.locker.Keys)
		assert.Equal(t, []events.EventType{events.EventTypeCompanySourced}, f.emitter.Types())
	})

	t.Run("recruiter cannot assign another recruiter", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		self := f.directory.AddRecruiter(models.RecruiterStatusActive)
		other := f.directory.AddRecruiter(models.RecruiterStatusActive)

		_, err := f.service.Create(context.Background(), recruiterAccess(self), models.CreateSourcerInput{SubjectID: f.companyID, RecruiterID: &other})
		assertStatus(t, err, http.StatusForbidden)
		assert.Empty(t, f.records.Records)
		assert.Empty(t, f.emitter.Events)
	})

	t.Run("company users cannot claim", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		access := &models.AccessContext{UserID: uuid.New(), OrganizationIDs: []uuid.UUID{uuid.New()}, Roles: []models.Role{models.RoleCompanyAdmin}}

		_, err := f.service.Create(context.Background(), access, models.CreateSourcerInput{SubjectID: f.companyID})
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("admin must name the recruiter", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		_, err := f.service.Create(context.Background(), adminAccess(), models.CreateSourcerInput{SubjectID: f.companyID})
		assertStatus(t, err, http.StatusBadRequest)

		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		record, err := f.service.Create(context.Background(), adminAccess(), models.CreateSourcerInput{SubjectID: f.companyID, RecruiterID: &recruiterID})
		require.NoError(t, err)
		assert.Equal(t, recruiterID, record.RecruiterID)
	})

	t.Run("second active sourcer conflicts until the first is terminated", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		first := f.directory.AddRecruiter(models.RecruiterStatusActive)
		second := f.directory.AddRecruiter(models.RecruiterStatusActive)

		claimed, err := f.service.Create(context.Background(), recruiterAccess(first), models.CreateSourcerInput{SubjectID: f.companyID})
		require.NoError(t, err)

		_, err = f.service.Create(context.Background(), recruiterAccess(second), models.CreateSourcerInput{SubjectID: f.companyID})
		assertStatus(t, err, http.StatusConflict)
		assert.Contains(t, err.Error(), "already has a sourcer assigned")

		terminated := models.SourcerStatusTerminated
		_, err = f.service.Update(context.Background(), recruiterAccess(first), claimed.ID, models.SourcerPatch{Status: &terminated})
		require.NoError(t, err)

		_, err = f.service.Create(context.Background(), recruiterAccess(second), models.CreateSourcerInput{SubjectID: f.companyID})
		require.NoError(t, err)
	})

	t.Run("busy lock is a conflict", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		f.locker.Err = redis.ErrLockNotAcquired

		_, err := f.service.Create(context.Background(), recruiterAccess(recruiterID), models.CreateSourcerInput{SubjectID: f.companyID})
		assertStatus(t, err, http.StatusConflict)
	})

	t.Run("protection window", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		days := 30

		record, err := f.service.Create(context.Background(), recruiterAccess(recruiterID), models.CreateSourcerInput{SubjectID: f.companyID, ProtectionWindowDays: &days})
		require.NoError(t, err)
		require.NotNil(t, record.ProtectionExpiresAt)
		assert.Equal(t, now.AddDate(0, 0, 30), *record.ProtectionExpiresAt)
	})

	t.Run("expiry before start is rejected", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		past := now.Add(-time.Hour)

		_, err := f.service.Create(context.Background(), recruiterAccess(recruiterID), models.CreateSourcerInput{SubjectID: f.companyID, ProtectionExpiresAt: &past})
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("unknown subject", func(t *testing.T) {
		f := newFixture(models.SubjectCandidate)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)

		_, err := f.service.Create(context.Background(), recruiterAccess(recruiterID), models.CreateSourcerInput{SubjectID: uuid.New()})
		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("missing caller", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		_, err := f.service.Create(context.Background(), nil, models.CreateSourcerInput{SubjectID: f.companyID})
		assertStatus(t, err, http.StatusUnauthorized)
	})
}

func TestService_IsActive(t *testing.T) {
	tests := []struct {
		name            string
		status          models.SourcerStatus
		recruiterStatus models.RecruiterStatus
		expiresAt       *time.Time
		expected        bool
	}{
		{name: "active record and active recruiter", status: models.SourcerStatusActive, recruiterStatus: models.RecruiterStatusActive, expected: true},
		{name: "suspended recruiter forfeits credit", status: models.SourcerStatusActive, recruiterStatus: models.RecruiterStatusSuspended, expected: false},
		{name: "terminated record", status: models.SourcerStatusTerminated, recruiterStatus: models.RecruiterStatusActive, expected: false},
		{name: "expired protection", status: models.SourcerStatusActive, recruiterStatus: models.RecruiterStatusActive, expiresAt: timePtr(now.Add(-time.Minute)), expected: false},
		{name: "unexpired protection", status: models.SourcerStatusActive, recruiterStatus: models.RecruiterStatusActive, expiresAt: timePtr(now.Add(time.Hour)), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(models.SubjectCandidate)
			subjectID := uuid.New()
			recruiterID := f.directory.AddRecruiter(tt.recruiterStatus)
			f.records.Add(models.SourcerRecord{SubjectID: subjectID, RecruiterID: recruiterID, Status: tt.status, ProtectionExpiresAt: tt.expiresAt})

			active, err := f.service.IsActive(context.Background(), subjectID)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, active)
		})
	}
}

func TestService_CheckProtectionStatus(t *testing.T) {
	f := newFixture(models.SubjectCompany)
	recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)

	status, err := f.service.CheckProtectionStatus(context.Background(), f.companyID)
	require.NoError(t, err)
	assert.False(t, status.HasProtection)
	assert.Nil(t, status.SourcerRecruiterID)

	start := now.AddDate(0, -2, 0)
	f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: recruiterID, Status: models.SourcerStatusActive, RelationshipStartDate: start})

	status, err = f.service.CheckProtectionStatus(context.Background(), f.companyID)
	require.NoError(t, err)
	assert.True(t, status.HasProtection)
	assert.Equal(t, recruiterID, *status.SourcerRecruiterID)
	assert.Equal(t, start, *status.SourcedAt)
}

func TestService_Update(t *testing.T) {
	t.Run("termination stamps the end date", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		record := f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: recruiterID, Status: models.SourcerStatusActive})

		terminated := models.SourcerStatusTerminated
		reason := "client churned"
		updated, err := f.service.Update(context.Background(), recruiterAccess(recruiterID), record.ID, models.SourcerPatch{Status: &terminated, TerminationReason: &reason})
		require.NoError(t, err)
		assert.Equal(t, terminated, updated.Status)
		require.NotNil(t, updated.RelationshipEndDate)
		assert.Equal(t, now, *updated.RelationshipEndDate)

		require.Len(t, f.emitter.Events, 1)
		assert.Equal(t, events.EventTypeCompanySourcerUpdated, f.emitter.Events[0].Type)
		assert.Equal(t, []string{"status", "termination_reason", "relationship_end_date"}, f.emitter.Events[0].Fields)
	})

	t.Run("other recruiters see not found", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		owner := f.directory.AddRecruiter(models.RecruiterStatusActive)
		record := f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: owner, Status: models.SourcerStatusActive})

		declined := models.SourcerStatusDeclined
		_, err := f.service.Update(context.Background(), recruiterAccess(uuid.New()), record.ID, models.SourcerPatch{Status: &declined})
		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("empty patch", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		_, err := f.service.Update(context.Background(), adminAccess(), uuid.New(), models.SourcerPatch{})
		assertStatus(t, err, http.StatusBadRequest)
	})
}

func TestService_UpdateActivation(t *testing.T) {
	active := models.SourcerStatusActive

	tests := []struct {
		name   string
		status models.SourcerStatus
	}{
		{"pending claim", models.SourcerStatusPending},
		{"terminated claim", models.SourcerStatusTerminated},
		{"declined claim", models.SourcerStatusDeclined},
	}
	for _, tt := range tests {
		t.Run("record holder cannot activate a "+tt.name, func(t *testing.T) {
			f := newFixture(models.SubjectCompany)
			recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
			record := f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: recruiterID, Status: tt.status})

			_, err := f.service.Update(context.Background(), recruiterAccess(recruiterID), record.ID, models.SourcerPatch{Status: &active})
			assertStatus(t, err, http.StatusForbidden)
			assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
			assert.Equal(t, tt.status, f.records.Records[record.ID].Status)
			assert.Empty(t, f.emitter.Events)
		})
	}

	t.Run("company admin activates a pending claim under the subject lock", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		record := f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: recruiterID, Status: models.SourcerStatusPending})

		updated, err := f.service.Update(context.Background(), companyAdminAccess(f.organizationID), record.ID, models.SourcerPatch{Status: &active})
		require.NoError(t, err)
		assert.Equal(t, active, updated.Status)
		assert.Equal(t, []string{"company:" + f.companyID.String()}, f.locker.Keys)
		assert.Equal(t, []events.EventType{events.EventTypeCompanySourcerUpdated}, f.emitter.Types())
	})

	t.Run("candidate activates a claim on themselves", func(t *testing.T) {
		f := newFixture(models.SubjectCandidate)
		candidateID := uuid.New()
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		record := f.records.Add(models.SourcerRecord{SubjectID: candidateID, RecruiterID: recruiterID, Status: models.SourcerStatusPending})

		access := &models.AccessContext{UserID: uuid.New(), CandidateID: &candidateID, Roles: []models.Role{models.RoleCandidate}}
		updated, err := f.service.Update(context.Background(), access, record.ID, models.SourcerPatch{Status: &active})
		require.NoError(t, err)
		assert.Equal(t, active, updated.Status)
	})

	t.Run("reactivation conflicts with another active sourcer", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		first := f.directory.AddRecruiter(models.RecruiterStatusActive)
		second := f.directory.AddRecruiter(models.RecruiterStatusActive)
		old := f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: first, Status: models.SourcerStatusTerminated})
		f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: second, Status: models.SourcerStatusActive})

		_, err := f.service.Update(context.Background(), adminAccess(), old.ID, models.SourcerPatch{Status: &active})
		assertStatus(t, err, http.StatusConflict)
		assert.Contains(t, err.Error(), "already has a sourcer assigned")
		assert.Equal(t, []string{"company:" + f.companyID.String()}, f.locker.Keys)
		assert.Equal(t, models.SourcerStatusTerminated, f.records.Records[old.ID].Status)
	})

	t.Run("re-sending active on an active record skips the claim check", func(t *testing.T) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		record := f.records.Add(models.SourcerRecord{SubjectID: f.companyID, RecruiterID: recruiterID, Status: models.SourcerStatusActive})

		_, err := f.service.Update(context.Background(), recruiterAccess(recruiterID), record.ID, models.SourcerPatch{Status: &active})
		require.NoError(t, err)
		assert.Empty(t, f.locker.Keys)
	})
}

func TestService_UpdateProtection(t *testing.T) {
	expiresAt := now.AddDate(0, 0, 30)

	setup := func(t *testing.T) (*fixture, uuid.UUID, *models.SourcerRecord) {
		f := newFixture(models.SubjectCompany)
		recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
		record := f.records.Add(models.SourcerRecord{
			SubjectID:             f.companyID,
			RecruiterID:           recruiterID,
			Status:                models.SourcerStatusActive,
			RelationshipStartDate: now.AddDate(0, 0, -10),
			ProtectionExpiresAt:   &expiresAt,
		})
		return f, recruiterID, record
	}

	t.Run("record holder cannot extend protection", func(t *testing.T) {
		f, recruiterID, record := setup(t)
		extended := now.AddDate(10, 0, 0)

		_, err := f.service.Update(context.Background(), recruiterAccess(recruiterID), record.ID, models.SourcerPatch{ProtectionExpiresAt: &extended})
		assertStatus(t, err, http.StatusForbidden)
		assert.Equal(t, expiresAt, *f.records.Records[record.ID].ProtectionExpiresAt)
	})

	t.Run("record holder may shorten protection", func(t *testing.T) {
		f, recruiterID, record := setup(t)
		shortened := now.AddDate(0, 0, 5)

		updated, err := f.service.Update(context.Background(), recruiterAccess(recruiterID), record.ID, models.SourcerPatch{ProtectionExpiresAt: &shortened})
		require.NoError(t, err)
		assert.Equal(t, shortened, *updated.ProtectionExpiresAt)
	})

	t.Run("admin may extend protection", func(t *testing.T) {
		f, _, record := setup(t)
		extended := now.AddDate(1, 0, 0)

		updated, err := f.service.Update(context.Background(), adminAccess(), record.ID, models.SourcerPatch{ProtectionExpiresAt: &extended})
		require.NoError(t, err)
		assert.Equal(t, extended, *updated.ProtectionExpiresAt)
	})
}

func TestService_Delete(t *testing.T) {
	f := newFixture(models.SubjectCandidate)
	recruiterID := f.directory.AddRecruiter(models.RecruiterStatusActive)
	record := f.records.Add(models.SourcerRecord{SubjectID: uuid.New(), RecruiterID: recruiterID, Status: models.SourcerStatusActive})

	err := f.service.Delete(context.Background(), recruiterAccess(recruiterID), record.ID)
	assertStatus(t, err, http.StatusForbidden)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
	assert.Len(t, f.records.Records, 1)

	require.NoError(t, f.service.Delete(context.Background(), adminAccess(), record.ID))
	assert.Empty(t, f.records.Records)
	assert.Equal(t, []events.EventType{events.EventTypeCandidateSourcerRemoved}, f.emitter.Types())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
