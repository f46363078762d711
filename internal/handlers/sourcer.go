package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/services/sourcer"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// SourcerHandler serves one sourcer registry, /company-sourcers or /candidate-sourcers.
// The subject is named company_id or candidate_id to match.
type SourcerHandler struct {
	service      *sourcer.Service
	logger       ectologger.Logger
	subjectParam string
}

func NewSourcerHandler(service *sourcer.Service, logger ectologger.Logger) *SourcerHandler {
	return &SourcerHandler{
		service:      service,
		logger:       logger,
		subjectParam: string(service.Kind()) + "_id",
	}
}

func (h *SourcerHandler) prefix() string {
	return "/" + string(h.service.Kind()) + "-sourcers"
}

// Register mounts the authenticated routes on protected and the protection check on public.
func (h *SourcerHandler) Register(protected, public *echo.Group) {
	public.GET(h.prefix()+"/check-protection/:"+h.subjectParam, h.CheckProtection)

	g := protected.Group(h.prefix())
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *SourcerHandler) CheckProtection(c echo.Context) error {
	subjectID, err := ParseUUID(c, h.subjectParam)
	if err != nil {
		return err
	}

	status, err := h.service.CheckProtectionStatus(c.Request().Context(), subjectID)
	if err != nil {
		return err
	}
	return SuccessResponse(c, status)
}

func (h *SourcerHandler) List(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	page, err := ParsePagination(c)
	if err != nil {
		return err
	}

	var filters models.SourcerFilters
	if value := c.QueryParam("status"); value != "" {
		status := models.SourcerStatus(value)
		if !status.IsValid() {
			return apperrors.Validation("invalid status %q", value)
		}
		filters.Status = &status
	}
	if filters.SubjectID, err = QueryUUID(c, h.subjectParam); err != nil {
		return err
	}
	if filters.RecruiterID, err = QueryUUID(c, "recruiter_id"); err != nil {
		return err
	}

	result, err := h.service.List(c.Request().Context(), access, filters, page)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

func (h *SourcerHandler) Get(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.service.Get(c.Request().Context(), access, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

type createSourcerRequest struct {
	CompanyID   *uuid.UUID `json:"company_id,omitempty"`
	CandidateID *uuid.UUID `json:"candidate_id,omitempty"`
	models.CreateSourcerInput
}

func (h *SourcerHandler) Create(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	req, err := utils.BindRequest[createSourcerRequest](c)
	if err != nil {
		return err
	}

	subjectID := req.CompanyID
	if h.service.Kind() == models.SubjectCandidate {
		subjectID = req.CandidateID
	}
	if subjectID == nil {
		return apperrors.Validation("%s is required", h.subjectParam)
	}

	input := req.CreateSourcerInput
	input.SubjectID = *subjectID

	result, err := h.service.Create(c.Request().Context(), access, input)
	if err != nil {
		return err
	}
	return CreatedResponse(c, result)
}

func (h *SourcerHandler) Update(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	patch, err := utils.BindRequest[models.SourcerPatch](c)
	if err != nil {
		return err
	}

	result, err := h.service.Update(c.Request().Context(), access, id, patch)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

func (h *SourcerHandler) Delete(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), access, id); err != nil {
		return err
	}
	return NoContentResponse(c)
}
