package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/services/placement"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// PlacementHandler serves the /placements routes.
type PlacementHandler struct {
	service *placement.Service
	logger  ectologger.Logger
}

func NewPlacementHandler(service *placement.Service, logger ectologger.Logger) *PlacementHandler {
	return &PlacementHandler{service: service, logger: logger}
}

// Register mounts the routes on a group that already resolves the caller's access.
func (h *PlacementHandler) Register(g *echo.Group) {
	placements := g.Group("/placements")
	placements.GET("", h.List)
	placements.POST("", h.Create)
	placements.POST("/from-application/:application_id", h.CreateFromApplication)
	placements.GET("/:id", h.Get)
	placements.PATCH("/:id", h.Update)
	placements.DELETE("/:id", h.Delete)
}

func (h *PlacementHandler) List(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	page, err := ParsePagination(c)
	if err != nil {
		return err
	}
	filters, err := placementFilters(c)
	if err != nil {
		return err
	}

	result, err := h.service.ListPlacements(c.Request().Context(), access, filters, page)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

func placementFilters(c echo.Context) (models.PlacementFilters, error) {
	filters := models.PlacementFilters{
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sort_by"),
		SortOrder: models.SortOrder(c.QueryParam("sort_order")),
	}

	if value := c.QueryParam("status"); value != "" {
		status := models.PlacementStatus(value)
		if !status.IsValid() {
			return filters, apperrors.Validation("invalid status %q", value)
		}
		filters.Status = &status
	}

	var err error
	if filters.JobID, err = QueryUUID(c, "job_id"); err != nil {
		return filters, err
	}
	if filters.CandidateID, err = QueryUUID(c, "candidate_id"); err != nil {
		return filters, err
	}
	return filters, nil
}

func (h *PlacementHandler) Get(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.service.GetPlacement(c.Request().Context(), access, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

func (h *PlacementHandler) Create(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	input, err := utils.BindRequest[models.CreatePlacementInput](c)
	if err != nil {
		return err
	}

	result, err := h.service.CreatePlacement(c.Request().Context(), access, input)
	if err != nil {
		return err
	}
	return CreatedResponse(c, result)
}

func (h *PlacementHandler) CreateFromApplication(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	applicationID, err := ParseUUID(c, "application_id")
	if err != nil {
		return err
	}

	var input models.FromApplicationInput
	if c.Request().ContentLength > 0 {
		if input, err = utils.BindRequest[models.FromApplicationInput](c); err != nil {
			return err
		}
	}

	result, err := h.service.CreatePlacementFromApplication(c.Request().Context(), access, applicationID, input)
	if err != nil {
		return err
	}
	return CreatedResponse(c, result)
}

func (h *PlacementHandler) Update(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	patch, err := utils.BindRequest[models.PlacementPatch](c)
	if err != nil {
		return err
	}

	result, err := h.service.UpdatePlacement(c.Request().Context(), access, id, patch)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

type deletedResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Delete cancels the placement. Placements are financial records and are never removed.
func (h *PlacementHandler) Delete(c echo.Context) error {
	access, err := GetAccess(c)
	if err != nil {
		return err
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.service.DeletePlacement(c.Request().Context(), access, id); err != nil {
		return err
	}
	return SuccessResponse(c, deletedResponse{Message: "placement cancelled", ID: id.String()})
}
