package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ParseUUID parses a UUID from a path parameter
func ParseUUID(c echo.Context, param string) (uuid.UUID, error) {
	idStr := c.Param(param)
	if idStr == "" {
		return uuid.Nil, apperrors.Validation("missing %s", param)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid %s: must be a valid UUID", param)
	}

	return id, nil
}

// QueryUUID parses an optional UUID query parameter.
func QueryUUID(c echo.Context, param string) (*uuid.UUID, error) {
	value := c.QueryParam(param)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, apperrors.Validation("invalid %s: must be a valid UUID", param)
	}
	return &id, nil
}

// ParsePagination reads page and limit. Out of range values are clamped by the services.
func ParsePagination(c echo.Context) (models.Pagination, error) {
	var page models.Pagination
	var err error

	if value := c.QueryParam("page"); value != "" {
		if page.Page, err = strconv.Atoi(value); err != nil {
			return page, apperrors.Validation("invalid page: must be an integer")
		}
	}
	if value := c.QueryParam("limit"); value != "" {
		if page.Limit, err = strconv.Atoi(value); err != nil {
			return page, apperrors.Validation("invalid limit: must be an integer")
		}
	}
	return page, nil
}

// GetAccess returns the access context resolved by middleware.RequireAccess.
func GetAccess(c echo.Context) (*models.AccessContext, error) {
	access := appctx.GetAccess(c.Request().Context())
	if access == nil {
		return nil, apperrors.Authentication("authentication required")
	}
	return access, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
