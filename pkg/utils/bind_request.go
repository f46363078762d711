package utils

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/apperrors"
)

// BindRequest decodes the request body into T and validates it.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, apperrors.Validation("invalid request body: %s", bindMessage(err))
	}

	if _, err := Validate(v); err != nil {
		return v, apperrors.Validation("%s", err.Error())
	}

	return v, nil
}

func bindMessage(err error) string {
	if he, ok := err.(*echo.HTTPError); ok {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
		if he.Internal != nil {
			return he.Internal.Error()
		}
	}
	return err.Error()
}
