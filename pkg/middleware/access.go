package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// AccessResolver builds the access context for an identity provider subject.
type AccessResolver interface {
	Resolve(ctx context.Context, identityUserID string) (*models.AccessContext, error)
}

// RequireAccess resolves the caller's access context once per request. Requests without
// a resolvable identity stop here with 401.
func RequireAccess(resolver AccessResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			access, err := resolver.Resolve(ctx, appctx.GetUserID(ctx))
			if err != nil {
				switch {
				case apperrors.Is(err, apperrors.KindAuthentication):
					metrics.RecordAccessResolution("unauthenticated")
				default:
					metrics.RecordAccessResolution("error")
				}
				return err
			}
			metrics.RecordAccessResolution("resolved")

			c.SetRequest(c.Request().WithContext(appctx.SetAccess(ctx, access)))
			return next(c)
		}
	}
}
