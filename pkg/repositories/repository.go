package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/database"
)

// Repository provides the shared database handle and logging for every repository.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}

// q returns the transaction open on ctx, or the database.
func (r *Repository) q(ctx context.Context) database.Queryer {
	return database.Using(ctx, r.db)
}

// fail logs a storage error with its fields and returns a generic internal error.
func (r *Repository) fail(ctx context.Context, err error, fields map[string]any, message string) error {
	r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error(message)
	return apperrors.Internal("%s", message)
}
