package authapi

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/models"
)

var (
	ErrEmailTaken   = errors.New("email already exists")
	ErrUserNotFound = errors.New("user not found")
)

// UserStore persists accounts of the authentication API
type UserStore interface {
	// Create inserts u, assigning its ID and CreatedAt. It returns
	// ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// List returns all users, newest first
	List(ctx context.Context) ([]models.User, error)
	Close() error
}

// OpenStore opens the store for a database URL: postgres:// URLs use the
// SQL store, anything else is a SQLite path for the gorm store
func OpenStore(ctx context.Context, databaseURL string, logger zerolog.Logger) (UserStore, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return OpenSQLStore(ctx, databaseURL, logger)
	}
	return OpenGormStore(databaseURL, logger)
}
