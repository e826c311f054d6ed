// Package users declares the server-side repository contract for user rows.
package users

import (
	"context"

	"github.com/dmitrijs2005/antecipa/internal/server/models"
)

// Repository reads and writes user rows. Lookups return common.ErrorNotFound
// when nothing matches. Token chains are handled by the refreshtokens
// repository.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByRefreshToken returns the owner of the given token value.
	GetUserByRefreshToken(ctx context.Context, token string) (*models.User, error)

	// BumpTokenVersion increments the chain version if it still equals
	// expected, otherwise it fails with common.ErrVersionConflict.
	BumpTokenVersion(ctx context.Context, id string, expected int64) error
}
