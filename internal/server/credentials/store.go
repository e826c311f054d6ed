// Package credentials holds the credential store the session engine reads
// users and their refresh-token chains from, with PostgreSQL, Redis and
// in-memory implementations.
package credentials

import (
	"context"

	"github.com/dmitrijs2005/antecipa/internal/server/models"
)

// Store loads and persists users together with their whole token chain.
//
// Lookups return common.ErrorNotFound when nothing matches. Persist replaces
// the stored chain atomically and only if user.Version still equals the
// stored version; otherwise it fails with common.ErrVersionConflict. On
// success user.Version is advanced to the new stored value.
type Store interface {
	FindUserByToken(ctx context.Context, token string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	Persist(ctx context.Context, user *models.User) error
}
