package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/antecipa/internal/server/models"
)

// Repository stores a user's refresh-token chain as ordered rows.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	Create(ctx context.Context, userID string, position int, token *models.RefreshToken) error
	DeleteByUser(ctx context.Context, userID string) error
}
