package credentials

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/antecipa/internal/dbx"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"github.com/dmitrijs2005/antecipa/internal/server/repositories/repomanager"
)

// PostgresStore keeps users and token rows in PostgreSQL.
type PostgresStore struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewPostgresStore(db *sql.DB, repos repomanager.RepositoryManager) *PostgresStore {
	return &PostgresStore{db: db, repos: repos}
}

func (s *PostgresStore) FindUserByToken(ctx context.Context, token string) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetUserByRefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.withChain(ctx, user)
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withChain(ctx, user)
}

func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.withChain(ctx, user)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.repos.Users(s.db).Create(ctx, user)
	return err
}

// Persist bumps the user's token_version and rewrites the chain in one
// transaction.
func (s *PostgresStore) Persist(ctx context.Context, user *models.User) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).BumpTokenVersion(ctx, user.ID, user.Version); err != nil {
			return err
		}

		tokens := s.repos.RefreshTokens(tx)
		if err := tokens.DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("error clearing token chain: %w", err)
		}
		for i, t := range user.RefreshTokens {
			if err := tokens.Create(ctx, user.ID, i, t); err != nil {
				return fmt.Errorf("error storing refresh token: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	user.Version++
	return nil
}

// withChain attaches the token chain. The user row is read first, so a
// chain written by a concurrent Persist always comes with a stale Version
// and the next Persist of this copy conflicts.
func (s *PostgresStore) withChain(ctx context.Context, user *models.User) (*models.User, error) {
	chain, err := s.repos.RefreshTokens(s.db).ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.RefreshTokens = chain
	return user, nil
}
