package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/dbx"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `u.id, u.username, u.password_hash, u.role, u.token_version, u.created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	// created_at falls back to the column default only when the caller left it unset.
	query := `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		RETURNING token_version, created_at
	`
	created := sql.NullTime{Time: user.CreatedAt, Valid: !user.CreatedAt.IsZero()}
	err := r.db.QueryRowContext(ctx, query, user.ID, user.UserName, user.PasswordHash, user.Role, created).
		Scan(&user.Version, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.username = $1`
	return r.getOne(ctx, query, userName)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetUserByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u JOIN refresh_tokens t ON t.user_id = u.id WHERE t.token = $1`
	return r.getOne(ctx, query, token)
}

func (r *PostgresRepository) BumpTokenVersion(ctx context.Context, id string, expected int64) error {
	query := `UPDATE users SET token_version = token_version + 1 WHERE id = $1 AND token_version = $2`

	n, err := dbx.ExecAffected(ctx, r.db, query, id, expected)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.UserName, &user.PasswordHash, &user.Role, &user.Version, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
