// Package refreshtokens provides a PostgreSQL-backed repository for the
// refresh-token rows that make up each user's chain.
package refreshtokens

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/antecipa/internal/dbx"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts token at the given position of the user's chain.
func (r *PostgresRepository) Create(ctx context.Context, userID string, position int, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, position, created_at, expires_at, created_by_ip,
			revoked_at, revoked_by_ip, reason_revoked, replaced_by_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var revoked sql.NullTime
	if token.Revoked != nil {
		revoked = sql.NullTime{Time: *token.Revoked, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		token.Token, userID, position, token.Created, token.Expires, token.CreatedByIP,
		revoked, nullString(token.RevokedByIP), nullString(token.ReasonRevoked), nullString(token.ReplacedByToken),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByUser returns the user's chain in insertion order. An unknown user
// yields an empty slice.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT token, created_at, expires_at, created_by_ip,
			revoked_at, revoked_by_ip, reason_revoked, replaced_by_token
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.RefreshToken
	for rows.Next() {
		var (
			t                             models.RefreshToken
			revoked                       sql.NullTime
			revokedBy, reason, replacedBy sql.NullString
		)
		if err := rows.Scan(&t.Token, &t.Created, &t.Expires, &t.CreatedByIP,
			&revoked, &revokedBy, &reason, &replacedBy); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if revoked.Valid {
			ts := revoked.Time
			t.Revoked = &ts
		}
		t.RevokedByIP = revokedBy.String
		t.ReasonRevoked = reason.String
		t.ReplacedByToken = replacedBy.String
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// DeleteByUser removes every token of the user.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
