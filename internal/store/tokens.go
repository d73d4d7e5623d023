package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"concord/api/internal/snowflake"
)

func (s *Postgres) InsertAccessToken(ctx context.Context, rec AccessToken) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO access_tokens (token, user_id, created_at) VALUES ($1, $2, $3)
	`, rec.Token, int64(rec.UserID), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert access token: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert access token rows affected: %w", err)
	} else if affected != 1 {
		return ErrNotInserted
	}
	return nil
}

// LookupAccessToken resolves a token value to its owning user. A missing row
// means the token was revoked or never existed; both surface as ErrNotFound.
func (s *Postgres) LookupAccessToken(ctx context.Context, token int64) (snowflake.ID, error) {
	var userID snowflake.ID
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM access_tokens WHERE token = $1`, token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup access token: %w", err)
	}
	return userID, nil
}

// DeleteAccessToken revokes one session. Deleting a token that is already
// gone is not an error.
func (s *Postgres) DeleteAccessToken(ctx context.Context, token int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete access token: %w", err)
	}
	return nil
}

// DeleteUserAccessTokens revokes every session of one user, e.g. after a
// password change. The revoked token values are returned so caching layers
// can drop them immediately.
func (s *Postgres) DeleteUserAccessTokens(ctx context.Context, userID snowflake.ID) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM access_tokens WHERE user_id = $1 RETURNING token
	`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("delete user access tokens: %w", err)
	}
	defer rows.Close()

	var tokens []int64
	for rows.Next() {
		var token int64
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan revoked token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked tokens: %w", err)
	}
	return tokens, nil
}
