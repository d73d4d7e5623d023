package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"

	"concord/api/internal/snowflake"
)

func (s *Postgres) GetUser(ctx context.Context, id snowflake.ID) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, discrim, profile_img_id, accent_color, pronouns, bio
		FROM users WHERE id = $1
	`, int64(id)).Scan(&u.ID, &u.Username, &u.Discrim, &u.ProfileImgID, &u.AccentColor, &u.Pronouns, &u.Bio)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// RegisterUser creates an account. The discriminator is picked at random
// from whatever is still free for the username; phc is the already-hashed
// password in PHC string form.
func (s *Postgres) RegisterUser(ctx context.Context, id snowflake.ID, username, phc, email string) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin register: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var emailExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&emailExists); err != nil {
		return User{}, fmt.Errorf("check email: %w", err)
	}
	if emailExists {
		return User{}, ErrEmailTaken
	}

	rows, err := tx.QueryContext(ctx, `SELECT discrim FROM users WHERE username = $1`, username)
	if err != nil {
		return User{}, fmt.Errorf("read discriminators: %w", err)
	}
	taken := make(map[int16]struct{})
	for rows.Next() {
		var d int16
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return User{}, fmt.Errorf("scan discriminator: %w", err)
		}
		taken[d] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return User{}, fmt.Errorf("iterate discriminators: %w", err)
	}

	free := make([]int16, 0, 10000-len(taken))
	for d := int16(0); d < 10000; d++ {
		if _, used := taken[d]; !used {
			free = append(free, d)
		}
	}
	if len(free) == 0 {
		return User{}, ErrDiscriminatorsExhausted
	}
	discrim := free[rand.Intn(len(free))]

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, discrim, phc, email) VALUES ($1, $2, $3, $4, $5)
	`, int64(id), username, discrim, phc, email)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return User{}, fmt.Errorf("insert user rows affected: %w", err)
	} else if affected != 1 {
		return User{}, ErrNotInserted
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit register: %w", err)
	}

	return User{ID: id, Username: username, Discrim: discrim}, nil
}

// GetCredentials returns the user id and stored password hash for an email.
// Missing emails surface as ErrNotFound; the caller folds that into its
// invalid-credentials response so emails cannot be probed.
func (s *Postgres) GetCredentials(ctx context.Context, email string) (snowflake.ID, string, error) {
	var id snowflake.ID
	var phc string
	err := s.db.QueryRowContext(ctx, `SELECT id, phc FROM users WHERE email = $1`, email).Scan(&id, &phc)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("get credentials: %w", err)
	}
	return id, phc, nil
}

// GetPasswordHash returns the stored password hash for a user id.
func (s *Postgres) GetPasswordHash(ctx context.Context, userID snowflake.ID) (string, error) {
	var phc string
	err := s.db.QueryRowContext(ctx, `SELECT phc FROM users WHERE id = $1`, int64(userID)).Scan(&phc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return phc, nil
}

// UpdatePassword replaces the stored hash. Token revocation is the caller's
// responsibility.
func (s *Postgres) UpdatePassword(ctx context.Context, userID snowflake.ID, phc string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET phc = $1 WHERE id = $2`, phc, int64(userID))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update password rows affected: %w", err)
	} else if affected != 1 {
		return ErrNotFound
	}
	return nil
}

// SetProfileImage records the snowflake of the user's current profile image
// object in the CDN store.
func (s *Postgres) SetProfileImage(ctx context.Context, userID, imageID snowflake.ID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET profile_img_id = $1 WHERE id = $2`, int64(imageID), int64(userID))
	if err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("set profile image rows affected: %w", err)
	} else if affected != 1 {
		return ErrNotFound
	}
	return nil
}
