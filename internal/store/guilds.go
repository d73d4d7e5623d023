package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"concord/api/internal/snowflake"
)

func (s *Postgres) CreateGuild(ctx context.Context, id, ownerID snowflake.ID, name string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO guilds (id, owner_id, name) VALUES ($1, $2, $3)
	`, int64(id), int64(ownerID), name)
	if err != nil {
		return fmt.Errorf("insert guild: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert guild rows affected: %w", err)
	} else if affected != 1 {
		return ErrNotInserted
	}
	return nil
}

// GetGuild looks up a guild by id.
func (s *Postgres) GetGuild(ctx context.Context, id snowflake.ID) (Guild, error) {
	var g Guild
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name FROM guilds WHERE id = $1
	`, int64(id)).Scan(&g.ID, &g.OwnerID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Guild{}, ErrNotFound
	}
	if err != nil {
		return Guild{}, fmt.Errorf("get guild: %w", err)
	}
	return g, nil
}

// JoinGuild appends the guild to the user's ordered membership list.
func (s *Postgres) JoinGuild(ctx context.Context, memberID, guildID, userID snowflake.ID) error {
	return s.insertOrdered(ctx, membershipOrder, memberID, userID, nil, int64(guildID))
}

// JoinedGuilds returns the guilds the user is a member of, in the user's
// chosen display order.
func (s *Postgres) JoinedGuilds(ctx context.Context, userID snowflake.ID) ([]Guild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.owner_id, g.name
		FROM guild_members gm
		JOIN guilds g ON g.id = gm.guild_id
		WHERE gm.user_id = $1
		ORDER BY gm.position ASC
	`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("list joined guilds: %w", err)
	}
	defer rows.Close()

	guilds := make([]Guild, 0)
	for rows.Next() {
		var g Guild
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		guilds = append(guilds, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guilds: %w", err)
	}
	return guilds, nil
}

// IsGuildMember reports whether the user belongs to the guild.
func (s *Postgres) IsGuildMember(ctx context.Context, guildID, userID snowflake.ID) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM guild_members WHERE guild_id = $1 AND user_id = $2)
	`, int64(guildID), int64(userID)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check guild membership: %w", err)
	}
	return ok, nil
}
