package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"concord/api/internal/snowflake"
)

// CreateChannel inserts a channel into the guild's ordered channel list.
// With placeBefore set, the new channel takes that channel's slot and the
// rest of the list shifts down; otherwise it is appended at the end.
func (s *Postgres) CreateChannel(ctx context.Context, id, guildID snowflake.ID, name string, placeBefore *snowflake.ID) error {
	return s.insertOrdered(ctx, channelOrder, id, guildID, placeBefore, name)
}

// ListChannels returns the guild's channels in display order.
func (s *Postgres) ListChannels(ctx context.Context, guildID snowflake.ID) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, name
		FROM channels
		WHERE guild_id = $1
		ORDER BY position ASC
	`, int64(guildID))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]Channel, 0)
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.GuildID, &ch.Name); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// GetChannel looks up a channel by id.
func (s *Postgres) GetChannel(ctx context.Context, id snowflake.ID) (Channel, error) {
	var ch Channel
	err := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, name FROM channels WHERE id = $1
	`, int64(id)).Scan(&ch.ID, &ch.GuildID, &ch.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// HasChannelAccess reports whether the user may read and write the channel,
// which in Concord means membership of the channel's guild. A missing
// channel and a foreign channel are indistinguishable on purpose.
func (s *Postgres) HasChannelAccess(ctx context.Context, channelID, userID snowflake.ID) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM channels
			WHERE id = $1
			  AND guild_id IN (SELECT guild_id FROM guild_members WHERE user_id = $2)
		)
	`, int64(channelID), int64(userID)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check channel access: %w", err)
	}
	return ok, nil
}
