package store

import (
	"context"
	"fmt"

	"concord/api/internal/snowflake"
)

func (s *Postgres) InsertMessage(ctx context.Context, id, channelID, authorID snowflake.ID, content string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, author_id, content, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, int64(id), int64(channelID), int64(authorID), content, nowMillis())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert message rows affected: %w", err)
	} else if affected != 1 {
		return ErrNotInserted
	}
	return nil
}

// ListMessages returns a page of a channel's history, newest first. Message
// snowflakes order by creation time, so the id doubles as the sort key and
// as the sent_at source.
func (s *Postgres) ListMessages(ctx context.Context, channelID snowflake.ID, limit, offset int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.channel_id, m.content, m.updated_at,
		       u.id, u.username, u.discrim, u.profile_img_id, u.accent_color, u.pronouns, u.bio
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = $1
		ORDER BY m.id DESC
		LIMIT $2 OFFSET $3
	`, int64(channelID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ChannelID, &m.Content, &m.UpdatedAt,
			&m.Author.ID, &m.Author.Username, &m.Author.Discrim,
			&m.Author.ProfileImgID, &m.Author.AccentColor, &m.Author.Pronouns, &m.Author.Bio,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.SentAt = m.ID.Timestamp()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
