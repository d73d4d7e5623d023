package search

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a plainto_tsquery over message content, ranked by ts_rank and
// snippeted with ts_headline. Guild filtering goes through the channels table.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	where := "to_tsvector('english', m.content) @@ " + tsQuery
	if q.FilterGuildID != "" {
		guildID, err := strconv.ParseInt(q.FilterGuildID, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("pgfts: bad guild filter %q", q.FilterGuildID)
		}
		where += fmt.Sprintf(" AND c.guild_id = $%d", argN)
		args = append(args, guildID)
		argN++
	}
	if q.FilterChannelID != "" {
		channelID, err := strconv.ParseInt(q.FilterChannelID, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("pgfts: bad channel filter %q", q.FilterChannelID)
		}
		where += fmt.Sprintf(" AND m.channel_id = $%d", argN)
		args = append(args, channelID)
		argN++
	}

	fromClause := `FROM messages m
		JOIN channels c ON c.id = m.channel_id
		WHERE ` + where

	countSQL := "SELECT count(*) " + fromClause

	dataSQL := fmt.Sprintf(`SELECT m.id::text, m.channel_id::text, c.guild_id::text, m.author_id::text,
			ts_headline('english', m.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet
		%s
		ORDER BY ts_rank(to_tsvector('english', m.content), %s) DESC, m.id DESC
		LIMIT %d OFFSET %d`,
		tsQuery, fromClause, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.ChannelID, &r.GuildID, &r.AuthorID, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgfts rows: %w", err)
	}

	return results, total, nil
}
