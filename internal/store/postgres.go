package store

import (
	"context"
	"database/sql"
	"time"

	"concord/api/internal/snowflake"
)

// Postgres is the service's transactional store. Every multi-step write runs
// inside a single transaction so callers never observe partial effects.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) DB() *sql.DB {
	return s.db
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// nowMillis is the timestamp written into created_at/updated_at columns,
// milliseconds since the snowflake epoch.
func nowMillis() int64 {
	return time.Now().UnixMilli() - snowflake.Epoch
}
