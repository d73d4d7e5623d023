package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"concord/api/internal/snowflake"
)

// orderedList describes one scoped ordered sequence: rows of table carry a
// position column that is unique per scopeColumn value. lockTable is the
// parent table whose row is locked FOR UPDATE to serialize inserts into one
// scope; inserts into distinct scopes never contend.
type orderedList struct {
	table      string
	scopeCol   string
	lockTable  string
	insertStmt string
}

var channelOrder = orderedList{
	table:      "channels",
	scopeCol:   "guild_id",
	lockTable:  "guilds",
	insertStmt: `INSERT INTO channels (id, guild_id, name, position) VALUES ($1, $2, $3, $4)`,
}

var membershipOrder = orderedList{
	table:      "guild_members",
	scopeCol:   "user_id",
	lockTable:  "users",
	insertStmt: `INSERT INTO guild_members (id, user_id, guild_id, position) VALUES ($1, $2, $3, $4)`,
}

// insertOrdered places a new row into the list, before the referenced row or
// at the end when before is nil. The shift and the insert commit atomically:
// either the scope's ordering moves to the next total order or nothing
// changes. Position uniqueness within the scope holds at every observable
// instant; the per-scope unique constraint is deferred so the bulk shift can
// pass through transient duplicates inside the transaction.
//
// extra is the remaining column value of the insert statement (channel name,
// guild id of a membership).
func (s *Postgres) insertOrdered(ctx context.Context, list orderedList, newID, scope snowflake.ID, before *snowflake.ID, extra any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ordered insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize all inserts into this scope. Without the lock two
	// concurrent appends read the same MAX(position) and collide.
	lock := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, list.lockTable)
	var lockedID int64
	if err := tx.QueryRowContext(ctx, lock, int64(scope)).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrScopeNotFound
		}
		return fmt.Errorf("lock scope %d: %w", scope, err)
	}

	var position int64
	if before != nil {
		// The new row takes the reference's position; the reference and
		// everything after it move down one.
		query := fmt.Sprintf(`SELECT position FROM %s WHERE id = $1 AND %s = $2`, list.table, list.scopeCol)
		err := tx.QueryRowContext(ctx, query, int64(*before), int64(scope)).Scan(&position)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReferenceNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve ordering reference: %w", err)
		}

		shift := fmt.Sprintf(`UPDATE %s SET position = position + 1 WHERE %s = $1 AND position >= $2`, list.table, list.scopeCol)
		if _, err := tx.ExecContext(ctx, shift, int64(scope), position); err != nil {
			return fmt.Errorf("shift ordered rows: %w", err)
		}
	} else {
		// Append: 1 + MAX(position), or 1 in an empty scope.
		query := fmt.Sprintf(`SELECT COALESCE(MAX(position), 0) + 1 FROM %s WHERE %s = $1`, list.table, list.scopeCol)
		if err := tx.QueryRowContext(ctx, query, int64(scope)).Scan(&position); err != nil {
			return fmt.Errorf("compute append position: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, list.insertStmt, int64(newID), int64(scope), extra, position)
	if err != nil {
		return fmt.Errorf("insert ordered row: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("ordered insert rows affected: %w", err)
	} else if affected != 1 {
		return ErrNotInserted
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ordered insert: %w", err)
	}
	return nil
}
