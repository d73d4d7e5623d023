package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"concord/api/internal/snowflake"
)

// These tests exercise the ordered-insert transaction against a real
// Postgres. They skip unless TEST_DATABASE_URL points at a database with the
// migrations applied (see db/migrations).

func orderingTestDB(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgres(db)
}

func orderingTestGenerator(t *testing.T) *snowflake.Generator {
	t.Helper()
	g, err := snowflake.NewGenerator(1023)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

// seedGuild creates a throwaway user and guild and registers cleanup.
func seedGuild(t *testing.T, s *Postgres, gen *snowflake.Generator) (guildID, userID snowflake.ID) {
	t.Helper()
	ctx := context.Background()

	userID = gen.Generate()
	email := fmt.Sprintf("ordering-%d@test.invalid", userID)
	if _, err := s.RegisterUser(ctx, userID, "ordering-test", "x", email); err != nil {
		t.Fatalf("register user: %v", err)
	}
	guildID = gen.Generate()
	if err := s.CreateGuild(ctx, guildID, userID, "ordering test guild"); err != nil {
		t.Fatalf("create guild: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.Exec(`DELETE FROM guilds WHERE id = $1`, int64(guildID))
		_, _ = s.db.Exec(`DELETE FROM users WHERE id = $1`, int64(userID))
	})
	return guildID, userID
}

func channelPositions(t *testing.T, s *Postgres, guildID snowflake.ID) map[snowflake.ID]int64 {
	t.Helper()
	rows, err := s.db.Query(`SELECT id, position FROM channels WHERE guild_id = $1`, int64(guildID))
	if err != nil {
		t.Fatalf("query positions: %v", err)
	}
	defer rows.Close()

	positions := make(map[snowflake.ID]int64)
	for rows.Next() {
		var id snowflake.ID
		var pos int64
		if err := rows.Scan(&id, &pos); err != nil {
			t.Fatalf("scan position: %v", err)
		}
		positions[id] = pos
	}
	return positions
}

// assertTotalOrder fails unless the positions are pairwise distinct and
// contiguous starting at 1.
func assertTotalOrder(t *testing.T, positions map[snowflake.ID]int64) {
	t.Helper()
	seen := make(map[int64]snowflake.ID, len(positions))
	for id, pos := range positions {
		if other, dup := seen[pos]; dup {
			t.Fatalf("position %d shared by %d and %d", pos, id, other)
		}
		seen[pos] = id
	}
	for want := int64(1); want <= int64(len(positions)); want++ {
		if _, ok := seen[want]; !ok {
			t.Fatalf("positions not contiguous: missing %d in %v", want, positions)
		}
	}
}

func TestChannelInsertBeforeSemantics(t *testing.T) {
	s := orderingTestDB(t)
	gen := orderingTestGenerator(t)
	guildID, _ := seedGuild(t, s, gen)
	ctx := context.Background()

	first, second, third := gen.Generate(), gen.Generate(), gen.Generate()
	for i, id := range []snowflake.ID{first, second, third} {
		if err := s.CreateChannel(ctx, id, guildID, fmt.Sprintf("general-%d", i), nil); err != nil {
			t.Fatalf("append channel %d: %v", i, err)
		}
	}

	// Insert before the middle channel: expect first, inserted, second, third.
	inserted := gen.Generate()
	if err := s.CreateChannel(ctx, inserted, guildID, "inserted", &second); err != nil {
		t.Fatalf("insert before: %v", err)
	}

	channels, err := s.ListChannels(ctx, guildID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	wantOrder := []snowflake.ID{first, inserted, second, third}
	if len(channels) != len(wantOrder) {
		t.Fatalf("got %d channels, want %d", len(channels), len(wantOrder))
	}
	for i, want := range wantOrder {
		if channels[i].ID != want {
			t.Fatalf("position %d: got %d, want %d", i, channels[i].ID, want)
		}
	}
	assertTotalOrder(t, channelPositions(t, s, guildID))
}

func TestChannelInsertBeforeForeignScopeFails(t *testing.T) {
	s := orderingTestDB(t)
	gen := orderingTestGenerator(t)
	guildID, _ := seedGuild(t, s, gen)
	otherGuildID, _ := seedGuild(t, s, gen)
	ctx := context.Background()

	foreign := gen.Generate()
	if err := s.CreateChannel(ctx, foreign, otherGuildID, "foreign", nil); err != nil {
		t.Fatalf("append foreign channel: %v", err)
	}
	resident := gen.Generate()
	if err := s.CreateChannel(ctx, resident, guildID, "resident", nil); err != nil {
		t.Fatalf("append resident channel: %v", err)
	}

	// Reference in another guild.
	err := s.CreateChannel(ctx, gen.Generate(), guildID, "bad", &foreign)
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("foreign reference: got %v, want ErrReferenceNotFound", err)
	}

	// Reference that does not exist at all.
	missing := gen.Generate()
	err = s.CreateChannel(ctx, gen.Generate(), guildID, "bad", &missing)
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("missing reference: got %v, want ErrReferenceNotFound", err)
	}

	// Nothing was mutated.
	positions := channelPositions(t, s, guildID)
	if len(positions) != 1 || positions[resident] != 1 {
		t.Fatalf("failed insert mutated scope: %v", positions)
	}
}

func TestChannelConcurrentAppends(t *testing.T) {
	s := orderingTestDB(t)
	gen := orderingTestGenerator(t)
	guildID, _ := seedGuild(t, s, gen)
	ctx := context.Background()

	const workers = 50
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		id := gen.Generate()
		name := fmt.Sprintf("chan-%d", i)
		go func() {
			defer wg.Done()
			errs <- s.CreateChannel(ctx, id, guildID, name, nil)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append: %v", err)
		}
	}

	positions := channelPositions(t, s, guildID)
	if len(positions) != workers {
		t.Fatalf("got %d channels, want %d", len(positions), workers)
	}
	assertTotalOrder(t, positions)
}

func TestChannelConcurrentInsertBefore(t *testing.T) {
	s := orderingTestDB(t)
	gen := orderingTestGenerator(t)
	guildID, _ := seedGuild(t, s, gen)
	ctx := context.Background()

	anchor := gen.Generate()
	if err := s.CreateChannel(ctx, anchor, guildID, "anchor", nil); err != nil {
		t.Fatalf("append anchor: %v", err)
	}

	// Everyone wants the anchor's slot at once.
	const workers = 20
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		id := gen.Generate()
		name := fmt.Sprintf("before-%d", i)
		go func() {
			defer wg.Done()
			errs <- s.CreateChannel(ctx, id, guildID, name, &anchor)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent insert before: %v", err)
		}
	}

	positions := channelPositions(t, s, guildID)
	if len(positions) != workers+1 {
		t.Fatalf("got %d channels, want %d", len(positions), workers+1)
	}
	assertTotalOrder(t, positions)

	// The anchor ended up after every contender.
	for id, pos := range positions {
		if id != anchor && pos >= positions[anchor] {
			t.Fatalf("channel %d at %d not before anchor at %d", id, pos, positions[anchor])
		}
	}
}

func TestMembershipOrderedAppend(t *testing.T) {
	s := orderingTestDB(t)
	gen := orderingTestGenerator(t)
	ctx := context.Background()

	_, userID := seedGuild(t, s, gen)

	var joined []snowflake.ID
	for i := 0; i < 3; i++ {
		guildID, _ := seedGuild(t, s, gen)
		if err := s.JoinGuild(ctx, gen.Generate(), guildID, userID); err != nil {
			t.Fatalf("join guild %d: %v", i, err)
		}
		joined = append(joined, guildID)
	}
	t.Cleanup(func() {
		_, _ = s.db.Exec(`DELETE FROM guild_members WHERE user_id = $1`, int64(userID))
	})

	guilds, err := s.JoinedGuilds(ctx, userID)
	if err != nil {
		t.Fatalf("joined guilds: %v", err)
	}
	if len(guilds) != len(joined) {
		t.Fatalf("got %d guilds, want %d", len(guilds), len(joined))
	}
	for i, want := range joined {
		if guilds[i].ID != want {
			t.Fatalf("membership order %d: got %d, want %d", i, guilds[i].ID, want)
		}
	}
}

func TestJoinMissingScopeFails(t *testing.T) {
	s := orderingTestDB(t)
	gen := orderingTestGenerator(t)
	guildID, _ := seedGuild(t, s, gen)
	ctx := context.Background()

	ghost := gen.Generate()
	err := s.JoinGuild(ctx, gen.Generate(), guildID, ghost)
	if !errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("join with missing user: got %v, want ErrScopeNotFound", err)
	}
}
