package cdn

import (
	"testing"

	"concord/api/internal/snowflake"
)

func TestProfileImageKey(t *testing.T) {
	user := snowflake.Pack(1000, 3, 1)
	img := snowflake.Pack(2000, 3, 7)

	key := ProfileImageKey(user, img)
	want := "users/2097158145/pfp/4194310151.png"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestProfileImageKeyChangesWithImage(t *testing.T) {
	user := snowflake.Pack(1000, 3, 1)
	first := ProfileImageKey(user, snowflake.Pack(2000, 3, 1))
	second := ProfileImageKey(user, snowflake.Pack(2001, 3, 1))
	if first == second {
		t.Fatalf("expected distinct keys for distinct image ids, got %q", first)
	}
}
