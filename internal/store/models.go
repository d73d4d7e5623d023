package store

import "concord/api/internal/snowflake"

type User struct {
	ID           snowflake.ID  `json:"id"`
	Username     string        `json:"username"`
	Discrim      int16         `json:"discrim"`
	ProfileImgID *snowflake.ID `json:"profile_img_id"`
	AccentColor  *string       `json:"accent_color"`
	Pronouns     *string       `json:"pronouns"`
	Bio          *string       `json:"bio"`
}

type Guild struct {
	ID      snowflake.ID `json:"id"`
	OwnerID snowflake.ID `json:"owner_id"`
	Name    string       `json:"name"`
}

type Channel struct {
	ID      snowflake.ID `json:"id"`
	GuildID snowflake.ID `json:"guild_id"`
	Name    string       `json:"name"`
}

type GuildMember struct {
	ID      snowflake.ID
	GuildID snowflake.ID
	UserID  snowflake.ID
}

type Message struct {
	ID        snowflake.ID `json:"id"`
	ChannelID snowflake.ID `json:"channel_id"`
	Author    User         `json:"author"`
	Content   string       `json:"content"`
	// SentAt is derived from the message snowflake, milliseconds since the
	// snowflake epoch.
	SentAt    int64 `json:"sent_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// AccessToken is one revocable session row. The random Token value is the
// primary key; deleting the row is the only way to invalidate the session it
// backs, however well-signed the client's envelope still is.
type AccessToken struct {
	Token     int64
	UserID    snowflake.ID
	CreatedAt int64
}
