package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"concord/api/internal/auth"
	"concord/api/internal/password"
	"concord/api/internal/search"
	"concord/api/internal/snowflake"
	"concord/api/internal/store"
)

const generalChannelName = "general"

type dataStore interface {
	RegisterUser(ctx context.Context, id snowflake.ID, username, phc, email string) (store.User, error)
	GetUser(ctx context.Context, id snowflake.ID) (store.User, error)
	GetCredentials(ctx context.Context, email string) (snowflake.ID, string, error)
	GetPasswordHash(ctx context.Context, userID snowflake.ID) (string, error)
	UpdatePassword(ctx context.Context, userID snowflake.ID, phc string) error
	SetProfileImage(ctx context.Context, userID, imageID snowflake.ID) error
	CreateGuild(ctx context.Context, id, ownerID snowflake.ID, name string) error
	GetGuild(ctx context.Context, id snowflake.ID) (store.Guild, error)
	JoinGuild(ctx context.Context, memberID, guildID, userID snowflake.ID) error
	JoinedGuilds(ctx context.Context, userID snowflake.ID) ([]store.Guild, error)
	IsGuildMember(ctx context.Context, guildID, userID snowflake.ID) (bool, error)
	CreateChannel(ctx context.Context, id, guildID snowflake.ID, name string, placeBefore *snowflake.ID) error
	GetChannel(ctx context.Context, id snowflake.ID) (store.Channel, error)
	ListChannels(ctx context.Context, guildID snowflake.ID) ([]store.Channel, error)
	HasChannelAccess(ctx context.Context, channelID, userID snowflake.ID) (bool, error)
	InsertMessage(ctx context.Context, id, channelID, authorID snowflake.ID, content string) error
	ListMessages(ctx context.Context, channelID snowflake.ID, limit, offset int64) ([]store.Message, error)
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexMessage(rec search.MessageRecord)
}

type imageStore interface {
	UploadProfileImage(ctx context.Context, userID, imageID snowflake.ID, r io.Reader, size int64) (string, error)
}

// Generators holds one id generator per entity family, so each table gets
// the generator's full per-millisecond sequence space to itself.
type Generators struct {
	Users    *snowflake.Generator
	Guilds   *snowflake.Generator
	Members  *snowflake.Generator
	Channels *snowflake.Generator
	Messages *snowflake.Generator
	Images   *snowflake.Generator
}

// NewGenerators builds the full generator set for one machine id.
func NewGenerators(machineID int) (Generators, error) {
	var gen Generators
	for _, target := range []**snowflake.Generator{
		&gen.Users, &gen.Guilds, &gen.Members, &gen.Channels, &gen.Messages, &gen.Images,
	} {
		g, err := snowflake.NewGenerator(machineID)
		if err != nil {
			return Generators{}, err
		}
		*target = g
	}
	return gen, nil
}

type Service struct {
	store     dataStore
	authority *auth.Authority
	passwords *password.Service
	search    searchService
	cdn       imageStore
	gen       Generators
}

// New wires the service together. search and cdn may be nil when the
// backing systems are not configured; the affected endpoints degrade.
func New(dataStore dataStore, authority *auth.Authority, passwords *password.Service, searchSvc searchService, cdnSvc imageStore, gen Generators) *Service {
	return &Service{
		store:     dataStore,
		authority: authority,
		passwords: passwords,
		search:    searchSvc,
		cdn:       cdnSvc,
		gen:       gen,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Authenticate resolves a bearer credential to the user holding it.
// The raw token value comes back too so logout can revoke it.
func (s *Service) Authenticate(ctx context.Context, credential string) (snowflake.ID, int64, error) {
	return s.authority.Verify(ctx, credential)
}

// Register creates an account and opens the first session for it.
func (s *Service) Register(ctx context.Context, username, email, pass string) (store.User, string, error) {
	if err := validateUsername(username); err != nil {
		return store.User{}, "", err
	}
	if err := validateEmail(email); err != nil {
		return store.User{}, "", err
	}
	if err := s.passwords.Validate(pass); err != nil {
		return store.User{}, "", err
	}
	phc, err := s.passwords.Hash(pass)
	if err != nil {
		return store.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.RegisterUser(ctx, s.gen.Users.Generate(), username, phc, email)
	if err != nil {
		return store.User{}, "", err
	}
	credential, err := s.authority.Issue(ctx, user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	return user, credential, nil
}

// Login verifies credentials and opens a session. A missing account and a
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, pass string) (string, error) {
	userID, phc, err := s.store.GetCredentials(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", errInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !s.passwords.Verify(pass, phc) {
		return "", errInvalidCredentials
	}
	return s.authority.Issue(ctx, userID)
}

// Logout revokes the session the request authenticated with.
func (s *Service) Logout(ctx context.Context, token int64) error {
	return s.authority.Revoke(ctx, token)
}

// ChangePassword rotates the stored hash, revokes every open session for
// the user, and returns a fresh credential for the caller to keep using.
func (s *Service) ChangePassword(ctx context.Context, userID snowflake.ID, current, next string) (string, error) {
	phc, err := s.store.GetPasswordHash(ctx, userID)
	if err != nil {
		return "", err
	}
	if !s.passwords.Verify(current, phc) {
		return "", errInvalidCredentials
	}
	if err := s.passwords.Validate(next); err != nil {
		return "", err
	}
	nextPHC, err := s.passwords.Hash(next)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, nextPHC); err != nil {
		return "", err
	}
	if err := s.authority.RevokeUser(ctx, userID); err != nil {
		return "", err
	}
	return s.authority.Issue(ctx, userID)
}

// CreateGuild creates a guild, joins the owner to it and seeds the default
// text channel.
func (s *Service) CreateGuild(ctx context.Context, ownerID snowflake.ID, name string) (store.Guild, error) {
	if err := validateGuildName(name); err != nil {
		return store.Guild{}, err
	}
	guildID := s.gen.Guilds.Generate()
	if err := s.store.CreateGuild(ctx, guildID, ownerID, name); err != nil {
		return store.Guild{}, err
	}
	if err := s.store.JoinGuild(ctx, s.gen.Members.Generate(), guildID, ownerID); err != nil {
		return store.Guild{}, err
	}
	if err := s.store.CreateChannel(ctx, s.gen.Channels.Generate(), guildID, generalChannelName, nil); err != nil {
		return store.Guild{}, err
	}
	return store.Guild{ID: guildID, OwnerID: ownerID, Name: name}, nil
}

// JoinGuild adds the user to a guild, appending it to their guild list.
// Joining a guild twice is a no-op.
func (s *Service) JoinGuild(ctx context.Context, userID, guildID snowflake.ID) error {
	if _, err := s.store.GetGuild(ctx, guildID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errGuildNotFound
		}
		return err
	}
	member, err := s.store.IsGuildMember(ctx, guildID, userID)
	if err != nil {
		return err
	}
	if member {
		return nil
	}
	return s.store.JoinGuild(ctx, s.gen.Members.Generate(), guildID, userID)
}

// JoinedGuilds lists the user's guilds in their chosen order.
func (s *Service) JoinedGuilds(ctx context.Context, userID snowflake.ID) ([]store.Guild, error) {
	return s.store.JoinedGuilds(ctx, userID)
}

// CreateChannel adds a channel to a guild the user belongs to. With
// placeBefore set the channel takes that channel's slot in the sidebar.
func (s *Service) CreateChannel(ctx context.Context, userID, guildID snowflake.ID, name string, placeBefore *snowflake.ID) (store.Channel, error) {
	member, err := s.store.IsGuildMember(ctx, guildID, userID)
	if err != nil {
		return store.Channel{}, err
	}
	if !member {
		return store.Channel{}, errPermissionDenied
	}
	if err := validateChannelName(name); err != nil {
		return store.Channel{}, err
	}
	id := s.gen.Channels.Generate()
	if err := s.store.CreateChannel(ctx, id, guildID, name, placeBefore); err != nil {
		return store.Channel{}, err
	}
	return store.Channel{ID: id, GuildID: guildID, Name: name}, nil
}

// Channels lists a guild's channels in display order. Non-members get the
// same answer for unknown and forbidden guilds.
func (s *Service) Channels(ctx context.Context, userID, guildID snowflake.ID) ([]store.Channel, error) {
	member, err := s.store.IsGuildMember(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errGuildNotFound
	}
	return s.store.ListChannels(ctx, guildID)
}

// SendMessage posts to a channel the user can access and feeds the message
// to the search index in the background.
func (s *Service) SendMessage(ctx context.Context, userID, channelID snowflake.ID, content string) (store.Message, error) {
	if len(content) == 0 {
		return store.Message{}, errMessageEmpty
	}
	if len(content) > maxMessageLen {
		return store.Message{}, errMessageTooLong
	}
	ok, err := s.store.HasChannelAccess(ctx, channelID, userID)
	if err != nil {
		return store.Message{}, err
	}
	if !ok {
		return store.Message{}, errChannelNotFound
	}

	id := s.gen.Messages.Generate()
	if err := s.store.InsertMessage(ctx, id, channelID, userID, content); err != nil {
		return store.Message{}, err
	}
	author, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return store.Message{}, err
	}

	if s.search != nil {
		if channel, err := s.store.GetChannel(ctx, channelID); err == nil {
			s.search.IndexMessage(search.MessageRecord{
				ID:        id.String(),
				ChannelID: channelID.String(),
				GuildID:   channel.GuildID.String(),
				AuthorID:  userID.String(),
				Content:   content,
			})
		}
	}

	return store.Message{
		ID:        id,
		ChannelID: channelID,
		Author:    author,
		Content:   content,
		SentAt:    id.Timestamp(),
		UpdatedAt: id.Timestamp(),
	}, nil
}

// Messages returns a page of channel history, newest first.
func (s *Service) Messages(ctx context.Context, userID, channelID snowflake.ID, limit, offset int64) ([]store.Message, error) {
	ok, err := s.store.HasChannelAccess(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errChannelNotFound
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListMessages(ctx, channelID, limit, offset)
}

// SearchMessages runs a full-text search scoped to a guild or channel the
// user can read. An unscoped search is rejected rather than silently
// searching everything the user can see.
func (s *Service) SearchMessages(ctx context.Context, userID snowflake.ID, q search.Query) (search.Response, error) {
	switch {
	case q.FilterChannelID != "":
		channelID, err := parseIDFilter(q.FilterChannelID)
		if err != nil {
			return search.Response{}, errChannelNotFound
		}
		ok, err := s.store.HasChannelAccess(ctx, channelID, userID)
		if err != nil {
			return search.Response{}, err
		}
		if !ok {
			return search.Response{}, errChannelNotFound
		}
	case q.FilterGuildID != "":
		guildID, err := parseIDFilter(q.FilterGuildID)
		if err != nil {
			return search.Response{}, errGuildNotFound
		}
		member, err := s.store.IsGuildMember(ctx, guildID, userID)
		if err != nil {
			return search.Response{}, err
		}
		if !member {
			return search.Response{}, errGuildNotFound
		}
	default:
		return search.Response{}, errSearchScopeRequired
	}
	return s.search.Search(q), nil
}

// SetProfileImage uploads a new profile image and points the user's record
// at it. The returned id is also the CDN cache key.
func (s *Service) SetProfileImage(ctx context.Context, userID snowflake.ID, r io.Reader, size int64) (snowflake.ID, error) {
	if s.cdn == nil {
		return 0, errCDNUnavailable
	}
	imageID := s.gen.Images.Generate()
	if _, err := s.cdn.UploadProfileImage(ctx, userID, imageID, r, size); err != nil {
		return 0, err
	}
	if err := s.store.SetProfileImage(ctx, userID, imageID); err != nil {
		return 0, err
	}
	return imageID, nil
}

func parseIDFilter(raw string) (snowflake.ID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad id filter %q", raw)
	}
	return snowflake.ID(n), nil
}
