package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"concord/api/internal/snowflake"
	"concord/api/internal/store"
)

// TokenStore is the persistence the authority needs: the access_tokens
// table, or a caching wrapper around it.
type TokenStore interface {
	InsertAccessToken(ctx context.Context, rec store.AccessToken) error
	LookupAccessToken(ctx context.Context, token int64) (snowflake.ID, error)
	DeleteAccessToken(ctx context.Context, token int64) error
	DeleteUserAccessTokens(ctx context.Context, userID snowflake.ID) ([]int64, error)
}

// Authority mints and verifies bearer credentials. It holds no mutable
// state; the store carries validity, the secret carries integrity.
type Authority struct {
	store  TokenStore
	secret []byte
}

func NewAuthority(store TokenStore, secret []byte) *Authority {
	return &Authority{store: store, secret: secret}
}

// Issue creates a session for the user and returns the signed credential.
func (a *Authority) Issue(ctx context.Context, userID snowflake.ID) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("draw access token: %w", err)
	}

	rec := store.AccessToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: time.Now().UnixMilli() - snowflake.Epoch,
	}
	if err := a.store.InsertAccessToken(ctx, rec); err != nil {
		return "", err
	}

	return sealToken(a.secret, token)
}

// Verify checks a credential and returns the owning user and the raw token.
// ErrBadEnvelope means the credential itself is broken; ErrInvalidToken
// means it is intact but the session was revoked (or never existed).
func (a *Authority) Verify(ctx context.Context, credential string) (snowflake.ID, int64, error) {
	token, err := openEnvelope(a.secret, credential)
	if err != nil {
		return 0, 0, err
	}

	userID, err := a.store.LookupAccessToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return 0, 0, ErrInvalidToken
	}
	if err != nil {
		return 0, 0, err
	}
	return userID, token, nil
}

// Revoke invalidates one session.
func (a *Authority) Revoke(ctx context.Context, token int64) error {
	return a.store.DeleteAccessToken(ctx, token)
}

// RevokeUser invalidates every session of one user.
func (a *Authority) RevokeUser(ctx context.Context, userID snowflake.ID) error {
	_, err := a.store.DeleteUserAccessTokens(ctx, userID)
	return err
}

// randomToken draws a uniform non-negative 63-bit integer.
func randomToken() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1), nil
}
