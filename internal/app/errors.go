package app

import (
	"errors"
	"fmt"
	"net/http"

	"concord/api/internal/auth"
	"concord/api/internal/password"
	"concord/api/internal/store"
)

// DomainError carries the HTTP status and wire error code for a failed
// operation. Data optionally holds extra payload for the client, like the
// offending field name.
type DomainError struct {
	Status int
	Code   string
	Data   any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

func domainError(status int, code string) *DomainError {
	return &DomainError{Status: status, Code: code}
}

// Wire error codes. Clients match on these strings, so they are part of the
// API contract and never change meaning.
var (
	errNameTooShort        = domainError(http.StatusBadRequest, "NameTooShort")
	errNameTooLong         = domainError(http.StatusBadRequest, "NameTooLong")
	errNameInvalid         = domainError(http.StatusBadRequest, "NameInvalid")
	errEmailInvalid        = domainError(http.StatusBadRequest, "EmailInvalid")
	errPasswordTooShort    = domainError(http.StatusBadRequest, "PasswordTooShort")
	errPasswordTooLong     = domainError(http.StatusBadRequest, "PasswordTooLong")
	errMessageEmpty        = domainError(http.StatusBadRequest, "MessageEmpty")
	errMessageTooLong      = domainError(http.StatusBadRequest, "MessageTooLong")
	errSearchScopeRequired = domainError(http.StatusBadRequest, "SearchScopeRequired")
	errNoAuthToken         = domainError(http.StatusUnauthorized, "NoAuthToken")
	errBadAuthToken        = domainError(http.StatusBadRequest, "BadAuthToken")
	errInvalidAuthToken    = domainError(http.StatusUnauthorized, "InvalidAuthToken")
	errInvalidCredentials  = domainError(http.StatusUnauthorized, "InvalidCredentials")
	errPermissionDenied    = domainError(http.StatusForbidden, "PermissionDenied")
	errGuildNotFound       = domainError(http.StatusNotFound, "GuildNotFound")
	errChannelNotFound     = domainError(http.StatusNotFound, "ChannelNotFound")
	errPlaceBeforeNotFound = domainError(http.StatusNotFound, "PlaceBeforeNotFound")
	errEmailTaken          = domainError(http.StatusConflict, "EmailTaken")
	errUsernameTaken       = domainError(http.StatusConflict, "UsernameTaken")
	errCDNUnavailable      = domainError(http.StatusServiceUnavailable, "CdnUnavailable")
)

// mapError translates the lower layers' sentinel errors to wire responses.
// Anything unmapped is a server fault and deliberately opaque to the client.
func mapError(err error) (status int, code string, data any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Data
	}
	switch {
	case errors.Is(err, auth.ErrBadEnvelope):
		return errBadAuthToken.Status, errBadAuthToken.Code, nil
	case errors.Is(err, auth.ErrInvalidToken):
		return errInvalidAuthToken.Status, errInvalidAuthToken.Code, nil
	case errors.Is(err, password.ErrTooShort):
		return errPasswordTooShort.Status, errPasswordTooShort.Code, nil
	case errors.Is(err, password.ErrTooLong):
		return errPasswordTooLong.Status, errPasswordTooLong.Code, nil
	case errors.Is(err, store.ErrEmailTaken):
		return errEmailTaken.Status, errEmailTaken.Code, nil
	case errors.Is(err, store.ErrDiscriminatorsExhausted):
		return errUsernameTaken.Status, errUsernameTaken.Code, nil
	case errors.Is(err, store.ErrReferenceNotFound):
		return errPlaceBeforeNotFound.Status, errPlaceBeforeNotFound.Code, nil
	case errors.Is(err, store.ErrScopeNotFound):
		return errGuildNotFound.Status, errGuildNotFound.Code, nil
	}
	return http.StatusInternalServerError, "InternalError", nil
}
