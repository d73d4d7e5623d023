package app

import (
	"regexp"
	"strings"
)

const (
	usernameMinLen  = 3
	usernameMaxLen  = 32
	guildNameMinLen = 2
	guildNameMaxLen = 60
	channelMinLen   = 3
	channelMaxLen   = 32
	maxMessageLen   = 4000
)

// Channel names are lowercase slugs, like IRC channels without the hash.
var channelNameRe = regexp.MustCompile(`^[a-z][a-z0-9-]+[a-z0-9]$`)

// Good enough for routing mail; deliverability is the mail server's problem.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validateUsername(name string) error {
	if len(name) < usernameMinLen {
		return errNameTooShort
	}
	if len(name) > usernameMaxLen {
		return errNameTooLong
	}
	if strings.ContainsAny(name, "#@\n\r\t") {
		return errNameInvalid
	}
	return nil
}

func validateGuildName(name string) error {
	if len(name) < guildNameMinLen {
		return errNameTooShort
	}
	if len(name) > guildNameMaxLen {
		return errNameTooLong
	}
	return nil
}

func validateChannelName(name string) error {
	if len(name) < channelMinLen {
		return errNameTooShort
	}
	if len(name) > channelMaxLen {
		return errNameTooLong
	}
	if !channelNameRe.MatchString(name) {
		return errNameInvalid
	}
	return nil
}

func validateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return errEmailInvalid
	}
	return nil
}
