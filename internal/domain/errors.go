package domain

import "errors"

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownRole     = errors.New("unknown role")
	ErrNoPendingInit   = errors.New("no pending initialization")
	ErrInvalidToken    = errors.New("invalid identity token")
	ErrUserNotFound    = errors.New("twitch user not found")
	ErrChannelClosed   = errors.New("channel closed")
)
