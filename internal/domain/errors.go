package domain

import "errors"

var (
	ErrThingNotFound          = errors.New("thing not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
)
