package domain

import "errors"

// Classified errors for the transport boundary. Handlers match these with
// errors.Is; anything unclassified surfaces as an internal error.
var (
	ErrForbidden    = errors.New("address is blacklisted")
	ErrUnauthorized = errors.New("invalid or missing token")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("image not found")
)
