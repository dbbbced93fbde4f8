package ledger

import "errors"

var (
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidValue       = errors.New("invalid point value")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
)
