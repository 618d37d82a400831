package errors

import "errors"

var (
	ErrNotOwner = errors.New("booking belongs to another requester")
)
