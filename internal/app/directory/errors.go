package directory

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInvalidLevel   = errors.New("invalid_level")
)
