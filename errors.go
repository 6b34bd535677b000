package pokedex

import (
	"errors"
)

var (
	ErrUnknownBackend  = errors.New("unknown cache backend")
	ErrInvalidCapacity = errors.New("cache capacity must be positive")
)
