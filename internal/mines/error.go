package mines

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid game configuration")
	ErrOutOfBounds          = errors.New("cell position out of bounds")
	ErrGameOver             = errors.New("game is over")
)
