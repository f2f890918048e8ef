package core

import "errors"

var (
	ErrInvalidAction           = errors.New("invalid action")
	ErrInvalidBoardDescription = errors.New("invalid board description")
	ErrInvalidConfig           = errors.New("invalid puzzle configuration")
	ErrUnknownEnvironment      = errors.New("unknown environment")
)
