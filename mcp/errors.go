package mcp

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrPromptNotFound   = errors.New("prompt not found")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrDuplicateName    = errors.New("name already registered")
)

// ArgumentError describes one rejected argument of a tool or prompt call.
// It matches ErrInvalidArguments with errors.Is.
type ArgumentError struct {
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	if e.Argument == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidArguments, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidArguments, e.Argument, e.Reason)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArguments
}

func argumentError(name, format string, args ...any) error {
	return &ArgumentError{Argument: name, Reason: fmt.Sprintf(format, args...)}
}
