package models

import "errors"

// Custom errors
var (
	ErrNotFound                = errors.New("record not found")
	ErrDuplicateKey            = errors.New("duplicate key violation")
	ErrInvalidID               = errors.New("invalid ID format")
	ErrValidation              = errors.New("validation failed")
	ErrInvalidTransition       = errors.New("invalid job status transition")
	ErrEmptyGrid               = errors.New("parameter grid is empty after constraint filtering")
	ErrNoSuccessfulEvaluations = errors.New("no parameter combination evaluated successfully")
	ErrDuplicateResult         = errors.New("duplicate parameter tuple in batch")
	ErrPersistence             = errors.New("result persistence failed")
	ErrTooManyStreams          = errors.New("too many concurrent progress streams")
	ErrJobTerminal             = errors.New("job already in terminal state")
)
