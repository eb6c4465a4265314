package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrNoJobAvailable     = errors.New("no claimable job")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrUnsupportedJobType = errors.New("unsupported job type")
	ErrMissingOperation   = errors.New("video payload has no operation handle")
	ErrEmptyArtifact      = errors.New("provider returned an empty artifact")
)
