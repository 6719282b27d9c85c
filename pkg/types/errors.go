package types

import "errors"

// Domain errors for type validation
var (
	// Entity errors
	ErrEmptyEntityID   = errors.New("entity ID cannot be empty")
	ErrEmptyEntityType = errors.New("entity type cannot be empty")
	ErrEmptyEntityName = errors.New("entity name cannot be empty")

	// Relation errors
	ErrMissingEndpoint   = errors.New("relation endpoints are required")
	ErrSelfRelation      = errors.New("relation endpoints must differ")
	ErrEmptyRelationType = errors.New("relation type cannot be empty")

	// Log errors
	ErrInvalidLogLevel = errors.New("invalid log level")
	ErrEmptyLogService = errors.New("log service cannot be empty")
	ErrEmptyLogMessage = errors.New("log message cannot be empty")
)
