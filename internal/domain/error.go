package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Company lifecycle
	ErrInvalidCredentials = errors.New("invalid Freshdesk API key or URL")
	ErrInvalidDomain      = errors.New("invalid Freshdesk domain")

	// Job execution
	ErrTicketingAPI        = errors.New("ticketing api request failed")
	ErrGeneration          = errors.New("text generation failed")
	ErrMalformedGeneration = errors.New("generated text is not valid JSON")
	ErrPromptTooLarge      = errors.New("prompt exceeds token budget")
	ErrNoAgents            = errors.New("company has no agents to reply as")
	ErrUnknownJobKind      = errors.New("unknown job kind")
	ErrQueueEmpty          = errors.New("no job ready")
)
