package services

import (
	"errors"

	"homebase/internal/repositories"
)

// Error taxonomy. Handlers map these to HTTP statuses; the assistant engine
// maps ErrValidation/ErrNotFound/ErrInvariant to structured tool results so a
// chat turn can continue. Cross-party access is reported as ErrNotFound, never
// as a distinct authorization failure.
var (
	ErrValidation = errors.New("validation failed")
	// ErrNotFound shares the repository sentinel so rows the repositories
	// themselves report missing map to the same status.
	ErrNotFound = repositories.ErrNotFound
	ErrInvariant  = errors.New("invariant violated")
	ErrPipeline   = errors.New("ingestion pipeline failed")
	ErrDependency = errors.New("dependency unavailable")
)
