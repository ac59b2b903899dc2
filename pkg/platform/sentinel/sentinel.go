package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored entities, not validation
// failures:
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: a uniqueness or overlap constraint was violated
// - ErrExpired: a checkpoint token's validity window has passed
// - ErrAlreadyUsed: an exit token was already consumed (replay)
// - ErrInvalidState: entity is in the wrong state for the requested mutation
// - ErrUnavailable: the store is temporarily unreachable; retryable
//
// For validation of caller input, use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
