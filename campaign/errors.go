/*
errors.go - Centralized error types for the campaign engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As and map to user-facing
  responses at the edge.

ERROR CATEGORIES:
  1. Validation errors - malformed or missing event fields, rejected
     before anything is appended
  2. Not-found / denied errors - user-facing, surfaced with their message
  3. Desync / storage errors - internal, logged and surfaced opaque

SEE ALSO:
  - gate.go: Produces ComplianceDeniedError
  - projection.go: Produces ProjectionDesyncError
  - service.go: Wraps store failures as StorageError
*/
package campaign

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all payload validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced campaign does not exist.
	ErrNotFound = errors.New("campaign not found")

	// ErrComplianceDenied is returned when the ECHA gate blocks an event.
	ErrComplianceDenied = errors.New("compliance gate denied")

	// ErrProjectionDesync is a fatal internal invariant violation: an
	// event arrived for a campaign with no prior CampaignCreated.
	ErrProjectionDesync = errors.New("projection out of sync with event stream")

	// ErrStorage is returned when the underlying store fails. Assumed
	// transient; retrying is the caller's decision.
	ErrStorage = errors.New("storage failure")

	// ErrDuplicateCampaignCode is returned when creating a campaign with
	// a code that already exists.
	ErrDuplicateCampaignCode = errors.New("campaign code already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed or missing event field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing campaign.
type NotFoundError struct {
	CampaignID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ComplianceDeniedError reports an RGE-gated event blocked because the
// campaign has no recorded ECHA approval. Distinct from NotFoundError:
// the campaign exists, the precondition does not.
type ComplianceDeniedError struct {
	CampaignID string
	EventType  EventType
	Reason     string
}

func (e *ComplianceDeniedError) Error() string {
	return fmt.Sprintf("%s blocked for campaign %s: %s", e.EventType, e.CampaignID, e.Reason)
}

func (e *ComplianceDeniedError) Unwrap() error { return ErrComplianceDenied }

// ProjectionDesyncError reports an event applied to a campaign with no
// existing projection. Indicates the event store and projection have
// drifted; never silently ignored.
type ProjectionDesyncError struct {
	CampaignID string
	EventType  EventType
}

func (e *ProjectionDesyncError) Error() string {
	return fmt.Sprintf("no projection for campaign %s while applying %s", e.CampaignID, e.EventType)
}

func (e *ProjectionDesyncError) Unwrap() error { return ErrProjectionDesync }

// StorageError wraps an underlying persistence failure. The caller must
// not assume partial success.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause, so
// errors.Is(err, ErrStorage) and errors.Is/As against the driver error
// both work.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }
