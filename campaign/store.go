/*
store.go - Persistence interfaces for events and projections

PURPOSE:
  Defines the interface between the domain logic and the database.
  Two stores, deliberately separate:

  EventStore:      What happened. Append-only stream of immutable events.
  ProjectionStore: What is currently true. One mutable row per campaign,
                   written only by the projector.

APPEND-ONLY CONTRACT:
  EventStore has no Update() or Delete(). Corrections are appended as
  EventCorrected events; history is never rewritten.

ORDERING:
  Append assigns a monotonic Seq per store. Load returns events in
  (CreatedAt, Seq) order, so append order survives identical timestamps.

SEPARATION:
  The event store never touches projections. The caller (the service)
  appends, then asks the projector to fold. This keeps "what happened"
  and "what is currently true" independent.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - campaign/store: in-memory store for tests and dev

SEE ALSO:
  - projection.go: Consumes events one at a time
  - service.go: Write path that coordinates both stores
*/
package campaign

import "context"

// =============================================================================
// EVENT STORE - Append-only stream persistence
// =============================================================================

// EventStore persists immutable domain events.
// IMPORTANT: Append-only. No Update, No Delete. Ever.
type EventStore interface {
	// Append persists an event and returns it with the store-assigned
	// Seq. Fails only on storage errors; business rules are the
	// compliance gate's job, not the store's.
	Append(ctx context.Context, evt Event) (Event, error)

	// Load returns the full history for a stream in append order.
	// An empty slice (not an error) means the stream has no events.
	Load(ctx context.Context, streamType, streamID string) ([]Event, error)
}

// =============================================================================
// PROJECTION STORE - Derived current-state rows
// =============================================================================

// ProjectionStore persists the derived Campaign rows.
// Written only by the Projector; everything else reads.
type ProjectionStore interface {
	// Get returns the projection for a campaign id, or (nil, nil) when
	// no projection exists.
	Get(ctx context.Context, id string) (*Campaign, error)

	// GetByCode returns the projection matching a human-entered campaign
	// code, or (nil, nil) when none matches.
	GetByCode(ctx context.Context, legoCampaignCode string) (*Campaign, error)

	// List returns projections matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]Campaign, error)

	// Search returns projections whose code or description contains the
	// query (case-insensitive), newest first.
	Search(ctx context.Context, query string) ([]Campaign, error)

	// Recent returns the n most recently updated projections.
	Recent(ctx context.Context, n int) ([]Campaign, error)

	// Save upserts a projection row.
	Save(ctx context.Context, c Campaign) error
}
