/*
service.go - Write path and read API over streams and projections

PURPOSE:
  Coordinates the event store, compliance gate, and projector. This is
  the only write path: validate payload -> confirm campaign exists ->
  compliance gate -> append -> fold into projection.

WRITE ORDERING:
  Appends to one campaign are serialized with a per-campaign mutex so
  projection updates land in append order. Without it, two concurrent
  writers to the same stream could fold out of order and break the
  replay invariant. Different campaigns never contend.

ERROR SURFACE:
  - ValidationError:        payload rejected before any write
  - NotFoundError:          campaign id does not exist
  - ComplianceDeniedError:  RGE gate blocked the event, nothing written
  - ProjectionDesyncError:  stream and projection have drifted (fatal)
  - StorageError:           store failure, no partial success assumed

SEE ALSO:
  - gate.go: The compliance check
  - projection.go: The fold applied after each append
*/
package campaign

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service is the write path and read API for campaigns.
type Service struct {
	Events      EventStore
	Projections ProjectionStore

	projector *Projector
	log       *slog.Logger

	// Per-campaign write serialization (see header).
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires a service over the given stores.
func NewService(events EventStore, projections ProjectionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Events:      events,
		Projections: projections,
		projector:   NewProjector(projections),
		log:         logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockCampaign serializes writers on one campaign id.
func (s *Service) lockCampaign(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// =============================================================================
// WRITES
// =============================================================================

// CreateCampaign mints a new campaign id, appends CampaignCreated, and
// folds the initial projection. The campaign code must be unused.
func (s *Service) CreateCampaign(ctx context.Context, userID string, payload CampaignCreated) (*Campaign, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	// The uniqueness check and the append must be one atomic step, or
	// two racing creates with the same code both pass the check and the
	// loser leaves an orphan stream behind the unique index.
	unlockCode := s.lockCampaign("code:" + strings.ToLower(strings.TrimSpace(payload.LegoCampaignCode)))
	defer unlockCode()

	existing, err := s.Projections.GetByCode(ctx, payload.LegoCampaignCode)
	if err != nil {
		return nil, &StorageError{Op: "lookup campaign code", Err: err}
	}
	if existing != nil {
		return nil, &ValidationError{Field: "legoCampaignCode", Message: ErrDuplicateCampaignCode.Error()}
	}

	campaignID := NewID(KindCampaign)
	unlock := s.lockCampaign(campaignID)
	defer unlock()

	evt, err := s.append(ctx, userID, campaignID, payload)
	if err != nil {
		return nil, err
	}
	projected, err := s.projector.Apply(ctx, *evt)
	if err != nil {
		s.log.Error("projection update failed after create",
			"campaign_id", campaignID, "event_id", evt.ID, "error", err)
		return nil, err
	}

	s.log.Info("campaign created",
		"campaign_id", campaignID, "code", payload.LegoCampaignCode, "material", payload.MaterialType)
	return projected, nil
}

// AppendEvent validates, gates, appends, and projects one event on an
// existing campaign. A gate denial or missing campaign leaves zero side
// effects.
func (s *Service) AppendEvent(ctx context.Context, userID, campaignID string, payload Payload) (*Event, error) {
	if payload.EventType() == EventCampaignCreated {
		return nil, &ValidationError{Field: "eventType", Message: "use CreateCampaign to start a new campaign"}
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	unlock := s.lockCampaign(campaignID)
	defer unlock()

	// Existence first: a missing campaign is NotFound, never Denied.
	projection, err := s.Projections.Get(ctx, campaignID)
	if err != nil {
		return nil, &StorageError{Op: "load projection", Err: err}
	}
	if projection == nil {
		return nil, &NotFoundError{CampaignID: campaignID}
	}

	// Gate strictly before append: a denial must prevent any mutation.
	if err := CheckGate(payload.EventType(), projection); err != nil {
		s.log.Info("event denied by compliance gate",
			"campaign_id", campaignID, "event_type", payload.EventType())
		return nil, err
	}

	evt, err := s.append(ctx, userID, campaignID, payload)
	if err != nil {
		return nil, err
	}
	if _, err := s.projector.Apply(ctx, *evt); err != nil {
		s.log.Error("projection update failed",
			"campaign_id", campaignID, "event_id", evt.ID, "error", err)
		return nil, err
	}
	return evt, nil
}

// append writes one event through the event store.
func (s *Service) append(ctx context.Context, userID, campaignID string, payload Payload) (*Event, error) {
	evt := Event{
		ID:         NewID(KindEvent),
		StreamType: StreamTypeCampaign,
		StreamID:   campaignID,
		EventType:  payload.EventType(),
		Data:       payload,
		UserID:     userID,
	}
	stored, err := s.Events.Append(ctx, evt)
	if err != nil {
		s.log.Error("event append failed",
			"campaign_id", campaignID, "event_type", evt.EventType, "error", err)
		return nil, &StorageError{Op: "append event", Err: err}
	}
	return &stored, nil
}

// RebuildProjection replays a campaign's full stream from empty state
// and saves the result, repairing any drift between stream and
// projection.
func (s *Service) RebuildProjection(ctx context.Context, campaignID string) (*Campaign, error) {
	unlock := s.lockCampaign(campaignID)
	defer unlock()

	events, err := s.Events.Load(ctx, StreamTypeCampaign, campaignID)
	if err != nil {
		return nil, &StorageError{Op: "load stream", Err: err}
	}
	if len(events) == 0 {
		return nil, &NotFoundError{CampaignID: campaignID}
	}
	rebuilt, err := Replay(events)
	if err != nil {
		return nil, err
	}
	if err := s.Projections.Save(ctx, *rebuilt); err != nil {
		return nil, &StorageError{Op: "save projection", Err: err}
	}
	s.log.Info("projection rebuilt", "campaign_id", campaignID, "events", len(events))
	return rebuilt, nil
}

// =============================================================================
// READS - Pure queries over the projection and the stream
// =============================================================================

// GetCampaign returns the projection for a campaign id.
func (s *Service) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	c, err := s.Projections.Get(ctx, campaignID)
	if err != nil {
		return nil, &StorageError{Op: "load projection", Err: err}
	}
	if c == nil {
		return nil, &NotFoundError{CampaignID: campaignID}
	}
	return c, nil
}

// CampaignByCode resolves a human-entered campaign code to its
// projection, or (nil, nil) when no campaign matches.
func (s *Service) CampaignByCode(ctx context.Context, code string) (*Campaign, error) {
	c, err := s.Projections.GetByCode(ctx, code)
	if err != nil {
		return nil, &StorageError{Op: "lookup campaign code", Err: err}
	}
	return c, nil
}

// ListCampaigns returns projections matching the filter, newest first.
func (s *Service) ListCampaigns(ctx context.Context, f Filter) ([]Campaign, error) {
	list, err := s.Projections.List(ctx, f)
	if err != nil {
		return nil, &StorageError{Op: "list projections", Err: err}
	}
	return list, nil
}

// SearchCampaigns returns projections matching a free-text query.
func (s *Service) SearchCampaigns(ctx context.Context, query string) ([]Campaign, error) {
	list, err := s.Projections.Search(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "search projections", Err: err}
	}
	return list, nil
}

// RecentCampaigns returns the n most recently updated projections.
func (s *Service) RecentCampaigns(ctx context.Context, n int) ([]Campaign, error) {
	list, err := s.Projections.Recent(ctx, n)
	if err != nil {
		return nil, &StorageError{Op: "list recent projections", Err: err}
	}
	return list, nil
}

// EventsForCampaign returns a campaign's full event history in append
// order.
func (s *Service) EventsForCampaign(ctx context.Context, campaignID string) ([]Event, error) {
	events, err := s.Events.Load(ctx, StreamTypeCampaign, campaignID)
	if err != nil {
		return nil, &StorageError{Op: "load stream", Err: err}
	}
	return events, nil
}
