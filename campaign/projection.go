/*
projection.go - Folding events into the current-state projection

PURPOSE:
  Derives the single Campaign row from the event stream. The fold is a
  pure function: (current projection or none, event) -> new projection.
  Replaying a stream from empty state reproduces the stored projection
  exactly; incremental application after each append reaches the same
  result.

FOLD RULES:
  CampaignCreated       -> fresh row, status created, echaApproved=false
  processing steps      -> weight from output, status from step table,
                           current/next step labels, last event stamps
  ECHAApprovalRecorded  -> echaApproved=true; status marked echa_approved
                           only if the campaign has not already advanced
                           past it (approval never moves status backwards)
  CampaignCompleted     -> completedAt set, status completed
  EventCorrected        -> applies each field's "now" value onto the
                           projection; status untouched

DESYNC:
  A non-create event with no existing projection is a data-integrity
  violation. It is reported as ProjectionDesyncError, never ignored.

SEE ALSO:
  - types.go: Campaign row and step table
  - service.go: Calls Apply after each successful append
*/
package campaign

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROJECTOR - Applies one event at a time to the projection store
// =============================================================================

// Projector keeps the projection store in sync with the event stream.
type Projector struct {
	Projections ProjectionStore
}

// NewProjector creates a projector over the given projection store.
func NewProjector(projections ProjectionStore) *Projector {
	return &Projector{Projections: projections}
}

// Apply folds one event into the stored projection and saves the result.
func (p *Projector) Apply(ctx context.Context, evt Event) (*Campaign, error) {
	var current *Campaign
	if evt.EventType != EventCampaignCreated {
		existing, err := p.Projections.Get(ctx, evt.StreamID)
		if err != nil {
			return nil, &StorageError{Op: "load projection", Err: err}
		}
		if existing == nil {
			return nil, &ProjectionDesyncError{CampaignID: evt.StreamID, EventType: evt.EventType}
		}
		current = existing
	}

	next, err := Fold(current, evt)
	if err != nil {
		return nil, err
	}
	if err := p.Projections.Save(ctx, next); err != nil {
		return nil, &StorageError{Op: "save projection", Err: err}
	}
	return &next, nil
}

// =============================================================================
// FOLD - The pure derivation function
// =============================================================================

// Fold computes the projection resulting from applying evt on top of
// current. current must be nil exactly when evt is CampaignCreated.
func Fold(current *Campaign, evt Event) (Campaign, error) {
	if evt.EventType == EventCampaignCreated {
		created, ok := evt.Data.(CampaignCreated)
		if !ok {
			return Campaign{}, &ValidationError{Field: "eventData", Message: "payload does not match CampaignCreated"}
		}
		return Campaign{
			ID:               evt.StreamID,
			LegoCampaignCode: created.LegoCampaignCode,
			MaterialType:     created.MaterialType,
			Description:      created.Description,
			Status:           StatusCreated,
			CurrentStep:      "Created",
			NextExpectedStep: "Inbound Shipment",
			CurrentWeightKg:  decimal.Zero,
			ECHAApproved:     false,
			LastEventType:    evt.EventType,
			LastEventAt:      evt.CreatedAt,
			CreatedAt:        evt.CreatedAt,
			UpdatedAt:        evt.CreatedAt,
		}, nil
	}

	if current == nil {
		return Campaign{}, &ProjectionDesyncError{CampaignID: evt.StreamID, EventType: evt.EventType}
	}
	c := *current

	switch data := evt.Data.(type) {
	case InboundShipmentRecorded:
		c.CurrentWeightKg = data.NetWeightKg
		advance(&c, evt.EventType)
	case GranulationCompleted:
		c.CurrentWeightKg = data.OutputWeightKg
		advance(&c, evt.EventType)
	case MetalRemovalCompleted:
		c.CurrentWeightKg = data.OutputWeightKg
		advance(&c, evt.EventType)
	case PurificationCompleted:
		c.CurrentWeightKg = data.OutputWeightKg
		advance(&c, evt.EventType)
	case ExtrusionCompleted:
		c.CurrentWeightKg = data.OutputWeightKg
		advance(&c, evt.EventType)
	case ECHAApprovalRecorded:
		// Approval opens the gate. Never revoked, never regresses status.
		c.ECHAApproved = true
		if c.Status.Before(StatusECHAApproved) {
			advance(&c, evt.EventType)
		}
	case TransferToRGERecorded, ManufacturingStarted, ManufacturingCompleted, ReturnToLEGORecorded:
		advance(&c, evt.EventType)
	case CampaignCompleted:
		completedAt := evt.CreatedAt
		c.CompletedAt = &completedAt
		advance(&c, evt.EventType)
	case EventCorrected:
		// Corrections adjust facts, not progression: status untouched.
		applyCorrection(&c, data)
	default:
		return Campaign{}, &ValidationError{Field: "eventType", Message: "no fold rule for event type " + string(evt.EventType)}
	}

	c.LastEventType = evt.EventType
	c.LastEventAt = evt.CreatedAt
	c.UpdatedAt = evt.CreatedAt
	return c, nil
}

// advance moves the projection to the event type's fixed target state.
func advance(c *Campaign, t EventType) {
	status, step, next, ok := StepFor(t)
	if !ok {
		return
	}
	c.Status = status
	c.CurrentStep = step
	c.NextExpectedStep = next
}

// applyCorrection writes each corrected "now" value onto the matching
// projection field. Fields with no projection counterpart (carrier,
// ticket numbers, dates) only live in the event history and are no-ops
// here. Applying the same correction twice is idempotent per field.
// Fields apply in sorted name order; the three weight aliases share one
// projection column, so map iteration order must not decide the winner.
func applyCorrection(c *Campaign, correction EventCorrected) {
	fields := make([]string, 0, len(correction.Changes))
	for field := range correction.Changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		delta := correction.Changes[field]
		switch field {
		case "currentWeightKg", "outputWeightKg", "netWeightKg":
			if w, err := decimal.NewFromString(delta.Now); err == nil {
				c.CurrentWeightKg = w
			}
		case "description":
			c.Description = delta.Now
		case "legoCampaignCode":
			c.LegoCampaignCode = delta.Now
		}
	}
}

// =============================================================================
// REPLAY - Rebuild a projection from its stream
// =============================================================================

// Replay folds a full stream from empty state. Used to verify or repair
// a projection against its authoritative history.
func Replay(events []Event) (*Campaign, error) {
	var current *Campaign
	for _, evt := range events {
		next, err := Fold(current, evt)
		if err != nil {
			return nil, err
		}
		current = &next
	}
	return current, nil
}
