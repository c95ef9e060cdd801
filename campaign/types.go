/*
Package campaign is the core engine for recycled-material campaigns.

PURPOSE:
  Tracks each campaign as an append-only event stream plus a derived
  current-state projection. The stream is the source of truth; the
  projection is a read-optimized cache of "latest truth" that must always
  equal a pure fold of the stream.

KEY CONCEPTS IN THIS FILE (types.go):
  - Campaign: the derived projection row, one per campaign
  - Status: the strict 12-state lifecycle order
  - Step table: maps each event type to its target status and next step
  - Filter: read-side query parameters over the projection

DESIGN PRINCIPLES:
  1. Immutability: Events are never modified, only corrected by new events
  2. Precision: Weights use decimal.Decimal, never float64
  3. Determinism: Replaying a stream from empty reproduces the projection
  4. Separation: The store records what happened; the projector derives
     what is currently true

SEE ALSO:
  - event.go: Event record and payload union
  - projection.go: The fold
  - gate.go: ECHA compliance gate
*/
package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Strict linear 12-state lifecycle
// =============================================================================

// Status is a campaign lifecycle state.
type Status string

const (
	StatusCreated                 Status = "created"
	StatusInboundShipmentRecorded Status = "inbound_shipment_recorded"
	StatusGranulationComplete     Status = "granulation_complete"
	StatusMetalRemovalComplete    Status = "metal_removal_complete"
	StatusPurificationComplete    Status = "purification_complete"
	StatusExtrusionComplete       Status = "extrusion_complete"
	StatusECHAApproved            Status = "echa_approved"
	StatusTransferredToRGE        Status = "transferred_to_rge"
	StatusManufacturingStarted    Status = "manufacturing_started"
	StatusManufacturingComplete   Status = "manufacturing_complete"
	StatusReturnedToLEGO          Status = "returned_to_lego"
	StatusCompleted               Status = "completed"
)

// StatusOrder is the strict lifecycle order, from created to completed.
var StatusOrder = []Status{
	StatusCreated,
	StatusInboundShipmentRecorded,
	StatusGranulationComplete,
	StatusMetalRemovalComplete,
	StatusPurificationComplete,
	StatusExtrusionComplete,
	StatusECHAApproved,
	StatusTransferredToRGE,
	StatusManufacturingStarted,
	StatusManufacturingComplete,
	StatusReturnedToLEGO,
	StatusCompleted,
}

// Index returns the position of s in the lifecycle order, or -1 if unknown.
func (s Status) Index() int {
	for i, known := range StatusOrder {
		if s == known {
			return i
		}
	}
	return -1
}

// IsValid reports whether s is a recognized status.
func (s Status) IsValid() bool { return s.Index() >= 0 }

// Before reports whether s comes strictly before other in the lifecycle.
func (s Status) Before(other Status) bool { return s.Index() < other.Index() }

// =============================================================================
// STEP TABLE - Event type -> lifecycle advancement
// =============================================================================

// stepSpec describes how one event type advances the lifecycle.
type stepSpec struct {
	status Status
	step   string
	next   string
}

// stepTable maps every status-advancing event type to its fixed target
// status, the step label it represents, and the next expected step.
// EventCorrected is deliberately absent: corrections adjust facts, not
// progression.
var stepTable = map[EventType]stepSpec{
	EventCampaignCreated:         {StatusCreated, "Created", "Inbound Shipment"},
	EventInboundShipmentRecorded: {StatusInboundShipmentRecorded, "Inbound Shipment", "Granulation"},
	EventGranulationCompleted:    {StatusGranulationComplete, "Granulation", "Metal Removal"},
	EventMetalRemovalCompleted:   {StatusMetalRemovalComplete, "Metal Removal", "Purification"},
	EventPurificationCompleted:   {StatusPurificationComplete, "Purification", "Extrusion"},
	EventExtrusionCompleted:      {StatusExtrusionComplete, "Extrusion", "ECHA Approval"},
	EventECHAApprovalRecorded:    {StatusECHAApproved, "ECHA Approval", "Transfer to RGE"},
	EventTransferToRGERecorded:   {StatusTransferredToRGE, "Transfer to RGE", "Manufacturing"},
	EventManufacturingStarted:    {StatusManufacturingStarted, "Manufacturing", "Manufacturing Complete"},
	EventManufacturingCompleted:  {StatusManufacturingComplete, "Manufacturing Complete", "Return to LEGO"},
	EventReturnToLEGORecorded:    {StatusReturnedToLEGO, "Return to LEGO", "Completion"},
	EventCampaignCompleted:       {StatusCompleted, "Completed", ""},
}

// StepFor returns the lifecycle advancement for an event type, if any.
func StepFor(t EventType) (status Status, step, next string, ok bool) {
	entry, ok := stepTable[t]
	if !ok {
		return "", "", "", false
	}
	return entry.status, entry.step, entry.next, true
}

// =============================================================================
// CAMPAIGN - Derived projection (one row per campaign)
// =============================================================================

// Campaign is the derived current-state projection for one campaign.
// It is always a pure fold of the campaign's event stream in append order.
type Campaign struct {
	ID               string
	LegoCampaignCode string
	MaterialType     MaterialType
	Status           Status
	CurrentStep      string
	NextExpectedStep string
	CurrentWeightKg  decimal.Decimal
	Description      string

	// ECHAApproved becomes true only via ECHAApprovalRecorded and is
	// never revoked automatically.
	ECHAApproved bool

	LastEventType EventType
	LastEventAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// =============================================================================
// FILTER - Read-side query parameters
// =============================================================================

// Filter narrows projection listings. Zero values mean "no constraint".
type Filter struct {
	Status       Status
	MaterialType MaterialType
	ECHAApproved *bool
}

// Matches reports whether c satisfies every set constraint.
func (f Filter) Matches(c Campaign) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.MaterialType != "" && c.MaterialType != f.MaterialType {
		return false
	}
	if f.ECHAApproved != nil && c.ECHAApproved != *f.ECHAApproved {
		return false
	}
	return true
}
