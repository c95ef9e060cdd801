/*
event.go - Domain events and typed payloads

PURPOSE:
  Defines the immutable Event record appended to a campaign's stream and
  the closed set of event types the system recognizes. Each event type has
  a concrete payload struct; together they form a tagged union so the
  projection fold can switch exhaustively instead of poking at loose maps.

CRITICAL INVARIANTS:
  1. IMMUTABLE: Once appended, events are never modified or deleted.
  2. CLOSED SET: Every EventType has exactly one payload struct.
  3. ORDERED: Stream order is CreatedAt, then the store-assigned Seq.
     Seq breaks ties for events sharing a timestamp.

CORRECTIONS:
  Mistakes are never edited in place. An EventCorrected event references
  the original event and carries a field -> {was, now} change map. Both
  the original and the correction remain in the stream.

SEE ALSO:
  - projection.go: Folds events into the current-state projection
  - store.go: Persistence interfaces for event streams
*/
package campaign

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StreamTypeCampaign is the only stream discriminator in use today.
const StreamTypeCampaign = "campaign"

// EventType identifies the kind of a domain event.
type EventType string

const (
	EventCampaignCreated         EventType = "CampaignCreated"
	EventInboundShipmentRecorded EventType = "InboundShipmentRecorded"
	EventGranulationCompleted    EventType = "GranulationCompleted"
	EventMetalRemovalCompleted   EventType = "MetalRemovalCompleted"
	EventPurificationCompleted   EventType = "PurificationCompleted"
	EventExtrusionCompleted      EventType = "ExtrusionCompleted"
	EventECHAApprovalRecorded    EventType = "ECHAApprovalRecorded"
	EventTransferToRGERecorded   EventType = "TransferToRGERecorded"
	EventManufacturingStarted    EventType = "ManufacturingStarted"
	EventManufacturingCompleted  EventType = "ManufacturingCompleted"
	EventReturnToLEGORecorded    EventType = "ReturnToLEGORecorded"
	EventCampaignCompleted       EventType = "CampaignCompleted"
	EventEventCorrected          EventType = "EventCorrected"
)

// EventTypes lists every recognized event type.
var EventTypes = []EventType{
	EventCampaignCreated,
	EventInboundShipmentRecorded,
	EventGranulationCompleted,
	EventMetalRemovalCompleted,
	EventPurificationCompleted,
	EventExtrusionCompleted,
	EventECHAApprovalRecorded,
	EventTransferToRGERecorded,
	EventManufacturingStarted,
	EventManufacturingCompleted,
	EventReturnToLEGORecorded,
	EventCampaignCompleted,
	EventEventCorrected,
}

// IsValid reports whether t is one of the recognized event types.
func (t EventType) IsValid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// =============================================================================
// EVENT - Immutable stream record
// =============================================================================

// Event is a single immutable record in a campaign's stream.
type Event struct {
	// ID is the event identifier (evt_ prefix, sortable).
	ID string
	// StreamType discriminates the stream kind (always "campaign" today).
	StreamType string
	// StreamID is the campaign identifier the event belongs to.
	StreamID string
	// EventType identifies the payload variant in Data.
	EventType EventType
	// Data is the typed payload for EventType.
	Data Payload
	// UserID is the authenticated identity that caused the event.
	UserID string
	// CreatedAt is when the event was appended.
	CreatedAt time.Time
	// Seq is the store-assigned append counter. It preserves append order
	// even when two events share a CreatedAt timestamp.
	Seq int64
}

// =============================================================================
// PAYLOADS - One struct per event type (tagged union)
// =============================================================================

// Payload is implemented by every event payload variant.
type Payload interface {
	// EventType returns the variant tag for this payload.
	EventType() EventType
	// Validate checks required fields before append.
	Validate() error
}

// MaterialType distinguishes post-industrial from post-consumer material.
type MaterialType string

const (
	MaterialPI  MaterialType = "PI"
	MaterialPCR MaterialType = "PCR"
)

// IsValid reports whether m is a recognized material type.
func (m MaterialType) IsValid() bool {
	return m == MaterialPI || m == MaterialPCR
}

// CampaignCreated starts a new campaign stream.
type CampaignCreated struct {
	LegoCampaignCode string       `json:"legoCampaignCode"`
	MaterialType     MaterialType `json:"materialType"`
	Description      string       `json:"description,omitempty"`
}

func (CampaignCreated) EventType() EventType { return EventCampaignCreated }

func (p CampaignCreated) Validate() error {
	if strings.TrimSpace(p.LegoCampaignCode) == "" {
		return &ValidationError{Field: "legoCampaignCode", Message: "campaign code is required"}
	}
	if !p.MaterialType.IsValid() {
		return &ValidationError{Field: "materialType", Message: "material type must be PI or PCR"}
	}
	return nil
}

// InboundShipmentRecorded records material arriving from LEGO.
type InboundShipmentRecorded struct {
	GrossWeightKg decimal.Decimal `json:"grossWeightKg"`
	NetWeightKg   decimal.Decimal `json:"netWeightKg"`
	Carrier       string          `json:"carrier"`
	TrackingRef   string          `json:"trackingRef"`
	ShipDate      string          `json:"shipDate"`
	ArrivalDate   string          `json:"arrivalDate"`
}

func (InboundShipmentRecorded) EventType() EventType { return EventInboundShipmentRecorded }

func (p InboundShipmentRecorded) Validate() error {
	if p.NetWeightKg.IsNegative() {
		return &ValidationError{Field: "netWeightKg", Message: "net weight cannot be negative"}
	}
	if p.GrossWeightKg.IsNegative() {
		return &ValidationError{Field: "grossWeightKg", Message: "gross weight cannot be negative"}
	}
	return nil
}

// ProcessStep carries the fields shared by all processing-step events.
type ProcessStep struct {
	TicketNumber     string          `json:"ticketNumber"`
	StartingWeightKg decimal.Decimal `json:"startingWeightKg"`
	OutputWeightKg   decimal.Decimal `json:"outputWeightKg"`
	ProcessDate      string          `json:"processDate,omitempty"`
}

func (p ProcessStep) validate() error {
	if strings.TrimSpace(p.TicketNumber) == "" {
		return &ValidationError{Field: "ticketNumber", Message: "ticket number is required"}
	}
	if p.OutputWeightKg.IsNegative() {
		return &ValidationError{Field: "outputWeightKg", Message: "output weight cannot be negative"}
	}
	return nil
}

// GranulationCompleted records the granulation processing step.
type GranulationCompleted struct {
	ProcessStep
}

func (GranulationCompleted) EventType() EventType { return EventGranulationCompleted }
func (p GranulationCompleted) Validate() error    { return p.validate() }

// MetalRemovalCompleted records the metal removal processing step.
type MetalRemovalCompleted struct {
	ProcessStep
}

func (MetalRemovalCompleted) EventType() EventType { return EventMetalRemovalCompleted }
func (p MetalRemovalCompleted) Validate() error    { return p.validate() }

// PurificationCompleted records the purification processing step.
type PurificationCompleted struct {
	ProcessStep
}

func (PurificationCompleted) EventType() EventType { return EventPurificationCompleted }
func (p PurificationCompleted) Validate() error    { return p.validate() }

// ExtrusionCompleted records the extrusion processing step.
type ExtrusionCompleted struct {
	ProcessStep
}

func (ExtrusionCompleted) EventType() EventType { return EventExtrusionCompleted }
func (p ExtrusionCompleted) Validate() error    { return p.validate() }

// ECHAApprovalRecorded records regulatory approval. This is the event that
// opens the RGE gate; it is never gated itself.
type ECHAApprovalRecorded struct {
	ApprovedBy   string `json:"approvedBy"`
	ApprovalDate string `json:"approvalDate"`
}

func (ECHAApprovalRecorded) EventType() EventType { return EventECHAApprovalRecorded }

func (p ECHAApprovalRecorded) Validate() error {
	if strings.TrimSpace(p.ApprovedBy) == "" {
		return &ValidationError{Field: "approvedBy", Message: "approver is required"}
	}
	if strings.TrimSpace(p.ApprovalDate) == "" {
		return &ValidationError{Field: "approvalDate", Message: "approval date is required"}
	}
	return nil
}

// TransferToRGERecorded records material leaving for the RGE facility.
type TransferToRGERecorded struct {
	TrackingRef string `json:"trackingRef"`
	Carrier     string `json:"carrier"`
	ShipDate    string `json:"shipDate"`
}

func (TransferToRGERecorded) EventType() EventType { return EventTransferToRGERecorded }

func (p TransferToRGERecorded) Validate() error {
	if strings.TrimSpace(p.TrackingRef) == "" {
		return &ValidationError{Field: "trackingRef", Message: "tracking reference is required"}
	}
	return nil
}

// ManufacturingStarted records the start of manufacturing at RGE.
type ManufacturingStarted struct {
	PONumber   string `json:"poNumber"`
	POQuantity int    `json:"poQuantity"`
	StartDate  string `json:"startDate"`
}

func (ManufacturingStarted) EventType() EventType { return EventManufacturingStarted }

func (p ManufacturingStarted) Validate() error {
	if strings.TrimSpace(p.PONumber) == "" {
		return &ValidationError{Field: "poNumber", Message: "purchase order number is required"}
	}
	if p.POQuantity < 0 {
		return &ValidationError{Field: "poQuantity", Message: "purchase order quantity cannot be negative"}
	}
	return nil
}

// ManufacturingCompleted records the end of manufacturing at RGE.
type ManufacturingCompleted struct {
	EndDate        string `json:"endDate"`
	ActualQuantity int    `json:"actualQuantity"`
}

func (ManufacturingCompleted) EventType() EventType { return EventManufacturingCompleted }

func (p ManufacturingCompleted) Validate() error {
	if p.ActualQuantity < 0 {
		return &ValidationError{Field: "actualQuantity", Message: "actual quantity cannot be negative"}
	}
	return nil
}

// ReturnToLEGORecorded records finished goods shipping back to LEGO.
type ReturnToLEGORecorded struct {
	TrackingRef string `json:"trackingRef"`
	Carrier     string `json:"carrier"`
	ShipDate    string `json:"shipDate"`
	Quantity    int    `json:"quantity"`
}

func (ReturnToLEGORecorded) EventType() EventType { return EventReturnToLEGORecorded }

func (p ReturnToLEGORecorded) Validate() error {
	if strings.TrimSpace(p.TrackingRef) == "" {
		return &ValidationError{Field: "trackingRef", Message: "tracking reference is required"}
	}
	if p.Quantity < 0 {
		return &ValidationError{Field: "quantity", Message: "quantity cannot be negative"}
	}
	return nil
}

// CampaignCompleted closes out a campaign.
type CampaignCompleted struct {
	CompletionNotes string `json:"completionNotes,omitempty"`
}

func (CampaignCompleted) EventType() EventType { return EventCampaignCompleted }
func (CampaignCompleted) Validate() error      { return nil }

// FieldDelta records one corrected value pair inside an EventCorrected payload.
type FieldDelta struct {
	Was string `json:"was"`
	Now string `json:"now"`
}

// EventCorrected amends field values recorded by an earlier event.
// The original event is never touched; the projection applies the Now
// values on top of whatever it currently holds.
type EventCorrected struct {
	CorrectsEventID   string                `json:"correctsEventId"`
	CorrectsEventType EventType             `json:"correctsEventType"`
	Reason            string                `json:"reason"`
	Changes           map[string]FieldDelta `json:"changes"`
}

func (EventCorrected) EventType() EventType { return EventEventCorrected }

func (p EventCorrected) Validate() error {
	if strings.TrimSpace(p.CorrectsEventID) == "" {
		return &ValidationError{Field: "correctsEventId", Message: "corrected event id is required"}
	}
	if !p.CorrectsEventType.IsValid() {
		return &ValidationError{Field: "correctsEventType", Message: "corrected event type is not recognized"}
	}
	if len(p.Changes) == 0 {
		return &ValidationError{Field: "changes", Message: "at least one field change is required"}
	}
	return nil
}

// =============================================================================
// PAYLOAD CODEC - JSON <-> typed payload
// =============================================================================

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return data, nil
}

// DecodePayload deserializes stored event data into its typed payload.
// The event type selects the variant; unknown types are rejected.
func DecodePayload(eventType EventType, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch eventType {
	case EventCampaignCreated:
		p, err = decodeInto[CampaignCreated](data)
	case EventInboundShipmentRecorded:
		p, err = decodeInto[InboundShipmentRecorded](data)
	case EventGranulationCompleted:
		p, err = decodeInto[GranulationCompleted](data)
	case EventMetalRemovalCompleted:
		p, err = decodeInto[MetalRemovalCompleted](data)
	case EventPurificationCompleted:
		p, err = decodeInto[PurificationCompleted](data)
	case EventExtrusionCompleted:
		p, err = decodeInto[ExtrusionCompleted](data)
	case EventECHAApprovalRecorded:
		p, err = decodeInto[ECHAApprovalRecorded](data)
	case EventTransferToRGERecorded:
		p, err = decodeInto[TransferToRGERecorded](data)
	case EventManufacturingStarted:
		p, err = decodeInto[ManufacturingStarted](data)
	case EventManufacturingCompleted:
		p, err = decodeInto[ManufacturingCompleted](data)
	case EventReturnToLEGORecorded:
		p, err = decodeInto[ReturnToLEGORecorded](data)
	case EventCampaignCompleted:
		p, err = decodeInto[CampaignCompleted](data)
	case EventEventCorrected:
		p, err = decodeInto[EventCorrected](data)
	default:
		return nil, &ValidationError{Field: "eventType", Message: fmt.Sprintf("unknown event type %q", eventType)}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return p, nil
}

func decodeInto[T Payload](data []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
