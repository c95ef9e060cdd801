/*
Package factory provides JSON to typed event payload conversion.

PURPOSE:
  Converts the JSON bodies the HTTP edge receives into the campaign
  package's typed payloads. The event type string selects the variant;
  the payload is decoded and validated before anything touches the
  write path.

JSON SCHEMA:
  {
    "eventType": "InboundShipmentRecorded",
    "data": {
      "grossWeightKg": 1250.5,
      "netWeightKg": 1180.0,
      "carrier": "DSV",
      "trackingRef": "DSV-20260114-0042",
      "shipDate": "2026-01-12",
      "arrivalDate": "2026-01-14"
    }
  }

USAGE:
  f := factory.NewEventFactory()
  payload, err := f.ParsePayload("GranulationCompleted", rawJSON)

SEE ALSO:
  - campaign/event.go: Payload variants and validation rules
  - api/handlers.go: The consumer of this factory
*/
package factory

import (
	"encoding/json"

	"github.com/loopworks/campaign-engine/campaign"
)

// EventFactory builds validated event payloads from JSON.
type EventFactory struct{}

// NewEventFactory creates an event factory.
func NewEventFactory() *EventFactory {
	return &EventFactory{}
}

// ParsePayload decodes and validates a payload for the given event type.
// Unknown event types and malformed or incomplete payloads come back as
// campaign.ValidationError.
func (f *EventFactory) ParsePayload(eventType string, data json.RawMessage) (campaign.Payload, error) {
	t := campaign.EventType(eventType)
	if !t.IsValid() {
		return nil, &campaign.ValidationError{Field: "eventType", Message: "unknown event type " + eventType}
	}
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	payload, err := campaign.DecodePayload(t, data)
	if err != nil {
		return nil, &campaign.ValidationError{Field: "data", Message: err.Error()}
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}
