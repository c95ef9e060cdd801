/*
types.go - Reconciliation preview and apply result types

PURPOSE:
  The preview is the contract between reconciliation and the operator:
  ephemeral, never persisted, every classified item selectable before
  commit. Skipped rows are informational only and can never be applied.

DETERMINISM:
  Preview ids derive from (kind, sheet, line), so re-running
  reconciliation over the same batch and history yields byte-identical
  previews.
*/
package importer

import (
	"encoding/json"
	"fmt"

	"github.com/loopworks/campaign-engine/campaign"
)

// =============================================================================
// PREVIEW ITEMS
// =============================================================================

// FieldChange is one differing field in a proposed correction.
type FieldChange struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Current  string `json:"current"`
	Proposed string `json:"proposed"`
}

// CreatePreview proposes a new campaign, optionally with the inbound
// shipment recorded by the same row.
type CreatePreview struct {
	PreviewID    string                            `json:"previewId"`
	SheetType    SheetType                         `json:"sheetType"`
	LineNumber   int                               `json:"lineNumber"`
	CampaignCode string                            `json:"campaignCode"`
	Campaign     campaign.CampaignCreated          `json:"campaign"`
	Shipment     *campaign.InboundShipmentRecorded `json:"shipment,omitempty"`
	Selected     bool                              `json:"selected"`
}

// EventPreview proposes a new event on an existing campaign. CampaignID
// is empty when the campaign is itself created earlier in the same
// batch; apply resolves it through the batch's code->id map.
type EventPreview struct {
	PreviewID    string             `json:"previewId"`
	SheetType    SheetType          `json:"sheetType"`
	LineNumber   int                `json:"lineNumber"`
	CampaignID   string             `json:"campaignId,omitempty"`
	CampaignCode string             `json:"campaignCode"`
	EventType    campaign.EventType `json:"eventType"`
	Payload      campaign.Payload   `json:"payload"`
	Selected     bool               `json:"selected"`
}

// UnmarshalJSON decodes the payload through the event type tag, since
// Payload is an interface.
func (e *EventPreview) UnmarshalJSON(data []byte) error {
	type shadow struct {
		PreviewID    string             `json:"previewId"`
		SheetType    SheetType          `json:"sheetType"`
		LineNumber   int                `json:"lineNumber"`
		CampaignID   string             `json:"campaignId"`
		CampaignCode string             `json:"campaignCode"`
		EventType    campaign.EventType `json:"eventType"`
		Payload      json.RawMessage    `json:"payload"`
		Selected     bool               `json:"selected"`
	}
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	payload, err := campaign.DecodePayload(s.EventType, s.Payload)
	if err != nil {
		return err
	}
	*e = EventPreview{
		PreviewID:    s.PreviewID,
		SheetType:    s.SheetType,
		LineNumber:   s.LineNumber,
		CampaignID:   s.CampaignID,
		CampaignCode: s.CampaignCode,
		EventType:    s.EventType,
		Payload:      payload,
		Selected:     s.Selected,
	}
	return nil
}

// UpdatePreview proposes an EventCorrected against a previously recorded
// event, one FieldChange per differing field.
type UpdatePreview struct {
	PreviewID         string             `json:"previewId"`
	SheetType         SheetType          `json:"sheetType"`
	LineNumber        int                `json:"lineNumber"`
	CampaignID        string             `json:"campaignId"`
	CampaignCode      string             `json:"campaignCode"`
	CorrectsEventID   string             `json:"correctsEventId"`
	CorrectsEventType campaign.EventType `json:"correctsEventType"`
	Changes           []FieldChange      `json:"changes"`
	Selected          bool               `json:"selected"`
}

// SkippedRow is a row that could not be classified into an action.
// Informational only; never applied.
type SkippedRow struct {
	SheetType    SheetType `json:"sheetType"`
	LineNumber   int       `json:"lineNumber"`
	CampaignCode string    `json:"campaignCode"`
	Reason       string    `json:"reason"`
}

// Skip reasons.
const (
	ReasonDuplicate        = "duplicate, no changes"
	ReasonCampaignNotFound = "campaign not found"
	ReasonMissingCode      = "missing campaign code"
)

// =============================================================================
// PREVIEW
// =============================================================================

// Summary counts the classification outcome of a batch.
type Summary struct {
	Creates int `json:"creates"`
	Events  int `json:"events"`
	Updates int `json:"updates"`
	Skipped int `json:"skipped"`
}

// Preview is the full reconciliation result the operator confirms.
type Preview struct {
	Creates []CreatePreview `json:"creates"`
	Events  []EventPreview  `json:"events"`
	Updates []UpdatePreview `json:"updates"`
	Skipped []SkippedRow    `json:"skipped"`
	Summary Summary         `json:"summary"`
}

// previewID builds a deterministic preview identifier.
func previewID(kind string, sheet SheetType, line int) string {
	return fmt.Sprintf("%s:%s:%d", kind, sheet, line)
}

// =============================================================================
// APPLY RESULT
// =============================================================================

// Selection picks preview items to commit, by preview id. A nil slice
// falls back to the preview items' own Selected flags.
type Selection struct {
	Creates []string `json:"creates"`
	Events  []string `json:"events"`
	Updates []string `json:"updates"`
}

// ApplyError records one failed apply item. Item failures never abort
// the rest of the batch.
type ApplyError struct {
	PreviewID string `json:"previewId"`
	Message   string `json:"message"`
}

// Apply outcome statuses.
const (
	StatusApplied = "applied"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// ApplyResult reports what an apply run committed. Success is true only
// when zero errors occurred; Partial distinguishes mixed outcomes.
type ApplyResult struct {
	Status             string       `json:"status"`
	Success            bool         `json:"success"`
	CampaignsCreated   int          `json:"campaignsCreated"`
	EventsAppended     int          `json:"eventsAppended"`
	CorrectionsApplied int          `json:"correctionsApplied"`
	Errors             []ApplyError `json:"errors"`
}
