/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the campaign package, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - importer/types.go: Preview types serialized as-is
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/loopworks/campaign-engine/campaign"
	"github.com/loopworks/campaign-engine/importer"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// CampaignDTO represents a campaign projection in API responses.
type CampaignDTO struct {
	ID               string `json:"id"`
	LegoCampaignCode string `json:"legoCampaignCode"`
	MaterialType     string `json:"materialType"`
	Status           string `json:"status"`
	CurrentStep      string `json:"currentStep"`
	NextExpectedStep string `json:"nextExpectedStep,omitempty"`
	CurrentWeightKg  string `json:"currentWeightKg"`
	Description      string `json:"description,omitempty"`
	ECHAApproved     bool   `json:"echaApproved"`
	LastEventType    string `json:"lastEventType,omitempty"`
	LastEventAt      string `json:"lastEventAt,omitempty"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
	CompletedAt      string `json:"completedAt,omitempty"`
}

func toCampaignDTO(c campaign.Campaign) CampaignDTO {
	dto := CampaignDTO{
		ID:               c.ID,
		LegoCampaignCode: c.LegoCampaignCode,
		MaterialType:     string(c.MaterialType),
		Status:           string(c.Status),
		CurrentStep:      c.CurrentStep,
		NextExpectedStep: c.NextExpectedStep,
		CurrentWeightKg:  c.CurrentWeightKg.String(),
		Description:      c.Description,
		ECHAApproved:     c.ECHAApproved,
		LastEventType:    string(c.LastEventType),
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        c.UpdatedAt.Format(time.RFC3339),
	}
	if !c.LastEventAt.IsZero() {
		dto.LastEventAt = c.LastEventAt.Format(time.RFC3339)
	}
	if c.CompletedAt != nil {
		dto.CompletedAt = c.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toCampaignDTOs(cs []campaign.Campaign) []CampaignDTO {
	dtos := make([]CampaignDTO, 0, len(cs))
	for _, c := range cs {
		dtos = append(dtos, toCampaignDTO(c))
	}
	return dtos
}

// EventDTO represents an event in API responses.
type EventDTO struct {
	ID         string          `json:"id"`
	StreamType string          `json:"streamType"`
	StreamID   string          `json:"streamId"`
	EventType  string          `json:"eventType"`
	Data       json.RawMessage `json:"data"`
	UserID     string          `json:"userId"`
	CreatedAt  string          `json:"createdAt"`
	Seq        int64           `json:"seq"`
}

func toEventDTO(evt campaign.Event) EventDTO {
	data, err := campaign.EncodePayload(evt.Data)
	if err != nil {
		data = json.RawMessage("{}")
	}
	return EventDTO{
		ID:         evt.ID,
		StreamType: evt.StreamType,
		StreamID:   evt.StreamID,
		EventType:  string(evt.EventType),
		Data:       data,
		UserID:     evt.UserID,
		CreatedAt:  evt.CreatedAt.Format(time.RFC3339),
		Seq:        evt.Seq,
	}
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateCampaignRequest is the request to create a campaign.
type CreateCampaignRequest struct {
	LegoCampaignCode string `json:"legoCampaignCode"`
	MaterialType     string `json:"materialType"`
	Description      string `json:"description,omitempty"`
}

// AppendEventRequest is the request to append one event to a campaign.
// Data is decoded by the event factory according to EventType.
type AppendEventRequest struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// PreviewImportRequest carries a parsed import batch, rows grouped by
// source sheet.
type PreviewImportRequest struct {
	Sheets map[importer.SheetType][]importer.Row `json:"sheets"`
}

// ApplyImportRequest carries the full preview back for reference plus
// the operator's selection.
type ApplyImportRequest struct {
	Preview   importer.Preview   `json:"preview"`
	Selection importer.Selection `json:"selection"`
}

// LoadScenarioRequest selects a demo scenario to seed.
type LoadScenarioRequest struct {
	Name string `json:"name"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
