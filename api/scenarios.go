/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	campaign data for demos. Each scenario writes real events through
	the service, so projections, the gate, and history all behave
	exactly as in production.

AVAILABLE SCENARIOS:

	full-lifecycle:  One PCR campaign driven from inbound shipment all
	                 the way to completion, including ECHA approval
	mid-flow:        One PI campaign partway through processing
	gate-blocked:    A campaign that has finished extrusion but has no
	                 ECHA approval; RGE-stage events are denied

USAGE VIA API:

	POST /api/scenarios/load
	{"name": "full-lifecycle"}

NOTE:

	Scenarios append to the current store. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: Response helpers and error mapping
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/loopworks/campaign-engine/campaign"
)

// =============================================================================
// SCENARIO CATALOG
// =============================================================================

// Scenario describes one loadable demo dataset.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{Name: "full-lifecycle", Description: "PCR campaign from inbound shipment to completion"},
	{Name: "mid-flow", Description: "PI campaign partway through processing"},
	{Name: "gate-blocked", Description: "Campaign awaiting ECHA approval; RGE events denied"},
}

// ListScenarios returns the scenario catalog.
func (h *Handler) ListScenarios(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the selected scenario through the service.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	ctx := r.Context()
	userID := UserID(ctx)

	var err error
	switch req.Name {
	case "full-lifecycle":
		err = h.loadFullLifecycle(ctx, userID)
	case "mid-flow":
		err = h.loadMidFlow(ctx, userID)
	case "gate-blocked":
		err = h.loadGateBlocked(ctx, userID)
	default:
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unknown scenario %q", req.Name)})
		return
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"loaded": req.Name})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFullLifecycle(ctx context.Context, userID string) error {
	c, err := h.Service.CreateCampaign(ctx, userID, campaign.CampaignCreated{
		LegoCampaignCode: "DEMO-PCR-001",
		MaterialType:     campaign.MaterialPCR,
		Description:      "Demo: full lifecycle",
	})
	if err != nil {
		return err
	}

	steps := []campaign.Payload{
		campaign.InboundShipmentRecorded{
			GrossWeightKg: kg("1250.5"), NetWeightKg: kg("1180"),
			Carrier: "DSV", TrackingRef: "DSV-0042",
			ShipDate: "2026-01-12", ArrivalDate: "2026-01-14",
		},
		campaign.GranulationCompleted{ProcessStep: step("GRN-114", "1180", "1120", "2026-01-20")},
		campaign.MetalRemovalCompleted{ProcessStep: step("MET-021", "1120", "1095", "2026-01-27")},
		campaign.PurificationCompleted{ProcessStep: step("PUR-009", "1095", "1050", "2026-02-03")},
		campaign.ExtrusionCompleted{ProcessStep: step("EXT-033", "1050", "1012", "2026-02-10")},
		campaign.ECHAApprovalRecorded{ApprovedBy: "J. Mortensen", ApprovalDate: "2026-02-17"},
		campaign.TransferToRGERecorded{TrackingRef: "RGE-7781", Carrier: "DB Schenker", ShipDate: "2026-02-20"},
		campaign.ManufacturingStarted{PONumber: "PO-55821", POQuantity: 40000, StartDate: "2026-03-02"},
		campaign.ManufacturingCompleted{EndDate: "2026-03-21", ActualQuantity: 39650},
		campaign.ReturnToLEGORecorded{TrackingRef: "RET-2210", Carrier: "DB Schenker", ShipDate: "2026-03-24", Quantity: 39650},
		campaign.CampaignCompleted{CompletionNotes: "Demo run complete"},
	}
	for _, payload := range steps {
		if _, err := h.Service.AppendEvent(ctx, userID, c.ID, payload); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadMidFlow(ctx context.Context, userID string) error {
	c, err := h.Service.CreateCampaign(ctx, userID, campaign.CampaignCreated{
		LegoCampaignCode: "DEMO-PI-002",
		MaterialType:     campaign.MaterialPI,
		Description:      "Demo: mid flow",
	})
	if err != nil {
		return err
	}

	steps := []campaign.Payload{
		campaign.InboundShipmentRecorded{
			GrossWeightKg: kg("840"), NetWeightKg: kg("801.25"),
			Carrier: "Maersk", TrackingRef: "MSK-1904",
			ShipDate: "2026-02-02", ArrivalDate: "2026-02-09",
		},
		campaign.GranulationCompleted{ProcessStep: step("GRN-131", "801.25", "760", "2026-02-16")},
	}
	for _, payload := range steps {
		if _, err := h.Service.AppendEvent(ctx, userID, c.ID, payload); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadGateBlocked(ctx context.Context, userID string) error {
	c, err := h.Service.CreateCampaign(ctx, userID, campaign.CampaignCreated{
		LegoCampaignCode: "DEMO-PCR-003",
		MaterialType:     campaign.MaterialPCR,
		Description:      "Demo: awaiting ECHA approval",
	})
	if err != nil {
		return err
	}

	steps := []campaign.Payload{
		campaign.InboundShipmentRecorded{
			GrossWeightKg: kg("2100"), NetWeightKg: kg("2010"),
			Carrier: "DSV", TrackingRef: "DSV-0077",
			ShipDate: "2026-03-01", ArrivalDate: "2026-03-03",
		},
		campaign.GranulationCompleted{ProcessStep: step("GRN-140", "2010", "1925", "2026-03-09")},
		campaign.MetalRemovalCompleted{ProcessStep: step("MET-030", "1925", "1890", "2026-03-13")},
		campaign.PurificationCompleted{ProcessStep: step("PUR-018", "1890", "1824", "2026-03-17")},
		campaign.ExtrusionCompleted{ProcessStep: step("EXT-041", "1824", "1770", "2026-03-20")},
	}
	for _, payload := range steps {
		if _, err := h.Service.AppendEvent(ctx, userID, c.ID, payload); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func kg(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func step(ticket, starting, output, date string) campaign.ProcessStep {
	return campaign.ProcessStep{
		TicketNumber:     ticket,
		StartingWeightKg: kg(starting),
		OutputWeightKg:   kg(output),
		ProcessDate:      date,
	}
}
