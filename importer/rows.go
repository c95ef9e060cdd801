/*
Package importer reconciles externally supplied spreadsheet rows against
existing campaign event history and applies the operator-confirmed
result.

PURPOSE:
  Bulk imports arrive as workbook sheets, one sheet per processing step,
  keyed by human-entered campaign codes. Rows may be out of order,
  repeated across imports, or corrections of earlier data. The
  reconciler classifies every row as Create / New Event / Update /
  Skip and produces a preview; the applier commits the selected subset
  through the campaign service (and therefore through the compliance
  gate).

KEY CONCEPTS IN THIS FILE (rows.go):
  - SheetType: the seven recognized source sheets, in fixed order
  - Row: one parsed spreadsheet row (flat superset of all sheet columns)
  - field specs: per-sheet compared fields with weight/text semantics

COMPARISON SEMANTICS:
  Weights compare with a 0.01 kg tolerance (decimal arithmetic, no
  floats). Strings and dates compare exactly after trimming.

SEE ALSO:
  - reconcile.go: Classification algorithm
  - apply.go: Commits a confirmed preview
*/
package importer

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/loopworks/campaign-engine/campaign"
)

// =============================================================================
// SHEETS
// =============================================================================

// SheetType identifies a source worksheet.
type SheetType string

const (
	SheetInboundShipments SheetType = "inbound_shipments"
	SheetGranulation      SheetType = "granulation"
	SheetMetalRemoval     SheetType = "metal_removal"
	SheetPurification     SheetType = "purification"
	SheetExtrusion        SheetType = "extrusion"
	SheetTransfer         SheetType = "transfer"
	SheetManufacturing    SheetType = "manufacturing"
)

// SheetOrder fixes the processing order of sheets within a batch so
// classification is deterministic.
var SheetOrder = []SheetType{
	SheetInboundShipments,
	SheetGranulation,
	SheetMetalRemoval,
	SheetPurification,
	SheetExtrusion,
	SheetTransfer,
	SheetManufacturing,
}

// sheetEvents maps each sheet to the event type its rows record.
var sheetEvents = map[SheetType]campaign.EventType{
	SheetInboundShipments: campaign.EventInboundShipmentRecorded,
	SheetGranulation:      campaign.EventGranulationCompleted,
	SheetMetalRemoval:     campaign.EventMetalRemovalCompleted,
	SheetPurification:     campaign.EventPurificationCompleted,
	SheetExtrusion:        campaign.EventExtrusionCompleted,
	SheetTransfer:         campaign.EventTransferToRGERecorded,
	SheetManufacturing:    campaign.EventManufacturingStarted,
}

// EventTypeForSheet returns the event type recorded by rows of a sheet.
func EventTypeForSheet(s SheetType) (campaign.EventType, bool) {
	t, ok := sheetEvents[s]
	return t, ok
}

// canOriginate reports whether a sheet may create a campaign that does
// not exist yet. Only the earliest supply-chain sheets qualify.
func canOriginate(s SheetType) bool {
	return s == SheetInboundShipments || s == SheetGranulation
}

// =============================================================================
// ROW - One parsed spreadsheet row
// =============================================================================

// Row is a parsed spreadsheet row. It is a flat superset of all sheet
// columns; each sheet reads only the fields it defines.
type Row struct {
	// LineNumber is the spreadsheet line (header is line 1).
	LineNumber int `json:"lineNumber"`

	CampaignCode string `json:"campaignCode"`
	MaterialType string `json:"materialType,omitempty"`
	Description  string `json:"description,omitempty"`

	// Inbound shipment columns.
	GrossWeightKg decimal.Decimal `json:"grossWeightKg,omitempty"`
	NetWeightKg   decimal.Decimal `json:"netWeightKg,omitempty"`
	ArrivalDate   string          `json:"arrivalDate,omitempty"`

	// Shared shipping columns (inbound, transfer).
	Carrier     string `json:"carrier,omitempty"`
	TrackingRef string `json:"trackingRef,omitempty"`
	ShipDate    string `json:"shipDate,omitempty"`

	// Processing-step columns.
	TicketNumber     string          `json:"ticketNumber,omitempty"`
	StartingWeightKg decimal.Decimal `json:"startingWeightKg,omitempty"`
	OutputWeightKg   decimal.Decimal `json:"outputWeightKg,omitempty"`
	ProcessDate      string          `json:"processDate,omitempty"`

	// Manufacturing columns.
	PONumber   string `json:"poNumber,omitempty"`
	POQuantity int    `json:"poQuantity,omitempty"`
	StartDate  string `json:"startDate,omitempty"`
}

// Batch is one import: rows grouped by source sheet.
type Batch map[SheetType][]Row

// normalizeCode canonicalizes a human-entered campaign code for lookups
// and in-batch grouping.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// =============================================================================
// ROW -> PAYLOAD
// =============================================================================

// payloadForRow builds the event payload a row records.
func payloadForRow(sheet SheetType, r Row) campaign.Payload {
	switch sheet {
	case SheetInboundShipments:
		return campaign.InboundShipmentRecorded{
			GrossWeightKg: r.GrossWeightKg,
			NetWeightKg:   r.NetWeightKg,
			Carrier:       strings.TrimSpace(r.Carrier),
			TrackingRef:   strings.TrimSpace(r.TrackingRef),
			ShipDate:      strings.TrimSpace(r.ShipDate),
			ArrivalDate:   strings.TrimSpace(r.ArrivalDate),
		}
	case SheetGranulation:
		return campaign.GranulationCompleted{ProcessStep: processStep(r)}
	case SheetMetalRemoval:
		return campaign.MetalRemovalCompleted{ProcessStep: processStep(r)}
	case SheetPurification:
		return campaign.PurificationCompleted{ProcessStep: processStep(r)}
	case SheetExtrusion:
		return campaign.ExtrusionCompleted{ProcessStep: processStep(r)}
	case SheetTransfer:
		return campaign.TransferToRGERecorded{
			TrackingRef: strings.TrimSpace(r.TrackingRef),
			Carrier:     strings.TrimSpace(r.Carrier),
			ShipDate:    strings.TrimSpace(r.ShipDate),
		}
	case SheetManufacturing:
		return campaign.ManufacturingStarted{
			PONumber:   strings.TrimSpace(r.PONumber),
			POQuantity: r.POQuantity,
			StartDate:  strings.TrimSpace(r.StartDate),
		}
	}
	return nil
}

func processStep(r Row) campaign.ProcessStep {
	return campaign.ProcessStep{
		TicketNumber:     strings.TrimSpace(r.TicketNumber),
		StartingWeightKg: r.StartingWeightKg,
		OutputWeightKg:   r.OutputWeightKg,
		ProcessDate:      strings.TrimSpace(r.ProcessDate),
	}
}

// =============================================================================
// FIELD SPECS - Compared fields per sheet
// =============================================================================

// weightEpsilon is the tolerance for weight comparisons: spreadsheet
// weights are hand-entered to two decimals, so anything within 0.01 kg
// is the same measurement.
var weightEpsilon = decimal.NewFromFloat(0.01)

// fieldSpec describes one compared field of a sheet.
type fieldSpec struct {
	name   string
	label  string
	weight bool
	value  func(campaign.Payload) string
}

var sheetFields = map[SheetType][]fieldSpec{
	SheetInboundShipments: {
		{name: "grossWeightKg", label: "Gross Weight (kg)", weight: true,
			value: func(p campaign.Payload) string { return p.(campaign.InboundShipmentRecorded).GrossWeightKg.String() }},
		{name: "netWeightKg", label: "Net Weight (kg)", weight: true,
			value: func(p campaign.Payload) string { return p.(campaign.InboundShipmentRecorded).NetWeightKg.String() }},
		{name: "carrier", label: "Carrier",
			value: func(p campaign.Payload) string { return p.(campaign.InboundShipmentRecorded).Carrier }},
		{name: "trackingRef", label: "Tracking Reference",
			value: func(p campaign.Payload) string { return p.(campaign.InboundShipmentRecorded).TrackingRef }},
		{name: "shipDate", label: "Ship Date",
			value: func(p campaign.Payload) string { return p.(campaign.InboundShipmentRecorded).ShipDate }},
		{name: "arrivalDate", label: "Arrival Date",
			value: func(p campaign.Payload) string { return p.(campaign.InboundShipmentRecorded).ArrivalDate }},
	},
	SheetTransfer: {
		{name: "trackingRef", label: "Tracking Reference",
			value: func(p campaign.Payload) string { return p.(campaign.TransferToRGERecorded).TrackingRef }},
		{name: "carrier", label: "Carrier",
			value: func(p campaign.Payload) string { return p.(campaign.TransferToRGERecorded).Carrier }},
		{name: "shipDate", label: "Ship Date",
			value: func(p campaign.Payload) string { return p.(campaign.TransferToRGERecorded).ShipDate }},
	},
	SheetManufacturing: {
		{name: "poNumber", label: "PO Number",
			value: func(p campaign.Payload) string { return p.(campaign.ManufacturingStarted).PONumber }},
		{name: "poQuantity", label: "PO Quantity",
			value: func(p campaign.Payload) string { return strconv.Itoa(p.(campaign.ManufacturingStarted).POQuantity) }},
		{name: "startDate", label: "Start Date",
			value: func(p campaign.Payload) string { return p.(campaign.ManufacturingStarted).StartDate }},
	},
}

// processFields are shared by the four processing-step sheets.
var processFields = []fieldSpec{
	{name: "ticketNumber", label: "Ticket Number",
		value: func(p campaign.Payload) string { s, _ := processStepOf(p); return s.TicketNumber }},
	{name: "startingWeightKg", label: "Starting Weight (kg)", weight: true,
		value: func(p campaign.Payload) string { s, _ := processStepOf(p); return s.StartingWeightKg.String() }},
	{name: "outputWeightKg", label: "Output Weight (kg)", weight: true,
		value: func(p campaign.Payload) string { s, _ := processStepOf(p); return s.OutputWeightKg.String() }},
	{name: "processDate", label: "Process Date",
		value: func(p campaign.Payload) string { s, _ := processStepOf(p); return s.ProcessDate }},
}

func init() {
	for _, sheet := range []SheetType{SheetGranulation, SheetMetalRemoval, SheetPurification, SheetExtrusion} {
		sheetFields[sheet] = processFields
	}
}

// processStepOf extracts the shared processing-step fields from any of
// the four step payload variants.
func processStepOf(p campaign.Payload) (campaign.ProcessStep, bool) {
	switch v := p.(type) {
	case campaign.GranulationCompleted:
		return v.ProcessStep, true
	case campaign.MetalRemovalCompleted:
		return v.ProcessStep, true
	case campaign.PurificationCompleted:
		return v.ProcessStep, true
	case campaign.ExtrusionCompleted:
		return v.ProcessStep, true
	}
	return campaign.ProcessStep{}, false
}

// =============================================================================
// FIELD COMPARISON
// =============================================================================

// fieldsEqual compares two canonical field values under the spec's
// semantics: decimal epsilon for weights, trimmed exact match otherwise.
func fieldsEqual(spec fieldSpec, a, b string) bool {
	if spec.weight {
		da, errA := decimal.NewFromString(strings.TrimSpace(a))
		db, errB := decimal.NewFromString(strings.TrimSpace(b))
		if errA != nil || errB != nil {
			return strings.TrimSpace(a) == strings.TrimSpace(b)
		}
		return da.Sub(db).Abs().LessThanOrEqual(weightEpsilon)
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// diffPayloads returns one FieldChange per compared field that differs
// between the recorded payload and the proposed payload.
func diffPayloads(sheet SheetType, recorded, proposed campaign.Payload) []FieldChange {
	var changes []FieldChange
	for _, spec := range sheetFields[sheet] {
		current := spec.value(recorded)
		next := spec.value(proposed)
		if !fieldsEqual(spec, current, next) {
			changes = append(changes, FieldChange{
				Field:    spec.name,
				Label:    spec.label,
				Current:  current,
				Proposed: next,
			})
		}
	}
	return changes
}
