package campaign_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworks/campaign-engine/campaign"
)

// =============================================================================
// PAYLOAD VALIDATION
// =============================================================================

func TestPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload campaign.Payload
		field   string // empty means valid
	}{
		{
			name:    "created valid",
			payload: campaign.CampaignCreated{LegoCampaignCode: "LC-2026-001", MaterialType: campaign.MaterialPCR},
		},
		{
			name:    "created missing code",
			payload: campaign.CampaignCreated{MaterialType: campaign.MaterialPI},
			field:   "legoCampaignCode",
		},
		{
			name:    "created bad material",
			payload: campaign.CampaignCreated{LegoCampaignCode: "LC-1", MaterialType: "recycled"},
			field:   "materialType",
		},
		{
			name:    "inbound negative net weight",
			payload: campaign.InboundShipmentRecorded{NetWeightKg: decimal.NewFromInt(-1)},
			field:   "netWeightKg",
		},
		{
			name:    "granulation missing ticket",
			payload: campaign.GranulationCompleted{},
			field:   "ticketNumber",
		},
		{
			name: "granulation valid",
			payload: campaign.GranulationCompleted{ProcessStep: campaign.ProcessStep{
				TicketNumber: "GRN-1", OutputWeightKg: decimal.NewFromInt(100),
			}},
		},
		{
			name:    "approval missing approver",
			payload: campaign.ECHAApprovalRecorded{ApprovalDate: "2026-01-01"},
			field:   "approvedBy",
		},
		{
			name:    "transfer missing tracking ref",
			payload: campaign.TransferToRGERecorded{Carrier: "DSV"},
			field:   "trackingRef",
		},
		{
			name:    "manufacturing negative quantity",
			payload: campaign.ManufacturingStarted{PONumber: "PO-1", POQuantity: -5},
			field:   "poQuantity",
		},
		{
			name:    "correction without changes",
			payload: campaign.EventCorrected{CorrectsEventID: "evt_x", CorrectsEventType: campaign.EventGranulationCompleted},
			field:   "changes",
		},
		{
			name: "correction valid",
			payload: campaign.EventCorrected{
				CorrectsEventID:   "evt_x",
				CorrectsEventType: campaign.EventGranulationCompleted,
				Changes:           map[string]campaign.FieldDelta{"outputWeightKg": {Was: "100", Now: "95"}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *campaign.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			assert.ErrorIs(t, err, campaign.ErrValidation)
		})
	}
}

// =============================================================================
// PAYLOAD CODEC
// =============================================================================

func TestPayloadCodec_RoundTrip(t *testing.T) {
	// GIVEN: A typed payload
	// WHEN: Encoding to JSON and decoding through the event type tag
	// THEN: The typed value comes back intact

	original := campaign.InboundShipmentRecorded{
		GrossWeightKg: decimal.RequireFromString("1250.5"),
		NetWeightKg:   decimal.RequireFromString("1180.25"),
		Carrier:       "DSV",
		TrackingRef:   "DSV-0042",
		ShipDate:      "2026-01-12",
		ArrivalDate:   "2026-01-14",
	}

	data, err := campaign.EncodePayload(original)
	require.NoError(t, err)

	decoded, err := campaign.DecodePayload(campaign.EventInboundShipmentRecorded, data)
	require.NoError(t, err)

	shipment, ok := decoded.(campaign.InboundShipmentRecorded)
	require.True(t, ok, "decoded payload should be InboundShipmentRecorded, got %T", decoded)
	assert.True(t, original.NetWeightKg.Equal(shipment.NetWeightKg))
	assert.Equal(t, original.TrackingRef, shipment.TrackingRef)
}

func TestPayloadCodec_CorrectionChanges(t *testing.T) {
	original := campaign.EventCorrected{
		CorrectsEventID:   "evt_0000h5k3tqag4x8m2p7r",
		CorrectsEventType: campaign.EventGranulationCompleted,
		Reason:            "typo in output weight",
		Changes: map[string]campaign.FieldDelta{
			"outputWeightKg": {Was: "1120", Now: "1125"},
		},
	}

	data, err := campaign.EncodePayload(original)
	require.NoError(t, err)

	decoded, err := campaign.DecodePayload(campaign.EventEventCorrected, data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodePayload_UnknownType(t *testing.T) {
	_, err := campaign.DecodePayload("ShipmentTeleported", []byte(`{}`))
	assert.ErrorIs(t, err, campaign.ErrValidation)
}

func TestEventTypeIsValid(t *testing.T) {
	for _, et := range campaign.EventTypes {
		assert.True(t, et.IsValid(), "%s should be recognized", et)
	}
	assert.False(t, campaign.EventType("NotAThing").IsValid())
}
