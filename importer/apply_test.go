package importer_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworks/campaign-engine/campaign"
	"github.com/loopworks/campaign-engine/importer"
)

// =============================================================================
// PHASE ORDER AND ID RESOLUTION
// =============================================================================

func TestApply_CreateThenEvent_ResolvesMintedID(t *testing.T) {
	// GIVEN: A preview creating a campaign and appending an event to it
	// WHEN: Applying
	// THEN: The event lands on the id minted in the create phase

	svc, rec, app := newImportEnv(t)
	ctx := context.Background()

	preview, err := rec.Reconcile(ctx, importer.Batch{
		importer.SheetInboundShipments: {inboundRow(2, "LC-APPLY-1", "1000")},
		importer.SheetGranulation:      {granulationRow(2, "LC-APPLY-1", "950")},
	})
	require.NoError(t, err)
	require.Len(t, preview.Creates, 1)
	require.Len(t, preview.Events, 1)
	require.Empty(t, preview.Events[0].CampaignID, "id does not exist before apply")

	result := app.Apply(ctx, "operator", preview, importer.Selection{})

	assert.Equal(t, importer.StatusApplied, result.Status)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.CampaignsCreated)
	assert.Equal(t, 2, result.EventsAppended, "nested shipment plus granulation")
	assert.Empty(t, result.Errors)

	created, err := svc.CampaignByCode(ctx, "LC-APPLY-1")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, campaign.StatusGranulationComplete, created.Status)
	assert.Equal(t, "950", created.CurrentWeightKg.String())

	history, err := svc.EventsForCampaign(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, campaign.EventCampaignCreated, history[0].EventType)
	assert.Equal(t, campaign.EventInboundShipmentRecorded, history[1].EventType)
	assert.Equal(t, campaign.EventGranulationCompleted, history[2].EventType)
	assert.Equal(t, "operator", history[1].UserID)
}

func TestApply_Update_AppendsCorrection(t *testing.T) {
	// GIVEN: A preview with one update against a recorded shipment
	// WHEN: Applying
	// THEN: An EventCorrected lands on the stream and the projection
	//       picks up the corrected weight

	svc, rec, app := newImportEnv(t)
	ctx := context.Background()
	existing := seedCampaign(t, svc, "LC-APPLY-2")

	row := inboundRow(2, "LC-APPLY-2", "995")
	row.GrossWeightKg = decimal.RequireFromString("1050")
	preview, err := rec.Reconcile(ctx, importer.Batch{
		importer.SheetInboundShipments: {row},
	})
	require.NoError(t, err)
	require.Len(t, preview.Updates, 1)

	result := app.Apply(ctx, "operator", preview, importer.Selection{})
	require.True(t, result.Success)
	assert.Equal(t, 1, result.CorrectionsApplied)

	history, err := svc.EventsForCampaign(ctx, existing.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.Equal(t, campaign.EventEventCorrected, last.EventType)
	correction := last.Data.(campaign.EventCorrected)
	assert.Equal(t, preview.Updates[0].CorrectsEventID, correction.CorrectsEventID)
	assert.Equal(t, campaign.FieldDelta{Was: "1000", Now: "995"}, correction.Changes["netWeightKg"])

	current, err := svc.GetCampaign(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "995", current.CurrentWeightKg.String())
	assert.Equal(t, campaign.StatusInboundShipmentRecorded, current.Status, "corrections never move status")
}

// =============================================================================
// SELECTION
// =============================================================================

func TestApply_DeselectedCreate_OrphansDependentEvent(t *testing.T) {
	// GIVEN: A create and a dependent event, with the create deselected
	// WHEN: Applying
	// THEN: The event cannot resolve a campaign id and fails as an item error

	svc, rec, app := newImportEnv(t)
	ctx := context.Background()

	preview, err := rec.Reconcile(ctx, importer.Batch{
		importer.SheetInboundShipments: {inboundRow(2, "LC-APPLY-3", "1000")},
		importer.SheetGranulation:      {granulationRow(2, "LC-APPLY-3", "950")},
	})
	require.NoError(t, err)

	result := app.Apply(ctx, "operator", preview, importer.Selection{
		Creates: []string{}, // explicitly none
		Events:  []string{preview.Events[0].PreviewID},
	})

	assert.Equal(t, importer.StatusFailed, result.Status)
	assert.False(t, result.Success)
	assert.Zero(t, result.CampaignsCreated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, preview.Events[0].PreviewID, result.Errors[0].PreviewID)

	missing, err := svc.CampaignByCode(ctx, "LC-APPLY-3")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApply_NilSelection_UsesSelectedFlags(t *testing.T) {
	svc, rec, app := newImportEnv(t)
	ctx := context.Background()

	preview, err := rec.Reconcile(ctx, importer.Batch{
		importer.SheetInboundShipments: {
			inboundRow(2, "LC-APPLY-4", "1000"),
			inboundRow(3, "LC-APPLY-5", "600"),
		},
	})
	require.NoError(t, err)
	require.Len(t, preview.Creates, 2)
	preview.Creates[1].Selected = false

	result := app.Apply(ctx, "operator", preview, importer.Selection{})
	require.True(t, result.Success)
	assert.Equal(t, 1, result.CampaignsCreated)

	skipped, err := svc.CampaignByCode(ctx, "LC-APPLY-5")
	require.NoError(t, err)
	assert.Nil(t, skipped)
}

// =============================================================================
// PARTIAL FAILURE
// =============================================================================

func TestApply_GateDenial_IsPartial(t *testing.T) {
	// GIVEN: A preview mixing an appendable event and a gated transfer on
	//        a campaign without ECHA approval
	// WHEN: Applying
	// THEN: The granulation commits, the transfer fails, status is partial

	svc, rec, app := newImportEnv(t)
	ctx := context.Background()
	existing := seedCampaign(t, svc, "LC-APPLY-6")

	preview, err := rec.Reconcile(ctx, importer.Batch{
		importer.SheetGranulation: {granulationRow(2, "LC-APPLY-6", "950")},
		importer.SheetTransfer: {{
			LineNumber: 2, CampaignCode: "LC-APPLY-6", TrackingRef: "RGE-1", Carrier: "DSV",
		}},
	})
	require.NoError(t, err)
	require.Len(t, preview.Events, 2)

	result := app.Apply(ctx, "operator", preview, importer.Selection{})

	assert.Equal(t, importer.StatusPartial, result.Status)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.EventsAppended)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "ECHA approval")

	current, err := svc.GetCampaign(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusGranulationComplete, current.Status)
}

func TestApply_EmptyPreview_AppliesNothing(t *testing.T) {
	_, _, app := newImportEnv(t)

	result := app.Apply(context.Background(), "operator", &importer.Preview{}, importer.Selection{})

	assert.Equal(t, importer.StatusApplied, result.Status)
	assert.True(t, result.Success)
	assert.Zero(t, result.CampaignsCreated+result.EventsAppended+result.CorrectionsApplied)
}
