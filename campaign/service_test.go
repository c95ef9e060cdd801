package campaign_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworks/campaign-engine/campaign"
	"github.com/loopworks/campaign-engine/campaign/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*campaign.Service, *store.MemoryEvents, *store.MemoryProjections) {
	t.Helper()
	events := store.NewMemoryEvents()
	projections := store.NewMemoryProjections()
	return campaign.NewService(events, projections, nil), events, projections
}

// =============================================================================
// CREATE
// =============================================================================

func TestService_CreateCampaign(t *testing.T) {
	// GIVEN: A fresh service
	// WHEN: Creating a campaign
	// THEN: CampaignCreated is appended and the projection is the created row

	svc, events, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "LC-2026-100",
		MaterialType:     campaign.MaterialPCR,
		Description:      "first batch",
	})
	require.NoError(t, err)

	assert.True(t, campaign.IsValidID(campaign.KindCampaign, created.ID))
	assert.Equal(t, "LC-2026-100", created.LegoCampaignCode)
	assert.Equal(t, campaign.StatusCreated, created.Status)

	stream, err := events.Load(ctx, campaign.StreamTypeCampaign, created.ID)
	require.NoError(t, err)
	require.Len(t, stream, 1)
	assert.Equal(t, campaign.EventCampaignCreated, stream[0].EventType)
	assert.Equal(t, "alice", stream[0].UserID)
	assert.True(t, campaign.IsValidID(campaign.KindEvent, stream[0].ID))
}

func TestService_CreateCampaign_DuplicateCodeRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "LC-2026-101", MaterialType: campaign.MaterialPI,
	})
	require.NoError(t, err)

	// Same code again, different casing.
	_, err = svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "lc-2026-101", MaterialType: campaign.MaterialPI,
	})
	assert.ErrorIs(t, err, campaign.ErrValidation)
	assert.ErrorContains(t, err, "already exists")
}

func TestService_CreateCampaign_ConcurrentSameCodeCreatesOne(t *testing.T) {
	// GIVEN: Several goroutines racing to create the same code
	// WHEN: They all run CreateCampaign concurrently
	// THEN: Exactly one wins; the losers get the duplicate-code error
	//       and leave no orphan event stream behind

	svc, events, projections := newTestService(t)
	ctx := context.Background()

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
				LegoCampaignCode: "LC-2026-300", MaterialType: campaign.MaterialPCR,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var created, rejected int
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, campaign.ErrValidation)
		rejected++
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, racers-1, rejected)

	all, err := projections.List(ctx, campaign.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	// A rejected create must not have appended anything anywhere.
	stream, err := events.Load(ctx, campaign.StreamTypeCampaign, all[0].ID)
	require.NoError(t, err)
	assert.Len(t, stream, 1)
	assert.Equal(t, 1, events.StreamCount())
}

// =============================================================================
// APPEND
// =============================================================================

func TestService_AppendEvent_UnknownCampaign(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AppendEvent(context.Background(), "alice", "cmp_missing", campaign.InboundShipmentRecorded{
		NetWeightKg: decimal.RequireFromString("10"),
	})

	var notFound *campaign.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "cmp_missing", notFound.CampaignID)
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestService_AppendEvent_RejectsCampaignCreated(t *testing.T) {
	// CampaignCreated only enters a stream through CreateCampaign.
	svc, _, _ := newTestService(t)

	_, err := svc.AppendEvent(context.Background(), "alice", "cmp_any", campaign.CampaignCreated{
		LegoCampaignCode: "LC-X", MaterialType: campaign.MaterialPI,
	})
	assert.ErrorIs(t, err, campaign.ErrValidation)
}

func TestService_AppendEvent_InvalidPayloadLeavesNoTrace(t *testing.T) {
	svc, events, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "LC-2026-102", MaterialType: campaign.MaterialPCR,
	})
	require.NoError(t, err)

	_, err = svc.AppendEvent(ctx, "alice", created.ID, campaign.GranulationCompleted{})
	assert.ErrorIs(t, err, campaign.ErrValidation)

	stream, err := events.Load(ctx, campaign.StreamTypeCampaign, created.ID)
	require.NoError(t, err)
	assert.Len(t, stream, 1, "rejected payload must not be appended")
}

func TestService_FullLifecycle(t *testing.T) {
	// GIVEN: A new campaign
	// WHEN: Driving it through every lifecycle event in order
	// THEN: The projection walks the 12-state order and ends completed

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "LC-2026-103", MaterialType: campaign.MaterialPCR,
	})
	require.NoError(t, err)

	steps := []struct {
		payload campaign.Payload
		status  campaign.Status
	}{
		{campaign.InboundShipmentRecorded{NetWeightKg: decimal.RequireFromString("1180"), GrossWeightKg: decimal.RequireFromString("1250")}, campaign.StatusInboundShipmentRecorded},
		{campaign.GranulationCompleted{ProcessStep: stepPayload("GRN-1", "1180", "1120")}, campaign.StatusGranulationComplete},
		{campaign.MetalRemovalCompleted{ProcessStep: stepPayload("MET-1", "1120", "1095")}, campaign.StatusMetalRemovalComplete},
		{campaign.PurificationCompleted{ProcessStep: stepPayload("PUR-1", "1095", "1050")}, campaign.StatusPurificationComplete},
		{campaign.ExtrusionCompleted{ProcessStep: stepPayload("EXT-1", "1050", "1012")}, campaign.StatusExtrusionComplete},
		{campaign.ECHAApprovalRecorded{ApprovedBy: "A. Holm", ApprovalDate: "2026-02-17"}, campaign.StatusECHAApproved},
		{campaign.TransferToRGERecorded{TrackingRef: "RGE-1", Carrier: "DSV"}, campaign.StatusTransferredToRGE},
		{campaign.ManufacturingStarted{PONumber: "PO-1", POQuantity: 40000}, campaign.StatusManufacturingStarted},
		{campaign.ManufacturingCompleted{ActualQuantity: 39650}, campaign.StatusManufacturingComplete},
		{campaign.ReturnToLEGORecorded{TrackingRef: "RET-1", Quantity: 39650}, campaign.StatusReturnedToLEGO},
		{campaign.CampaignCompleted{}, campaign.StatusCompleted},
	}

	for _, step := range steps {
		_, err := svc.AppendEvent(ctx, "alice", created.ID, step.payload)
		require.NoError(t, err, "appending %s", step.payload.EventType())

		current, err := svc.GetCampaign(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, step.status, current.Status, "after %s", step.payload.EventType())
	}

	final, err := svc.GetCampaign(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, final.CompletedAt)
	assert.Equal(t, "1012", final.CurrentWeightKg.String())

	history, err := svc.EventsForCampaign(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 12)
}

// =============================================================================
// REBUILD
// =============================================================================

func TestService_RebuildProjection_RepairsDrift(t *testing.T) {
	// GIVEN: A projection tampered out of sync with its stream
	// WHEN: Rebuilding from the stream
	// THEN: The projection matches the fold of the full history again

	svc, _, projections := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "LC-2026-104", MaterialType: campaign.MaterialPI,
	})
	require.NoError(t, err)
	_, err = svc.AppendEvent(ctx, "alice", created.ID, campaign.InboundShipmentRecorded{
		NetWeightKg: decimal.RequireFromString("640"),
	})
	require.NoError(t, err)

	// Simulated drift.
	broken, err := projections.Get(ctx, created.ID)
	require.NoError(t, err)
	broken.Status = campaign.StatusCompleted
	broken.CurrentWeightKg = decimal.RequireFromString("9999")
	require.NoError(t, projections.Save(ctx, *broken))

	rebuilt, err := svc.RebuildProjection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusInboundShipmentRecorded, rebuilt.Status)
	assert.Equal(t, "640", rebuilt.CurrentWeightKg.String())

	stored, err := projections.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusInboundShipmentRecorded, stored.Status)
}

func TestService_RebuildProjection_UnknownCampaign(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RebuildProjection(context.Background(), "cmp_missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

// =============================================================================
// READS
// =============================================================================

func TestService_ListAndSearch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	pcr, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "LC-2026-200", MaterialType: campaign.MaterialPCR, Description: "ocean plastics",
	})
	require.NoError(t, err)
	_, err = svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
		LegoCampaignCode: "LC-2026-201", MaterialType: campaign.MaterialPI,
	})
	require.NoError(t, err)

	all, err := svc.ListCampaigns(ctx, campaign.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pcrOnly, err := svc.ListCampaigns(ctx, campaign.Filter{MaterialType: campaign.MaterialPCR})
	require.NoError(t, err)
	require.Len(t, pcrOnly, 1)
	assert.Equal(t, pcr.ID, pcrOnly[0].ID)

	unapproved := false
	pending, err := svc.ListCampaigns(ctx, campaign.Filter{ECHAApproved: &unapproved})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	found, err := svc.SearchCampaigns(ctx, "ocean")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pcr.ID, found[0].ID)

	byCode, err := svc.CampaignByCode(ctx, "lc-2026-200")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, pcr.ID, byCode.ID)

	missing, err := svc.CampaignByCode(ctx, "LC-NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing, "unknown code resolves to nil, not an error")
}

func TestService_RecentCampaigns(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, code := range []string{"LC-A", "LC-B", "LC-C"} {
		_, err := svc.CreateCampaign(ctx, "alice", campaign.CampaignCreated{
			LegoCampaignCode: code, MaterialType: campaign.MaterialPCR,
		})
		require.NoError(t, err)
	}

	recent, err := svc.RecentCampaigns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
