/*
handlers_test.go - HTTP surface tests

Exercises the router end to end with httptest: identity enforcement,
campaign CRUD, event appends through the factory, the compliance gate's
HTTP status mapping, and the import preview/apply round trip.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopworks/campaign-engine/api"
	"github.com/loopworks/campaign-engine/campaign"
	"github.com/loopworks/campaign-engine/campaign/store"
	"github.com/loopworks/campaign-engine/importer"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := campaign.NewService(store.NewMemoryEvents(), store.NewMemoryProjections(), nil)
	server := httptest.NewServer(api.NewRouter(api.NewHandler(svc, nil)))
	t.Cleanup(server.Close)
	return server
}

// do sends a JSON request with the test identity header and decodes the
// response body into out (when out is non-nil).
func do(t *testing.T, server *httptest.Server, method, path string, body, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "tester")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createCampaign(t *testing.T, server *httptest.Server, code string) api.CampaignDTO {
	t.Helper()
	var dto api.CampaignDTO
	resp := do(t, server, http.MethodPost, "/api/campaigns", api.CreateCampaignRequest{
		LegoCampaignCode: code,
		MaterialType:     "PCR",
	}, &dto)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return dto
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestAPI_Health_NoIdentityRequired(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_MissingIdentity_Unauthorized(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/campaigns")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

func TestAPI_CreateAndGetCampaign(t *testing.T) {
	server := newTestServer(t)

	created := createCampaign(t, server, "LC-API-001")
	assert.Equal(t, "LC-API-001", created.LegoCampaignCode)
	assert.Equal(t, "created", created.Status)
	assert.Equal(t, "Inbound Shipment", created.NextExpectedStep)

	var fetched api.CampaignDTO
	resp := do(t, server, http.MethodGet, "/api/campaigns/"+created.ID, nil, &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, fetched.ID)
}

func TestAPI_CreateCampaign_ValidationError(t *testing.T) {
	server := newTestServer(t)

	var errResp api.ErrorResponse
	resp := do(t, server, http.MethodPost, "/api/campaigns", api.CreateCampaignRequest{
		MaterialType: "PCR",
	}, &errResp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errResp.Error, "legoCampaignCode")
}

func TestAPI_GetCampaign_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp := do(t, server, http.MethodGet, "/api/campaigns/cmp_missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ListCampaigns_Filtered(t *testing.T) {
	server := newTestServer(t)
	createCampaign(t, server, "LC-API-010")
	createCampaign(t, server, "LC-API-011")

	var all []api.CampaignDTO
	resp := do(t, server, http.MethodGet, "/api/campaigns", nil, &all)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, all, 2)

	var none []api.CampaignDTO
	resp = do(t, server, http.MethodGet, "/api/campaigns?status=completed", nil, &none)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, none)

	resp = do(t, server, http.MethodGet, "/api/campaigns?status=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestAPI_AppendEvent(t *testing.T) {
	server := newTestServer(t)
	created := createCampaign(t, server, "LC-API-020")

	var evt api.EventDTO
	resp := do(t, server, http.MethodPost, "/api/campaigns/"+created.ID+"/events", api.AppendEventRequest{
		EventType: "InboundShipmentRecorded",
		Data:      json.RawMessage(`{"grossWeightKg":"1250.5","netWeightKg":"1180","carrier":"DSV","trackingRef":"DSV-0042"}`),
	}, &evt)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "InboundShipmentRecorded", evt.EventType)
	assert.Equal(t, "tester", evt.UserID)

	var updated api.CampaignDTO
	do(t, server, http.MethodGet, "/api/campaigns/"+created.ID, nil, &updated)
	assert.Equal(t, "inbound_shipment_recorded", updated.Status)
	assert.Equal(t, "1180", updated.CurrentWeightKg)
}

func TestAPI_AppendEvent_UnknownType(t *testing.T) {
	server := newTestServer(t)
	created := createCampaign(t, server, "LC-API-021")

	resp := do(t, server, http.MethodPost, "/api/campaigns/"+created.ID+"/events", api.AppendEventRequest{
		EventType: "ShipmentTeleported",
		Data:      json.RawMessage(`{}`),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GatedEvent_Forbidden(t *testing.T) {
	// GIVEN: A campaign without ECHA approval
	// WHEN: Posting a transfer event
	// THEN: 403, and the event history is unchanged

	server := newTestServer(t)
	created := createCampaign(t, server, "LC-API-022")

	var errResp api.ErrorResponse
	resp := do(t, server, http.MethodPost, "/api/campaigns/"+created.ID+"/events", api.AppendEventRequest{
		EventType: "TransferToRGERecorded",
		Data:      json.RawMessage(`{"trackingRef":"RGE-1","carrier":"DSV"}`),
	}, &errResp)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, errResp.Error, "ECHA approval")

	var history []api.EventDTO
	do(t, server, http.MethodGet, "/api/campaigns/"+created.ID+"/events", nil, &history)
	assert.Len(t, history, 1, "only CampaignCreated should be on the stream")
}

func TestAPI_EventHistoryAndRebuild(t *testing.T) {
	server := newTestServer(t)
	created := createCampaign(t, server, "LC-API-023")

	do(t, server, http.MethodPost, "/api/campaigns/"+created.ID+"/events", api.AppendEventRequest{
		EventType: "InboundShipmentRecorded",
		Data:      json.RawMessage(`{"netWeightKg":"500"}`),
	}, nil)

	var history []api.EventDTO
	resp := do(t, server, http.MethodGet, "/api/campaigns/"+created.ID+"/events", nil, &history)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history, 2)
	assert.Equal(t, "CampaignCreated", history[0].EventType)

	var rebuilt api.CampaignDTO
	resp = do(t, server, http.MethodPost, "/api/campaigns/"+created.ID+"/rebuild", nil, &rebuilt)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "inbound_shipment_recorded", rebuilt.Status)
}

// =============================================================================
// IMPORTS
// =============================================================================

func TestAPI_ImportPreviewAndApply(t *testing.T) {
	// GIVEN: A batch with one new campaign and a granulation row for it
	// WHEN: Previewing, then applying the returned preview
	// THEN: The campaign exists with both events on its stream

	server := newTestServer(t)

	previewReq := api.PreviewImportRequest{
		Sheets: map[importer.SheetType][]importer.Row{
			importer.SheetInboundShipments: {{
				LineNumber:   2,
				CampaignCode: "LC-IMP-001",
				MaterialType: "PCR",
				NetWeightKg:  mustDecimal("1000"),
				Carrier:      "DSV",
			}},
			importer.SheetGranulation: {{
				LineNumber:     2,
				CampaignCode:   "LC-IMP-001",
				TicketNumber:   "GRN-1",
				OutputWeightKg: mustDecimal("950"),
			}},
		},
	}

	var preview importer.Preview
	resp := do(t, server, http.MethodPost, "/api/imports/preview", previewReq, &preview)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, preview.Creates, 1)
	require.Len(t, preview.Events, 1)

	var result importer.ApplyResult
	resp = do(t, server, http.MethodPost, "/api/imports/apply", api.ApplyImportRequest{
		Preview: preview,
	}, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, importer.StatusApplied, result.Status)
	assert.Equal(t, 1, result.CampaignsCreated)
	assert.Equal(t, 2, result.EventsAppended)

	var found []api.CampaignDTO
	do(t, server, http.MethodGet, "/api/campaigns/search?q=LC-IMP-001", nil, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "granulation_complete", found[0].Status)
}

func TestAPI_ImportPreview_Idempotent(t *testing.T) {
	server := newTestServer(t)

	req := api.PreviewImportRequest{
		Sheets: map[importer.SheetType][]importer.Row{
			importer.SheetInboundShipments: {{
				LineNumber: 2, CampaignCode: "LC-IMP-002", MaterialType: "PI",
				NetWeightKg: mustDecimal("400"),
			}},
		},
	}

	var first, second importer.Preview
	do(t, server, http.MethodPost, "/api/imports/preview", req, &first)
	do(t, server, http.MethodPost, "/api/imports/preview", req, &second)
	assert.Equal(t, first, second, "previews are read-only and repeatable")
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAPI_Scenarios(t *testing.T) {
	server := newTestServer(t)

	var list []api.Scenario
	resp := do(t, server, http.MethodGet, "/api/scenarios", nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, list)

	resp = do(t, server, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{Name: "gate-blocked"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var campaigns []api.CampaignDTO
	do(t, server, http.MethodGet, "/api/campaigns?echa=false", nil, &campaigns)
	require.NotEmpty(t, campaigns)
	assert.Equal(t, "extrusion_complete", campaigns[0].Status)

	resp = do(t, server, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{Name: "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// mustDecimal panics on malformed literals; test data only.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("bad decimal literal %q: %v", s, err))
	}
	return d
}
