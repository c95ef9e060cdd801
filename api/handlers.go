/*
handlers.go - HTTP API handlers for the campaign engine

PURPOSE:
  Exposes the campaign core via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic. Handlers stay thin:
  parse, call the service/reconciler/applier, serialize.

ENDPOINTS:
  Campaigns:
    GET    /api/campaigns               List (filter: status, material, echa)
    POST   /api/campaigns               Create campaign
    GET    /api/campaigns/search        Free-text search (?q=)
    GET    /api/campaigns/recent        Recently updated (?limit=)
    GET    /api/campaigns/{id}          Projection for one campaign
    GET    /api/campaigns/{id}/events   Full event history
    POST   /api/campaigns/{id}/events   Append one event (gated types
                                        pass the compliance gate)
    POST   /api/campaigns/{id}/rebuild  Replay the stream into the
                                        projection

  Imports:
    POST   /api/imports/preview         Reconcile a batch (read-only)
    POST   /api/imports/apply           Commit a confirmed preview

ERROR HANDLING:
  Errors map to JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing identity
  - 403: Compliance gate denied
  - 404: Campaign not found
  - 409: Projection desync (opaque message)
  - 500: Storage and internal errors (opaque message)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/loopworks/campaign-engine/campaign"
	"github.com/loopworks/campaign-engine/factory"
	"github.com/loopworks/campaign-engine/importer"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *campaign.Service
	Reconciler *importer.Reconciler
	Applier    *importer.Applier
	Factory    *factory.EventFactory

	log *slog.Logger
}

// NewHandler creates a handler around the campaign service.
func NewHandler(svc *campaign.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:    svc,
		Reconciler: importer.NewReconciler(svc, logger),
		Applier:    importer.NewApplier(svc, logger),
		Factory:    factory.NewEventFactory(),
		log:        logger,
	}
}

// =============================================================================
// CAMPAIGN READS
// =============================================================================

// ListCampaigns returns projections, optionally filtered.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	f := campaign.Filter{
		Status:       campaign.Status(r.URL.Query().Get("status")),
		MaterialType: campaign.MaterialType(r.URL.Query().Get("material")),
	}
	if raw := r.URL.Query().Get("echa"); raw != "" {
		approved := raw == "true"
		f.ECHAApproved = &approved
	}
	if f.Status != "" && !f.Status.IsValid() {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown status filter"})
		return
	}

	campaigns, err := h.Service.ListCampaigns(r.Context(), f)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCampaignDTOs(campaigns))
}

// SearchCampaigns matches code or description against ?q=.
func (h *Handler) SearchCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.Service.SearchCampaigns(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCampaignDTOs(campaigns))
}

// RecentCampaigns returns the most recently updated projections.
func (h *Handler) RecentCampaigns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	campaigns, err := h.Service.RecentCampaigns(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCampaignDTOs(campaigns))
}

// GetCampaign returns one projection by id.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCampaignDTO(*c))
}

// GetCampaignEvents returns a campaign's event history in append order.
func (h *Handler) GetCampaignEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Service.GetCampaign(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	events, err := h.Service.EventsForCampaign(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	dtos := make([]EventDTO, 0, len(events))
	for _, evt := range events {
		dtos = append(dtos, toEventDTO(evt))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CAMPAIGN WRITES
// =============================================================================

// CreateCampaign starts a new campaign stream.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	created, err := h.Service.CreateCampaign(r.Context(), UserID(r.Context()), campaign.CampaignCreated{
		LegoCampaignCode: req.LegoCampaignCode,
		MaterialType:     campaign.MaterialType(req.MaterialType),
		Description:      req.Description,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCampaignDTO(*created))
}

// AppendEvent appends one typed event to an existing campaign.
func (h *Handler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	var req AppendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	payload, err := h.Factory.ParsePayload(req.EventType, req.Data)
	if err != nil {
		h.respondError(w, err)
		return
	}

	evt, err := h.Service.AppendEvent(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), payload)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toEventDTO(*evt))
}

// RebuildProjection replays a campaign's stream into its projection.
func (h *Handler) RebuildProjection(w http.ResponseWriter, r *http.Request) {
	rebuilt, err := h.Service.RebuildProjection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCampaignDTO(*rebuilt))
}

// =============================================================================
// IMPORTS
// =============================================================================

// PreviewImport reconciles a batch against existing history. Read-only:
// repeating the call with the same batch returns the same preview.
func (h *Handler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	var req PreviewImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	preview, err := h.Reconciler.Reconcile(r.Context(), importer.Batch(req.Sheets))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// ApplyImport commits the selected subset of a preview. Per-item
// failures land in the result's errors list; the response status is
// 200 even for partial outcomes, the body carries the distinction.
func (h *Handler) ApplyImport(w http.ResponseWriter, r *http.Request) {
	var req ApplyImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	result := h.Applier.Apply(r.Context(), UserID(r.Context()), &req.Preview, req.Selection)
	respondJSON(w, http.StatusOK, result)
}

// =============================================================================
// MISC
// =============================================================================

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors to HTTP status codes. Validation,
// not-found, and denied errors surface their message; desync and
// storage failures are logged and surfaced opaque.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrValidation):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, campaign.ErrNotFound):
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, campaign.ErrComplianceDenied):
		respondJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, campaign.ErrProjectionDesync):
		h.log.Error("projection desync surfaced to API", "error", err)
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: "internal data integrity error"})
	default:
		h.log.Error("internal error surfaced to API", "error", err)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
