/*
reconcile.go - Classifying imported rows against event history

PURPOSE:
  Given a batch of spreadsheet rows and read-only access to existing
  campaigns and their streams, decide for every row whether it is a new
  campaign, a new event, a correction of a past event, or a no-op. The
  result is a preview; nothing is written here.

ALGORITHM (per row, sheets in fixed order):
  1. Resolve the campaign code against existing projections.
  2. Unknown code on an origin-capable sheet (inbound, granulation):
     Create. The first create for a code wins; later origin rows for the
     same new code route through event/skip classification instead of
     creating twice.
  3. Known campaign: compare against the most recent prior event of the
     sheet's event type. No prior event -> New Event. All compared
     fields match -> Skip (duplicate). Any field differs -> Update with
     one FieldChange per difference, referencing the prior event.
  4. Unknown code on a non-origin sheet -> Skip (campaign not found).

DETERMINISM:
  Sheets iterate in SheetOrder, rows in input order, and preview ids
  derive from (kind, sheet, line). Same batch + same history = same
  preview, byte for byte.
*/
package importer

import (
	"context"
	"log/slog"

	"github.com/loopworks/campaign-engine/campaign"
)

// Directory is the read-only view of existing campaigns the reconciler
// needs. Implemented by campaign.Service.
type Directory interface {
	CampaignByCode(ctx context.Context, code string) (*campaign.Campaign, error)
	EventsForCampaign(ctx context.Context, campaignID string) ([]campaign.Event, error)
}

// Reconciler classifies import batches against existing history.
type Reconciler struct {
	Directory Directory

	log *slog.Logger
}

// NewReconciler creates a reconciler over the given campaign directory.
func NewReconciler(dir Directory, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{Directory: dir, log: logger}
}

// batchState tracks in-batch decisions so later rows see earlier ones.
type batchState struct {
	// creates maps normalized code -> the winning CreatePreview.
	creates map[string]CreatePreview
	// pending maps normalized code -> event type -> payloads already
	// classified as new events in this batch. Used to collapse exact
	// in-batch duplicates.
	pending map[string]map[campaign.EventType][]campaign.Payload
	// events caches loaded streams per campaign id.
	events map[string][]campaign.Event
}

// Reconcile classifies every row of the batch and returns the preview.
// Read-only: no events are appended and no projections change.
func (r *Reconciler) Reconcile(ctx context.Context, batch Batch) (*Preview, error) {
	preview := &Preview{}
	state := &batchState{
		creates: make(map[string]CreatePreview),
		pending: make(map[string]map[campaign.EventType][]campaign.Payload),
		events:  make(map[string][]campaign.Event),
	}

	for _, sheet := range SheetOrder {
		for _, row := range batch[sheet] {
			if err := r.classify(ctx, preview, state, sheet, row); err != nil {
				return nil, err
			}
		}
	}

	preview.Summary = Summary{
		Creates: len(preview.Creates),
		Events:  len(preview.Events),
		Updates: len(preview.Updates),
		Skipped: len(preview.Skipped),
	}
	r.log.Info("reconciliation complete",
		"creates", preview.Summary.Creates,
		"events", preview.Summary.Events,
		"updates", preview.Summary.Updates,
		"skipped", preview.Summary.Skipped)
	return preview, nil
}

// classify routes one row into creates, events, updates, or skipped.
func (r *Reconciler) classify(ctx context.Context, preview *Preview, state *batchState, sheet SheetType, row Row) error {
	code := normalizeCode(row.CampaignCode)
	if code == "" {
		preview.Skipped = append(preview.Skipped, SkippedRow{
			SheetType: sheet, LineNumber: row.LineNumber, Reason: ReasonMissingCode,
		})
		return nil
	}

	existing, err := r.Directory.CampaignByCode(ctx, code)
	if err != nil {
		return err
	}

	switch {
	case existing != nil:
		return r.classifyAgainstHistory(ctx, preview, state, sheet, row, existing)
	case hasInBatchCreate(state, code):
		// Campaign is being created earlier in this batch.
		r.classifyAgainstBatch(preview, state, sheet, row, code)
		return nil
	case canOriginate(sheet):
		r.classifyCreate(preview, state, sheet, row, code)
		return nil
	default:
		preview.Skipped = append(preview.Skipped, SkippedRow{
			SheetType: sheet, LineNumber: row.LineNumber,
			CampaignCode: row.CampaignCode, Reason: ReasonCampaignNotFound,
		})
		return nil
	}
}

// classifyCreate emits a CreatePreview for an unknown code on an
// origin-capable sheet. Inbound rows nest their shipment payload; a
// granulation-origin row additionally queues its process event since
// CampaignCreated alone would drop its data.
func (r *Reconciler) classifyCreate(preview *Preview, state *batchState, sheet SheetType, row Row, code string) {
	material := campaign.MaterialType(normalizeCode(row.MaterialType))
	if !material.IsValid() {
		// Sheets past inbound rarely carry a material column; PCR is
		// the dominant material and the operator reviews the preview.
		material = campaign.MaterialPCR
	}

	create := CreatePreview{
		PreviewID:    previewID("create", sheet, row.LineNumber),
		SheetType:    sheet,
		LineNumber:   row.LineNumber,
		CampaignCode: code,
		Campaign: campaign.CampaignCreated{
			LegoCampaignCode: code,
			MaterialType:     material,
			Description:      row.Description,
		},
		Selected: true,
	}

	if sheet == SheetInboundShipments {
		shipment := payloadForRow(sheet, row).(campaign.InboundShipmentRecorded)
		create.Shipment = &shipment
	}

	preview.Creates = append(preview.Creates, create)
	state.creates[code] = create

	if sheet != SheetInboundShipments {
		r.queueEvent(preview, state, sheet, row, code, "")
	}
}

// classifyAgainstBatch handles a row whose campaign is created earlier
// in the same batch: exact duplicates collapse to skips, everything
// else becomes an event resolved through the creates map at apply time.
func (r *Reconciler) classifyAgainstBatch(preview *Preview, state *batchState, sheet SheetType, row Row, code string) {
	proposed := payloadForRow(sheet, row)
	eventType := sheetEvents[sheet]

	var candidates []campaign.Payload
	if create, ok := state.creates[code]; ok && create.Shipment != nil && eventType == campaign.EventInboundShipmentRecorded {
		candidates = append(candidates, *create.Shipment)
	}
	candidates = append(candidates, state.pending[code][eventType]...)

	for _, recorded := range candidates {
		if len(diffPayloads(sheet, recorded, proposed)) == 0 {
			preview.Skipped = append(preview.Skipped, SkippedRow{
				SheetType: sheet, LineNumber: row.LineNumber,
				CampaignCode: row.CampaignCode, Reason: ReasonDuplicate,
			})
			return
		}
	}
	r.queueEvent(preview, state, sheet, row, code, "")
}

// classifyAgainstHistory compares a row to the most recent prior event
// of the matching type on an existing campaign's stream.
func (r *Reconciler) classifyAgainstHistory(ctx context.Context, preview *Preview, state *batchState, sheet SheetType, row Row, existing *campaign.Campaign) error {
	code := normalizeCode(row.CampaignCode)
	eventType := sheetEvents[sheet]
	proposed := payloadForRow(sheet, row)

	events, ok := state.events[existing.ID]
	if !ok {
		loaded, err := r.Directory.EventsForCampaign(ctx, existing.ID)
		if err != nil {
			return err
		}
		state.events[existing.ID] = loaded
		events = loaded
	}

	// Most recent prior event of this type: scan from the end.
	var prior *campaign.Event
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType == eventType {
			prior = &events[i]
			break
		}
	}

	if prior == nil {
		// In-batch duplicates of a brand-new event also collapse.
		for _, recorded := range state.pending[code][eventType] {
			if len(diffPayloads(sheet, recorded, proposed)) == 0 {
				preview.Skipped = append(preview.Skipped, SkippedRow{
					SheetType: sheet, LineNumber: row.LineNumber,
					CampaignCode: row.CampaignCode, Reason: ReasonDuplicate,
				})
				return nil
			}
		}
		r.queueEvent(preview, state, sheet, row, code, existing.ID)
		return nil
	}

	changes := diffPayloads(sheet, prior.Data, proposed)
	if len(changes) == 0 {
		preview.Skipped = append(preview.Skipped, SkippedRow{
			SheetType: sheet, LineNumber: row.LineNumber,
			CampaignCode: row.CampaignCode, Reason: ReasonDuplicate,
		})
		return nil
	}

	preview.Updates = append(preview.Updates, UpdatePreview{
		PreviewID:         previewID("update", sheet, row.LineNumber),
		SheetType:         sheet,
		LineNumber:        row.LineNumber,
		CampaignID:        existing.ID,
		CampaignCode:      existing.LegoCampaignCode,
		CorrectsEventID:   prior.ID,
		CorrectsEventType: prior.EventType,
		Changes:           changes,
		Selected:          true,
	})
	return nil
}

// hasInBatchCreate reports whether an earlier row of this batch already
// creates the campaign code.
func hasInBatchCreate(state *batchState, code string) bool {
	_, ok := state.creates[code]
	return ok
}

// queueEvent emits an EventPreview and records it for in-batch
// duplicate detection.
func (r *Reconciler) queueEvent(preview *Preview, state *batchState, sheet SheetType, row Row, code, campaignID string) {
	payload := payloadForRow(sheet, row)
	eventType := sheetEvents[sheet]

	preview.Events = append(preview.Events, EventPreview{
		PreviewID:    previewID("event", sheet, row.LineNumber),
		SheetType:    sheet,
		LineNumber:   row.LineNumber,
		CampaignID:   campaignID,
		CampaignCode: code,
		EventType:    eventType,
		Payload:      payload,
		Selected:     true,
	})

	if state.pending[code] == nil {
		state.pending[code] = make(map[campaign.EventType][]campaign.Payload)
	}
	state.pending[code][eventType] = append(state.pending[code][eventType], payload)
}
