/*
apply.go - Committing a confirmed reconciliation preview

PURPOSE:
  Writes the operator-selected subset of a preview through the campaign
  service, in a fixed phase order:

    1. creates - mint a campaign per CreatePreview, append
       CampaignCreated (and the nested InboundShipmentRecorded), and
       record code -> new id for the rest of the batch
    2. events  - resolve the campaign id through the creates map first,
       falling back to the preview's stored id, then append
    3. updates - build an EventCorrected from the FieldChange list and
       append it

  Phases are sequential, never parallel: later phases depend on ids
  minted by earlier ones. The code->id map is request-scoped and passed
  explicitly; it never outlives one apply call.

FAILURE SEMANTICS:
  Items are independent. One failure lands in Errors with its preview id
  and the rest of the batch continues. Apply always returns a result
  structure; Success is true only with zero errors, and a mix of writes
  and errors reports the distinct "partial" status. Gated event types
  still pass through the compliance gate inside the service, so a
  denial shows up as an item error, not a partial write.
*/
package importer

import (
	"context"
	"log/slog"

	"github.com/loopworks/campaign-engine/campaign"
)

// Writer is the write-side of the campaign service the applier commits
// through. Implemented by campaign.Service.
type Writer interface {
	CreateCampaign(ctx context.Context, userID string, payload campaign.CampaignCreated) (*campaign.Campaign, error)
	AppendEvent(ctx context.Context, userID, campaignID string, payload campaign.Payload) (*campaign.Event, error)
}

// Applier commits confirmed previews.
type Applier struct {
	Writer Writer

	log *slog.Logger
}

// NewApplier creates an applier over the given campaign writer.
func NewApplier(w Writer, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{Writer: w, log: logger}
}

// Apply commits the selected preview items. It never returns an error
// for per-item failures; those are collected in the result.
func (a *Applier) Apply(ctx context.Context, userID string, preview *Preview, sel Selection) *ApplyResult {
	result := &ApplyResult{}

	// Request-scoped map from campaign code to id minted in phase 1.
	codeToID := make(map[string]string)

	a.applyCreates(ctx, userID, preview, sel, codeToID, result)
	a.applyEvents(ctx, userID, preview, sel, codeToID, result)
	a.applyUpdates(ctx, userID, preview, sel, result)

	writes := result.CampaignsCreated + result.EventsAppended + result.CorrectionsApplied
	switch {
	case len(result.Errors) == 0:
		result.Status = StatusApplied
		result.Success = true
	case writes > 0:
		result.Status = StatusPartial
	default:
		result.Status = StatusFailed
	}

	a.log.Info("import apply finished",
		"status", result.Status,
		"created", result.CampaignsCreated,
		"events", result.EventsAppended,
		"corrections", result.CorrectionsApplied,
		"errors", len(result.Errors))
	return result
}

// applyCreates runs phase 1: new campaigns plus nested shipments.
func (a *Applier) applyCreates(ctx context.Context, userID string, preview *Preview, sel Selection, codeToID map[string]string, result *ApplyResult) {
	selected := selectionSet(sel.Creates)
	for _, create := range preview.Creates {
		if !isSelected(selected, create.PreviewID, create.Selected) {
			continue
		}

		created, err := a.Writer.CreateCampaign(ctx, userID, create.Campaign)
		if err != nil {
			result.Errors = append(result.Errors, ApplyError{PreviewID: create.PreviewID, Message: err.Error()})
			continue
		}
		codeToID[normalizeCode(create.CampaignCode)] = created.ID
		result.CampaignsCreated++

		if create.Shipment != nil {
			if _, err := a.Writer.AppendEvent(ctx, userID, created.ID, *create.Shipment); err != nil {
				result.Errors = append(result.Errors, ApplyError{PreviewID: create.PreviewID, Message: err.Error()})
				continue
			}
			result.EventsAppended++
		}
	}
}

// applyEvents runs phase 2: new events on existing or just-created
// campaigns.
func (a *Applier) applyEvents(ctx context.Context, userID string, preview *Preview, sel Selection, codeToID map[string]string, result *ApplyResult) {
	selected := selectionSet(sel.Events)
	for _, evt := range preview.Events {
		if !isSelected(selected, evt.PreviewID, evt.Selected) {
			continue
		}

		campaignID := codeToID[normalizeCode(evt.CampaignCode)]
		if campaignID == "" {
			campaignID = evt.CampaignID
		}
		if campaignID == "" {
			result.Errors = append(result.Errors, ApplyError{
				PreviewID: evt.PreviewID,
				Message:   "campaign id could not be resolved; was the matching create deselected?",
			})
			continue
		}

		if _, err := a.Writer.AppendEvent(ctx, userID, campaignID, evt.Payload); err != nil {
			result.Errors = append(result.Errors, ApplyError{PreviewID: evt.PreviewID, Message: err.Error()})
			continue
		}
		result.EventsAppended++
	}
}

// applyUpdates runs phase 3: corrections built from field diffs.
func (a *Applier) applyUpdates(ctx context.Context, userID string, preview *Preview, sel Selection, result *ApplyResult) {
	selected := selectionSet(sel.Updates)
	for _, update := range preview.Updates {
		if !isSelected(selected, update.PreviewID, update.Selected) {
			continue
		}

		changes := make(map[string]campaign.FieldDelta, len(update.Changes))
		for _, change := range update.Changes {
			changes[change.Field] = campaign.FieldDelta{Was: change.Current, Now: change.Proposed}
		}
		correction := campaign.EventCorrected{
			CorrectsEventID:   update.CorrectsEventID,
			CorrectsEventType: update.CorrectsEventType,
			Reason:            "bulk import correction",
			Changes:           changes,
		}

		if _, err := a.Writer.AppendEvent(ctx, userID, update.CampaignID, correction); err != nil {
			result.Errors = append(result.Errors, ApplyError{PreviewID: update.PreviewID, Message: err.Error()})
			continue
		}
		result.CorrectionsApplied++
	}
}

// selectionSet builds a lookup from an explicit id list, or nil when
// the caller defers to the preview's Selected flags.
func selectionSet(ids []string) map[string]bool {
	if ids == nil {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func isSelected(set map[string]bool, previewID string, fallback bool) bool {
	if set == nil {
		return fallback
	}
	return set[previewID]
}
