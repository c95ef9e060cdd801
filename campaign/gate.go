/*
gate.go - ECHA compliance gate

PURPOSE:
  Guards RGE-stage events behind recorded ECHA approval. This is a check
  against the current projection, not a persistent state machine: four
  event types are gated, everything else passes unconditionally.

ORDERING CONTRACT (enforced by the service):
  1. Campaign existence is confirmed first - a missing campaign reports
     NotFound, never Denied.
  2. The gate runs before any append - a denial leaves zero side effects
     in both the event store and the projection.

  ECHAApprovalRecorded itself is never gated; recording approval is how
  the gate is opened. Once open it never re-closes automatically.
*/
package campaign

// rgeGated is the fixed set of event types requiring ECHA approval.
var rgeGated = map[EventType]bool{
	EventTransferToRGERecorded:  true,
	EventManufacturingStarted:   true,
	EventManufacturingCompleted: true,
	EventReturnToLEGORecorded:   true,
}

// IsRGEGated reports whether an event type requires ECHA approval.
func IsRGEGated(t EventType) bool { return rgeGated[t] }

// CheckGate returns nil when the event may be appended to the campaign,
// or a ComplianceDeniedError when the event is RGE-gated and the
// campaign has no recorded ECHA approval.
func CheckGate(t EventType, c *Campaign) error {
	if !rgeGated[t] {
		return nil
	}
	if c.ECHAApproved {
		return nil
	}
	return &ComplianceDeniedError{
		CampaignID: c.ID,
		EventType:  t,
		Reason:     "ECHA approval has not been recorded for this campaign",
	}
}
