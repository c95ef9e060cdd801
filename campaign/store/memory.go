// Package store provides in-memory implementations of the campaign
// persistence interfaces, used by tests and local development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loopworks/campaign-engine/campaign"
)

// =============================================================================
// MEMORY EVENT STORE - Append-only, per-stream slices
// =============================================================================

// MemoryEvents is an in-memory campaign.EventStore.
type MemoryEvents struct {
	mu      sync.RWMutex
	streams map[streamKey][]campaign.Event
	nextSeq int64

	// Clock is the append timestamp source. Overridable in tests.
	Clock func() time.Time
}

type streamKey struct {
	StreamType string
	StreamID   string
}

// NewMemoryEvents creates an empty in-memory event store.
func NewMemoryEvents() *MemoryEvents {
	return &MemoryEvents{
		streams: make(map[streamKey][]campaign.Event),
		Clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Append records the event with a monotonic Seq and the append time.
func (m *MemoryEvents) Append(_ context.Context, evt campaign.Event) (campaign.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	evt.Seq = m.nextSeq
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = m.Clock()
	}

	k := streamKey{StreamType: evt.StreamType, StreamID: evt.StreamID}
	m.streams[k] = append(m.streams[k], evt)
	return evt, nil
}

// Load returns the stream history in append order. The slice is a copy.
func (m *MemoryEvents) Load(_ context.Context, streamType, streamID string) ([]campaign.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := streamKey{StreamType: streamType, StreamID: streamID}
	result := make([]campaign.Event, len(m.streams[k]))
	copy(result, m.streams[k])
	return result, nil
}

// StreamCount reports how many distinct streams hold at least one event.
func (m *MemoryEvents) StreamCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams)
}

// =============================================================================
// MEMORY PROJECTION STORE - One row per campaign
// =============================================================================

// MemoryProjections is an in-memory campaign.ProjectionStore.
type MemoryProjections struct {
	mu        sync.RWMutex
	campaigns map[string]campaign.Campaign
}

// NewMemoryProjections creates an empty in-memory projection store.
func NewMemoryProjections() *MemoryProjections {
	return &MemoryProjections{campaigns: make(map[string]campaign.Campaign)}
}

func (m *MemoryProjections) Get(_ context.Context, id string) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryProjections) GetByCode(_ context.Context, code string) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.campaigns {
		if strings.EqualFold(c.LegoCampaignCode, code) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryProjections) List(_ context.Context, f campaign.Filter) ([]campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []campaign.Campaign
	for _, c := range m.campaigns {
		if f.Matches(c) {
			result = append(result, c)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *MemoryProjections) Search(_ context.Context, query string) ([]campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var result []campaign.Campaign
	for _, c := range m.campaigns {
		if q == "" ||
			strings.Contains(strings.ToLower(c.LegoCampaignCode), q) ||
			strings.Contains(strings.ToLower(c.Description), q) {
			result = append(result, c)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *MemoryProjections) Recent(_ context.Context, n int) ([]campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]campaign.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		result = append(result, c)
	}
	sortNewestFirst(result)
	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result, nil
}

func (m *MemoryProjections) Save(_ context.Context, c campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.campaigns[c.ID] = c
	return nil
}

// sortNewestFirst orders by UpdatedAt descending, id as tiebreaker so
// listings are stable.
func sortNewestFirst(cs []campaign.Campaign) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].UpdatedAt.Equal(cs[j].UpdatedAt) {
			return cs[i].UpdatedAt.After(cs[j].UpdatedAt)
		}
		return cs[i].ID > cs[j].ID
	})
}
