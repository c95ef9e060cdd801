/*
Package sqlite provides a SQLite-backed implementation of the campaign
storage interfaces.

PURPOSE:
  Implements campaign.EventStore and campaign.ProjectionStore on SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  The events table sees INSERT only. No UPDATE or DELETE statements
  exist for it; corrections arrive as EventCorrected rows.

KEY TABLES:
  events:     Immutable event log. seq is AUTOINCREMENT, so append order
              is preserved even when two events share created_at.
  campaigns:  The projection, one row per campaign, upserted by the
              projector.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block the single
  writer, and crash recovery is better.

USAGE:
  store, err := sqlite.New("./data/campaigns.db")
  svc := campaign.NewService(store, store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - campaign/store.go: Interface definitions
  - campaign/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/loopworks/campaign-engine/campaign"
)

// timeFormat pads nanoseconds to a fixed width. RFC3339Nano trims
// trailing fractional zeros, so ".1" would sort after ".15" as TEXT;
// the padded form keeps lexicographic order chronological.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements campaign.EventStore and campaign.ProjectionStore.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite store at the given path. Use
// ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Events (append-only; seq preserves append order on equal timestamps)
	CREATE TABLE IF NOT EXISTS events (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		stream_type TEXT NOT NULL,
		stream_id   TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		event_data  TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_stream
		ON events(stream_type, stream_id, seq);
	CREATE INDEX IF NOT EXISTS idx_events_type
		ON events(event_type);

	-- Campaign projection (one row per campaign, upserted by the projector)
	CREATE TABLE IF NOT EXISTS campaigns (
		id                 TEXT PRIMARY KEY,
		lego_campaign_code TEXT NOT NULL,
		material_type      TEXT NOT NULL,
		status             TEXT NOT NULL,
		current_step       TEXT NOT NULL,
		next_expected_step TEXT NOT NULL DEFAULT '',
		current_weight_kg  TEXT NOT NULL DEFAULT '0',
		description        TEXT NOT NULL DEFAULT '',
		echa_approved      INTEGER NOT NULL DEFAULT 0,
		last_event_type    TEXT NOT NULL DEFAULT '',
		last_event_at      TEXT NOT NULL DEFAULT '',
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL,
		completed_at       TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_campaigns_code
		ON campaigns(lego_campaign_code COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_campaigns_status
		ON campaigns(status);
	CREATE INDEX IF NOT EXISTS idx_campaigns_updated
		ON campaigns(updated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (campaign.EventStore interface)
// =============================================================================

// Append inserts one event and returns it with the assigned seq.
func (s *Store) Append(ctx context.Context, evt campaign.Event) (campaign.Event, error) {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	data, err := campaign.EncodePayload(evt.Data)
	if err != nil {
		return campaign.Event{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, stream_type, stream_id, event_type, event_data, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID,
		evt.StreamType,
		evt.StreamID,
		string(evt.EventType),
		string(data),
		evt.UserID,
		evt.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return campaign.Event{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return campaign.Event{}, err
	}
	evt.Seq = seq
	return evt, nil
}

// Load returns a stream's history in (created_at, seq) order.
func (s *Store) Load(ctx context.Context, streamType, streamID string) ([]campaign.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, stream_type, stream_id, event_type, event_data, user_id, created_at
		FROM events
		WHERE stream_type = ? AND stream_id = ?
		ORDER BY created_at, seq`,
		streamType, streamID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []campaign.Event{}
	for rows.Next() {
		var (
			evt       campaign.Event
			eventType string
			data      string
			createdAt string
		)
		if err := rows.Scan(&evt.Seq, &evt.ID, &evt.StreamType, &evt.StreamID, &eventType, &data, &evt.UserID, &createdAt); err != nil {
			return nil, err
		}
		evt.EventType = campaign.EventType(eventType)
		if evt.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("event %s: bad created_at: %w", evt.ID, err)
		}
		if evt.Data, err = campaign.DecodePayload(evt.EventType, []byte(data)); err != nil {
			return nil, fmt.Errorf("event %s: %w", evt.ID, err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// =============================================================================
// PROJECTION STORE (campaign.ProjectionStore interface)
// =============================================================================

const campaignColumns = `id, lego_campaign_code, material_type, status, current_step,
	next_expected_step, current_weight_kg, description, echa_approved,
	last_event_type, last_event_at, created_at, updated_at, completed_at`

// Save upserts a projection row.
func (s *Store) Save(ctx context.Context, c campaign.Campaign) error {
	var completedAt sql.NullString
	if c.CompletedAt != nil {
		completedAt = sql.NullString{String: c.CompletedAt.UTC().Format(timeFormat), Valid: true}
	}
	var lastEventAt string
	if !c.LastEventAt.IsZero() {
		lastEventAt = c.LastEventAt.UTC().Format(timeFormat)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lego_campaign_code = excluded.lego_campaign_code,
			material_type      = excluded.material_type,
			status             = excluded.status,
			current_step       = excluded.current_step,
			next_expected_step = excluded.next_expected_step,
			current_weight_kg  = excluded.current_weight_kg,
			description        = excluded.description,
			echa_approved      = excluded.echa_approved,
			last_event_type    = excluded.last_event_type,
			last_event_at      = excluded.last_event_at,
			updated_at         = excluded.updated_at,
			completed_at       = excluded.completed_at`,
		c.ID,
		c.LegoCampaignCode,
		string(c.MaterialType),
		string(c.Status),
		c.CurrentStep,
		c.NextExpectedStep,
		c.CurrentWeightKg.String(),
		c.Description,
		boolToInt(c.ECHAApproved),
		string(c.LastEventType),
		lastEventAt,
		c.CreatedAt.UTC().Format(timeFormat),
		c.UpdatedAt.UTC().Format(timeFormat),
		completedAt,
	)
	return err
}

// Get returns the projection for an id, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*campaign.Campaign, error) {
	return s.getOne(ctx, `WHERE id = ?`, id)
}

// GetByCode resolves a campaign code, or (nil, nil) when no match.
func (s *Store) GetByCode(ctx context.Context, code string) (*campaign.Campaign, error) {
	return s.getOne(ctx, `WHERE lego_campaign_code = ? COLLATE NOCASE`, strings.TrimSpace(code))
}

func (s *Store) getOne(ctx context.Context, where string, args ...any) (*campaign.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns `+where, args...)
	c, err := scanCampaign(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns projections matching the filter, newest first.
func (s *Store) List(ctx context.Context, f campaign.Filter) ([]campaign.Campaign, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MaterialType != "" {
		where = append(where, "material_type = ?")
		args = append(args, string(f.MaterialType))
	}
	if f.ECHAApproved != nil {
		where = append(where, "echa_approved = ?")
		args = append(args, boolToInt(*f.ECHAApproved))
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY updated_at DESC, id DESC`
	return s.queryCampaigns(ctx, query, args...)
}

// Search matches code or description, case-insensitive, newest first.
func (s *Store) Search(ctx context.Context, query string) ([]campaign.Campaign, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	return s.queryCampaigns(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE lower(lego_campaign_code) LIKE ? OR lower(description) LIKE ?
		ORDER BY updated_at DESC, id DESC`,
		like, like,
	)
}

// Recent returns the n most recently updated projections.
func (s *Store) Recent(ctx context.Context, n int) ([]campaign.Campaign, error) {
	return s.queryCampaigns(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		ORDER BY updated_at DESC, id DESC
		LIMIT ?`,
		n,
	)
}

func (s *Store) queryCampaigns(ctx context.Context, query string, args ...any) ([]campaign.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// scanCampaign maps one projection row. Takes the Scan function so it
// works for both sql.Row and sql.Rows.
func scanCampaign(scan func(...any) error) (*campaign.Campaign, error) {
	var (
		c            campaign.Campaign
		materialType string
		status       string
		weight       string
		echaApproved int
		lastType     string
		lastAt       string
		createdAt    string
		updatedAt    string
		completedAt  sql.NullString
	)
	err := scan(&c.ID, &c.LegoCampaignCode, &materialType, &status, &c.CurrentStep,
		&c.NextExpectedStep, &weight, &c.Description, &echaApproved,
		&lastType, &lastAt, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	c.MaterialType = campaign.MaterialType(materialType)
	c.Status = campaign.Status(status)
	c.ECHAApproved = echaApproved != 0
	c.LastEventType = campaign.EventType(lastType)

	if c.CurrentWeightKg, err = decimal.NewFromString(weight); err != nil {
		return nil, fmt.Errorf("campaign %s: bad weight %q: %w", c.ID, weight, err)
	}
	if lastAt != "" {
		if c.LastEventAt, err = time.Parse(timeFormat, lastAt); err != nil {
			return nil, fmt.Errorf("campaign %s: bad last_event_at: %w", c.ID, err)
		}
	}
	if c.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("campaign %s: bad created_at: %w", c.ID, err)
	}
	if c.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("campaign %s: bad updated_at: %w", c.ID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(timeFormat, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("campaign %s: bad completed_at: %w", c.ID, err)
		}
		c.CompletedAt = &t
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
