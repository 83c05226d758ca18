package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MusicianEventsTable = "musician_events"
	TicketTiersTable    = "ticket_tiers"
)

// MusicianEvent is a ticketed show a musician runs themselves.
type MusicianEvent struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	MusicianID    uuid.UUID   `db:"musician_id" json:"musician_id"`
	Title         string      `db:"title" json:"title"`
	Description   string      `db:"description" json:"description,omitempty"`
	Venue         string      `db:"venue" json:"venue,omitempty"`
	EventDate     EventDate   `db:"event_date" json:"event_date"`
	Status        EventStatus `db:"status" json:"status"`
	FlaggedReason string      `db:"flagged_reason" json:"flagged_reason,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// MusicianEventUpdate is the owner-editable subset. Nil fields are left as is.
type MusicianEventUpdate struct {
	Title       *string      `json:"title,omitempty" validate:"omitempty,min=3,max=120"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=2000"`
	Venue       *string      `json:"venue,omitempty" validate:"omitempty,max=200"`
	EventDate   *EventDate   `json:"event_date,omitempty"`
	Status      *EventStatus `json:"status,omitempty" validate:"omitempty,oneof=draft published cancelled"`
}

func (u MusicianEventUpdate) Fields(at time.Time) map[string]interface{} {
	fields := map[string]interface{}{"updated_at": at}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Venue != nil {
		fields["venue"] = *u.Venue
	}
	if u.EventDate != nil {
		fields["event_date"] = u.EventDate.UTC()
	}
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	return fields
}

func (u MusicianEventUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Venue == nil && u.EventDate == nil && u.Status == nil
}

type TicketTier struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	EventID   uuid.UUID       `db:"event_id" json:"event_id" validate:"required"`
	Name      string          `db:"name" json:"name" validate:"required,min=1,max=60"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int             `db:"quantity" json:"quantity" validate:"required,min=1"`
	Sold      int             `db:"sold" json:"sold"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

func (t *TicketTier) Remaining() int {
	if left := t.Quantity - t.Sold; left > 0 {
		return left
	}
	return 0
}

type EventsRepo interface {
	GetMusicianEvent(ctx context.Context, id uuid.UUID) (*MusicianEvent, error)
	UpdateMusicianEvent(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*MusicianEvent, error)
	CreateTicketTier(ctx context.Context, tier *TicketTier) (*TicketTier, error)
	ListTicketTiers(ctx context.Context, eventID uuid.UUID) ([]*TicketTier, error)
}

func (su *SupabaseRepo) GetMusicianEvent(ctx context.Context, id uuid.UUID) (*MusicianEvent, error) {
	raw, _, err := su.supabaseClient.From(MusicianEventsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get musician event: %w", err)
	}
	return decodeOne[MusicianEvent](raw, "musician event")
}

func (su *SupabaseRepo) UpdateMusicianEvent(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*MusicianEvent, error) {
	raw, _, err := su.supabaseClient.From(MusicianEventsTable).
		Update(fields, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update musician event: %w", err)
	}
	return decodeOne[MusicianEvent](raw, "musician event")
}

func (su *SupabaseRepo) CreateTicketTier(ctx context.Context, tier *TicketTier) (*TicketTier, error) {
	if tier.ID == uuid.Nil {
		tier.ID = uuid.New()
	}
	raw, _, err := su.supabaseClient.From(TicketTiersTable).
		Insert(tier, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket tier: %w", err)
	}
	return decodeOne[TicketTier](raw, "ticket tier")
}

func (su *SupabaseRepo) ListTicketTiers(ctx context.Context, eventID uuid.UUID) ([]*TicketTier, error) {
	raw, _, err := su.supabaseClient.From(TicketTiersTable).
		Select("*", "", false).
		Eq("event_id", eventID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket tiers: %w", err)
	}
	rows, err := decodeRows[TicketTier](raw)
	if err != nil {
		return nil, err
	}
	tiers := make([]*TicketTier, len(rows))
	for i := range rows {
		tiers[i] = &rows[i]
	}
	return tiers, nil
}
