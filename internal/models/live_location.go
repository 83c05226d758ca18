package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const LiveLocationsTable = "live_locations"

// LiveLocation is the last fix a party reported for a booking. There is at
// most one row per (booking_id, user_id).
type LiveLocation struct {
	BookingID uuid.UUID `db:"booking_id" json:"booking_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Latitude  float64   `db:"latitude" json:"latitude" validate:"min=-90,max=90"`
	Longitude float64   `db:"longitude" json:"longitude" validate:"min=-180,max=180"`
	Accuracy  *float64  `db:"accuracy" json:"accuracy,omitempty" validate:"omitempty,min=0"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type LocationRepo interface {
	UpsertLocation(ctx context.Context, loc *LiveLocation) (*LiveLocation, error)
	ListLocations(ctx context.Context, bookingID uuid.UUID) ([]*LiveLocation, error)
}

func (su *SupabaseRepo) UpsertLocation(ctx context.Context, loc *LiveLocation) (*LiveLocation, error) {
	raw, _, err := su.supabaseClient.From(LiveLocationsTable).
		Upsert(loc, "booking_id,user_id", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to upsert live location: %w", err)
	}
	return decodeOne[LiveLocation](raw, "live location")
}

func (su *SupabaseRepo) ListLocations(ctx context.Context, bookingID uuid.UUID) ([]*LiveLocation, error) {
	raw, _, err := su.supabaseClient.From(LiveLocationsTable).
		Select("*", "", false).
		Eq("booking_id", bookingID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list live locations: %w", err)
	}
	rows, err := decodeRows[LiveLocation](raw)
	if err != nil {
		return nil, err
	}
	out := make([]*LiveLocation, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
