package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const BookingsTable = "bookings"

type BookingRepo interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter, offset, limit int) ([]*Booking, int, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, at time.Time) (*Booking, error)
	SetTrackingActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) (*Booking, error)
}

type BookingFilter struct {
	ClientID   uuid.UUID
	MusicianID uuid.UUID
	Status     BookingStatus
}

func (su *SupabaseRepo) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	raw, _, err := su.supabaseClient.From(BookingsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return decodeOne[Booking](raw, "booking")
}

func (su *SupabaseRepo) ListBookings(ctx context.Context, filter BookingFilter, offset, limit int) ([]*Booking, int, error) {
	q := su.supabaseClient.From(BookingsTable).Select("*", "exact", false)
	if filter.ClientID != uuid.Nil {
		q = q.Eq("client_id", filter.ClientID.String())
	}
	if filter.MusicianID != uuid.Nil {
		q = q.Eq("musician_id", filter.MusicianID.String())
	}
	if filter.Status != "" {
		q = q.Eq("status", string(filter.Status))
	}

	rows, total, err := listPage[Booking](q, "event_date", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return rows, total, nil
}

// UpdateBookingStatus only succeeds while the row is still in the from state,
// so two racing accept/decline calls cannot both win.
func (su *SupabaseRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, at time.Time) (*Booking, error) {
	raw, _, err := su.supabaseClient.From(BookingsTable).
		Update(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		}, "representation", "").
		Eq("id", id.String()).
		Eq("status", string(from)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := decodeRows[Booking](raw)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("booking is no longer %s: %w", from, ErrConflict)
	}
	return &rows[0], nil
}

func (su *SupabaseRepo) SetTrackingActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) (*Booking, error) {
	raw, _, err := su.supabaseClient.From(BookingsTable).
		Update(map[string]interface{}{
			"tracking_active": active,
			"updated_at":      at,
		}, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update tracking flag: %w", err)
	}
	return decodeOne[Booking](raw, "booking")
}
