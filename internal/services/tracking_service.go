package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/geo"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/mq"
	"github.com/joshua-takyi/gigbay/internal/tracking"
)

type TrackingService struct {
	base
	bookings  models.BookingRepo
	locations models.LocationRepo
	hub       *tracking.Hub
	sessions  *tracking.Registry
}

func NewTrackingService(bookings models.BookingRepo, locations models.LocationRepo, hub *tracking.Hub, pub mq.EventPublisher, logger *slog.Logger) *TrackingService {
	return &TrackingService{
		base:      newBase(nil, pub, logger),
		bookings:  bookings,
		locations: locations,
		hub:       hub,
		sessions:  tracking.NewRegistry(),
	}
}

type LocationInput struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

type LocationResult struct {
	Location   *models.LiveLocation `json:"location"`
	DistanceKm *float64             `json:"distance_km,omitempty"`
	Alerts     []tracking.Alert     `json:"alerts"`
}

func (ts *TrackingService) partyBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := ts.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(actor.ID) {
		return nil, fmt.Errorf("not a party to this booking: %w", models.ErrForbidden)
	}
	return booking, nil
}

func (ts *TrackingService) activeBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := ts.partyBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.TrackingActive {
		return nil, fmt.Errorf("tracking is not active for this booking: %w", models.ErrConflict)
	}
	return booking, nil
}

// Forget drops the booking's alert state. It runs once a booking is
// completed, since nothing reports into it afterwards.
func (ts *TrackingService) Forget(bookingID uuid.UUID) {
	ts.sessions.Reset(bookingID)
}

// RunSessionSweeper evicts alert state of bookings nobody reported into for
// idle, until ctx is done.
func (ts *TrackingService) RunSessionSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ts.logger.Info("tracking session sweeper started", "interval", interval, "idle", idle)
	for {
		select {
		case <-ctx.Done():
			ts.logger.Info("tracking session sweeper stopped")
			return
		case <-ticker.C:
			if n := ts.sessions.Sweep(idle); n > 0 {
				ts.logger.Debug("evicted idle tracking sessions", "count", n)
			}
		}
	}
}

// Start turns tracking on and forgets every one-shot alert of the previous run.
func (ts *TrackingService) Start(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := ts.partyBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed {
		return nil, fmt.Errorf("only confirmed bookings can be tracked: %w", models.ErrConflict)
	}

	updated, err := ts.bookings.SetTrackingActive(ctx, bookingID, true, ts.now())
	if err != nil {
		return nil, err
	}
	ts.sessions.Reset(bookingID)

	ts.publish(ctx, events.New(events.TrackingStarted, booking.Counterpart(actor.ID), "Live tracking started",
		"You can now follow the other party on the way to the gig.").
		With("booking_id", bookingID.String()))
	return updated, nil
}

func (ts *TrackingService) Stop(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := ts.partyBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	updated, err := ts.bookings.SetTrackingActive(ctx, bookingID, false, ts.now())
	if err != nil {
		return nil, err
	}
	ts.sessions.Reset(bookingID)
	ts.hub.Publish(tracking.Update{BookingID: bookingID, UserID: actor.ID, Kind: tracking.UpdateStopped, At: ts.now()})

	ts.publish(ctx, events.New(events.TrackingStopped, booking.Counterpart(actor.ID), "Live tracking stopped", "").
		With("booking_id", bookingID.String()))
	return updated, nil
}

// UpdateLocation stores the caller's fix, streams it to the counterpart and
// raises arrival and distance alerts against the counterpart's last fix.
func (ts *TrackingService) UpdateLocation(ctx context.Context, actor Actor, bookingID uuid.UUID, in LocationInput) (*LocationResult, error) {
	point := geo.Point{Lat: in.Latitude, Lng: in.Longitude}
	if err := point.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if in.Accuracy != nil && *in.Accuracy < 0 {
		return nil, fmt.Errorf("accuracy cannot be negative: %w", models.ErrInvalidInput)
	}

	booking, err := ts.activeBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	now := ts.now()
	loc, err := ts.locations.UpsertLocation(ctx, &models.LiveLocation{
		BookingID: bookingID,
		UserID:    actor.ID,
		Latitude:  point.Lat,
		Longitude: point.Lng,
		Accuracy:  in.Accuracy,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	result := &LocationResult{Location: loc, Alerts: []tracking.Alert{}}
	counterpart := booking.Counterpart(actor.ID)

	all, err := ts.locations.ListLocations(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for _, other := range all {
		if other.UserID != counterpart {
			continue
		}
		km := geo.Distance(point, geo.Point{Lat: other.Latitude, Lng: other.Longitude})
		result.DistanceKm = &km
		result.Alerts = append(result.Alerts, ts.sessions.Session(bookingID, actor.ID).ObserveDistance(km)...)
	}

	ts.hub.Publish(tracking.Update{
		BookingID:  bookingID,
		UserID:     actor.ID,
		Kind:       tracking.UpdateLocation,
		Location:   &point,
		Accuracy:   in.Accuracy,
		DistanceKm: result.DistanceKm,
		At:         now,
	})
	ts.raise(ctx, bookingID, actor.ID, counterpart, result.Alerts)
	return result, nil
}

func (ts *TrackingService) ReportStatus(ctx context.Context, actor Actor, bookingID uuid.UUID, status tracking.DeviceStatus) ([]tracking.Alert, error) {
	if err := models.Validate.Struct(status); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	booking, err := ts.activeBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	alerts := ts.sessions.Session(bookingID, actor.ID).ObserveStatus(status)
	ts.hub.Publish(tracking.Update{BookingID: bookingID, UserID: actor.ID, Kind: tracking.UpdateStatus, Status: &status, At: ts.now()})
	ts.raise(ctx, bookingID, actor.ID, booking.Counterpart(actor.ID), alerts)

	if alerts == nil {
		alerts = []tracking.Alert{}
	}
	return alerts, nil
}

func (ts *TrackingService) raise(ctx context.Context, bookingID, from, to uuid.UUID, alerts []tracking.Alert) {
	for _, a := range alerts {
		alert := a
		ts.hub.Publish(tracking.Update{BookingID: bookingID, UserID: from, Kind: tracking.UpdateAlert, Alert: &alert, At: ts.now()})

		var env events.Envelope
		switch a.Kind {
		case tracking.AlertArrived:
			env = events.New(events.TrackingArrived, to, "They have arrived", "The other party is at the location.")
		case tracking.AlertDistance:
			env = events.New(events.TrackingDistance, to, "Live location update",
				fmt.Sprintf("The other party is %.1f km away.", a.DistanceKm))
		case tracking.AlertOffline:
			env = events.New(events.TrackingOffline, to, "Connection lost",
				"The other party's device went offline. Their location may be out of date.")
		case tracking.AlertLowBattery:
			env = events.New(events.TrackingLowBattery, to, "Low battery",
				fmt.Sprintf("The other party's battery is at %d%%.", a.Battery))
		default:
			continue
		}
		ts.publish(ctx, env.With("booking_id", bookingID.String()))
	}
}

// Subscribe opens a live stream of the counterpart's updates. The caller
// must Close the subscription.
func (ts *TrackingService) Subscribe(ctx context.Context, actor Actor, bookingID uuid.UUID) (*tracking.Subscription, error) {
	if _, err := ts.partyBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return ts.hub.Subscribe(bookingID, actor.ID), nil
}
