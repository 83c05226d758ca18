package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingDeclined  BookingStatus = "declined"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// FundReleaseDelay is how long escrowed funds wait after a booking is marked complete.
const FundReleaseDelay = 24 * time.Hour

type Booking struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ClientID         uuid.UUID       `db:"client_id" json:"client_id"`
	MusicianID       uuid.UUID       `db:"musician_id" json:"musician_id"`
	EventID          *uuid.UUID      `db:"event_id" json:"event_id,omitempty"`
	Status           BookingStatus   `db:"status" json:"status"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"payment_status"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	EventDate        EventDate       `db:"event_date" json:"event_date"`
	EventLocation    string          `db:"event_location" json:"event_location,omitempty"`
	Latitude         *float64        `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64        `db:"longitude" json:"longitude,omitempty"`
	TrackingActive   bool            `db:"tracking_active" json:"tracking_active"`
	MarkedCompleteAt *time.Time      `db:"marked_complete_at" json:"marked_complete_at,omitempty"`
	FundsReleasedAt  *time.Time      `db:"funds_released_at" json:"funds_released_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// validTransitions is the whole booking state machine; there is no way back.
var validTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingDeclined},
	BookingConfirmed: {BookingCompleted},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingDeclined:
		return true
	}
	return false
}

func (b *Booking) IsParty(userID uuid.UUID) bool {
	return userID != uuid.Nil && (b.ClientID == userID || b.MusicianID == userID)
}

// Counterpart returns the other party of the booking, or uuid.Nil when userID is not a party.
func (b *Booking) Counterpart(userID uuid.UUID) uuid.UUID {
	switch userID {
	case b.ClientID:
		return b.MusicianID
	case b.MusicianID:
		return b.ClientID
	}
	return uuid.Nil
}

// CanMarkComplete: the event is over, the booking is paid, and its status may
// still move to completed. Only a confirmed booking can.
func (b *Booking) CanMarkComplete(now time.Time) bool {
	if b.EventDate.IsZero() || !b.EventDate.Before(now) {
		return false
	}
	if b.PaymentStatus != PaymentPaid {
		return false
	}
	return b.Status.CanTransitionTo(BookingCompleted)
}

// FundReleaseAt is marked_complete_at + 24h, or nil if not yet complete.
func (b *Booking) FundReleaseAt() *time.Time {
	if b.MarkedCompleteAt == nil {
		return nil
	}
	at := b.MarkedCompleteAt.Add(FundReleaseDelay)
	return &at
}

// ReleaseCountdown is the time left before escrowed funds auto-release. It is
// zero once the deadline has passed or the funds are already out.
func (b *Booking) ReleaseCountdown(now time.Time) time.Duration {
	at := b.FundReleaseAt()
	if at == nil || b.FundsReleasedAt != nil {
		return 0
	}
	if left := at.Sub(now); left > 0 {
		return left
	}
	return 0
}
