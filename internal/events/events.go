package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/models"
)

const (
	BookingConfirmed = "booking.confirmed"
	BookingDeclined  = "booking.declined"
	BookingCompleted = "booking.completed"

	PaymentWalletPaid = "payment.wallet_paid"
	PaymentDeposited  = "payment.deposited"
	PaymentReleased   = "payment.released"
	PaymentRefunded   = "payment.refunded"

	TrackingStarted    = "tracking.started"
	TrackingStopped    = "tracking.stopped"
	TrackingArrived    = "tracking.arrived"
	TrackingDistance   = "tracking.distance"
	TrackingOffline    = "tracking.offline"
	TrackingLowBattery = "tracking.low_battery"

	ModerationReportResolved = "moderation.report_resolved"
	ModerationUserSuspended  = "moderation.user_suspended"
	ModerationEventFlagged   = "moderation.event_flagged"

	JobApplicationReceived = "job.application_received"
	JobApplicationAccepted = "job.application_accepted"
	JobApplicationRejected = "job.application_rejected"
)

// Bindings are the routing keys the notification worker listens on.
var Bindings = []string{"booking.*", "payment.*", "tracking.*", "moderation.*", "job.*"}

// Envelope is the one message shape on the broker. Every event is addressed
// to a single recipient; fan-out happens at publish time.
type Envelope struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	RecipientID uuid.UUID         `json:"recipient_id"`
	ActorID     uuid.UUID         `json:"actor_id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

func New(key string, recipient uuid.UUID, title, body string) Envelope {
	return Envelope{
		ID:          uuid.NewString(),
		Key:         key,
		RecipientID: recipient,
		Title:       title,
		Body:        body,
		Data:        map[string]string{},
		OccurredAt:  time.Now().UTC(),
	}
}

func (e Envelope) With(k, v string) Envelope {
	if e.Data == nil {
		e.Data = map[string]string{}
	}
	e.Data[k] = v
	return e
}

// Category maps a routing key onto the preference category that governs it.
// Tracking alerts are booking notifications.
func Category(key string) models.Category {
	prefix, _, _ := strings.Cut(key, ".")
	switch prefix {
	case "booking", "tracking":
		return models.CategoryBooking
	case "payment":
		return models.CategoryPayment
	case "job":
		return models.CategoryJob
	case "message":
		return models.CategoryMessage
	case "marketing":
		return models.CategoryMarketing
	}
	return models.CategorySystem
}

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode payload failed: %w", err)
	}
	if env.Key == "" || env.RecipientID == uuid.Nil {
		return Envelope{}, fmt.Errorf("envelope %q has no key or recipient", env.ID)
	}
	return env, nil
}
