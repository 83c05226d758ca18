package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const PreferencesTable = "notification_preferences"

type Category string

const (
	CategoryBooking   Category = "booking"
	CategoryMessage   Category = "message"
	CategoryPayment   Category = "payment"
	CategoryJob       Category = "job"
	CategoryMarketing Category = "marketing"
	// CategorySystem is never user-configurable; it always reaches the inbox.
	CategorySystem Category = "system"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
)

type ChannelPrefs struct {
	Email    bool `json:"email"`
	SMS      bool `json:"sms"`
	WhatsApp bool `json:"whatsapp"`
	Push     bool `json:"push"`
}

func (c ChannelPrefs) Enabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.SMS
	case ChannelWhatsApp:
		return c.WhatsApp
	case ChannelPush:
		return c.Push
	}
	return false
}

// QuietHours is a daily window in Timezone. A window whose start is after its
// end wraps past midnight. Start equal to end is an empty window.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start" validate:"omitempty,datetime=15:04"`
	End      string `json:"end" validate:"omitempty,datetime=15:04"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM: %w", s, ErrInvalidInput)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (q QuietHours) Active(at time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := clockMinutes(q.Start)
	if err != nil {
		return false
	}
	end, err := clockMinutes(q.End)
	if err != nil {
		return false
	}

	loc := time.UTC
	if q.Timezone != "" {
		if l, err := time.LoadLocation(q.Timezone); err == nil {
			loc = l
		}
	}
	local := at.In(loc)
	now := local.Hour()*60 + local.Minute()

	switch {
	case start == end:
		return false
	case start < end:
		return now >= start && now < end
	default:
		return now >= start || now < end
	}
}

type NotificationPreferences struct {
	UserID     uuid.UUID    `db:"user_id" json:"user_id"`
	Booking    ChannelPrefs `db:"booking" json:"booking"`
	Message    ChannelPrefs `db:"message" json:"message"`
	Payment    ChannelPrefs `db:"payment" json:"payment"`
	Job        ChannelPrefs `db:"job" json:"job"`
	Marketing  ChannelPrefs `db:"marketing" json:"marketing"`
	QuietHours QuietHours   `db:"quiet_hours" json:"quiet_hours"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// DefaultPreferences is what a user who never saved preferences gets.
func DefaultPreferences(userID uuid.UUID) *NotificationPreferences {
	on := ChannelPrefs{Email: true, Push: true}
	return &NotificationPreferences{
		UserID:     userID,
		Booking:    on,
		Message:    on,
		Payment:    on,
		Job:        on,
		Marketing:  ChannelPrefs{},
		QuietHours: QuietHours{Start: "22:00", End: "07:00"},
	}
}

// Allows reports whether a category may reach the user on ch.
func (p *NotificationPreferences) Allows(cat Category, ch Channel) bool {
	switch cat {
	case CategoryBooking:
		return p.Booking.Enabled(ch)
	case CategoryMessage:
		return p.Message.Enabled(ch)
	case CategoryPayment:
		return p.Payment.Enabled(ch)
	case CategoryJob:
		return p.Job.Enabled(ch)
	case CategoryMarketing:
		return p.Marketing.Enabled(ch)
	case CategorySystem:
		return true
	}
	return false
}

// ChannelPrefsUpdate carries only the channels the caller sent; the others
// keep their saved value.
type ChannelPrefsUpdate struct {
	Email    *bool `json:"email,omitempty"`
	SMS      *bool `json:"sms,omitempty"`
	WhatsApp *bool `json:"whatsapp,omitempty"`
	Push     *bool `json:"push,omitempty"`
}

func (u *ChannelPrefsUpdate) merge(into *ChannelPrefs) {
	if u == nil {
		return
	}
	if u.Email != nil {
		into.Email = *u.Email
	}
	if u.SMS != nil {
		into.SMS = *u.SMS
	}
	if u.WhatsApp != nil {
		into.WhatsApp = *u.WhatsApp
	}
	if u.Push != nil {
		into.Push = *u.Push
	}
}

// PreferencesUpdate carries only the categories the caller sent. Quiet hours
// are replaced as a whole.
type PreferencesUpdate struct {
	Booking    *ChannelPrefsUpdate `json:"booking,omitempty"`
	Message    *ChannelPrefsUpdate `json:"message,omitempty"`
	Payment    *ChannelPrefsUpdate `json:"payment,omitempty"`
	Job        *ChannelPrefsUpdate `json:"job,omitempty"`
	Marketing  *ChannelPrefsUpdate `json:"marketing,omitempty"`
	QuietHours *QuietHours         `json:"quiet_hours,omitempty"`
}

// DecodePreferencesUpdate rejects unknown category and channel keys instead
// of silently dropping them.
func DecodePreferencesUpdate(raw []byte) (*PreferencesUpdate, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var upd PreferencesUpdate
	if err := dec.Decode(&upd); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	if upd.QuietHours != nil {
		if err := Validate.Struct(upd.QuietHours); err != nil {
			return nil, fmt.Errorf("quiet hours: %v: %w", err, ErrInvalidInput)
		}
		if upd.QuietHours.Enabled && (upd.QuietHours.Start == "" || upd.QuietHours.End == "") {
			return nil, fmt.Errorf("quiet hours need a start and an end: %w", ErrInvalidInput)
		}
	}
	return &upd, nil
}

func (p *NotificationPreferences) Apply(upd *PreferencesUpdate, at time.Time) {
	upd.Booking.merge(&p.Booking)
	upd.Message.merge(&p.Message)
	upd.Payment.merge(&p.Payment)
	upd.Job.merge(&p.Job)
	upd.Marketing.merge(&p.Marketing)
	if upd.QuietHours != nil {
		p.QuietHours = *upd.QuietHours
	}
	p.UpdatedAt = at
}

type PreferencesRepo interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *NotificationPreferences) (*NotificationPreferences, error)
}

func (su *SupabaseRepo) GetPreferences(ctx context.Context, userID uuid.UUID) (*NotificationPreferences, error) {
	raw, _, err := su.supabaseClient.From(PreferencesTable).
		Select("*", "", false).
		Eq("user_id", userID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	prefs, err := decodeOne[NotificationPreferences](raw, "preferences")
	if errors.Is(err, ErrNotFound) {
		return DefaultPreferences(userID), nil
	}
	return prefs, err
}

func (su *SupabaseRepo) SavePreferences(ctx context.Context, prefs *NotificationPreferences) (*NotificationPreferences, error) {
	raw, _, err := su.supabaseClient.From(PreferencesTable).
		Upsert(prefs, "user_id", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	return decodeOne[NotificationPreferences](raw, "preferences")
}
