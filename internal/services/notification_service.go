package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
)

type NotificationService struct {
	base
	prefs models.PreferencesRepo
	inbox models.NotificationRepo
}

func NewNotificationService(prefs models.PreferencesRepo, inbox models.NotificationRepo, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		base:  newBase(nil, nil, logger),
		prefs: prefs,
		inbox: inbox,
	}
}

func (ns *NotificationService) GetPreferences(ctx context.Context, actor Actor) (*models.NotificationPreferences, error) {
	return ns.prefs.GetPreferences(ctx, actor.ID)
}

// UpdatePreferences applies a partial update per channel: {"booking":{"push":false}}
// leaves booking email as it was. Unknown category or channel keys are rejected.
func (ns *NotificationService) UpdatePreferences(ctx context.Context, actor Actor, raw []byte) (*models.NotificationPreferences, error) {
	upd, err := models.DecodePreferencesUpdate(raw)
	if err != nil {
		return nil, err
	}

	current, err := ns.prefs.GetPreferences(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	current.UserID = actor.ID
	current.Apply(upd, ns.now())
	return ns.prefs.SavePreferences(ctx, current)
}

// Deliver writes an envelope to the recipient's inbox if their preferences
// allow push for its category. During quiet hours the entry is stored silent.
// It reports whether an entry was written.
func (ns *NotificationService) Deliver(ctx context.Context, env events.Envelope) (bool, error) {
	category := events.Category(env.Key)

	prefs, err := ns.prefs.GetPreferences(ctx, env.RecipientID)
	if err != nil {
		return false, fmt.Errorf("failed to load preferences: %w", err)
	}
	if !prefs.Allows(category, models.ChannelPush) {
		ns.logger.Debug("notification muted by preferences", "key", env.Key, "recipient", env.RecipientID)
		return false, nil
	}

	now := ns.now()
	n := &models.Notification{
		UserID:    env.RecipientID.String(),
		Category:  category,
		Type:      env.Key,
		Title:     env.Title,
		Body:      env.Body,
		Data:      env.Data,
		Silent:    category != models.CategorySystem && prefs.QuietHours.Active(now),
		CreatedAt: now,
	}
	if err := ns.inbox.InsertNotification(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// Handle is the broker entry point. Undecodable messages are dropped rather
// than redelivered.
func (ns *NotificationService) Handle(ctx context.Context, key string, body []byte) error {
	env, err := events.Decode(body)
	if err != nil {
		ns.logger.Warn("dropping malformed event", "key", key, "error", err)
		return nil
	}
	_, err = ns.Deliver(ctx, env)
	return err
}

func (ns *NotificationService) ListInbox(ctx context.Context, actor Actor, unreadOnly bool, offset, limit int) ([]*models.Notification, int64, error) {
	offset, limit = clampPage(offset, limit)
	return ns.inbox.ListNotifications(ctx, actor.ID.String(), unreadOnly, offset, limit)
}

// MarkRead marks the given inbox entries read, or all of them when ids is empty.
func (ns *NotificationService) MarkRead(ctx context.Context, actor Actor, ids []string) (int64, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, fmt.Errorf("invalid notification id %q: %w", id, models.ErrInvalidInput)
		}
		oids = append(oids, oid)
	}
	return ns.inbox.MarkNotificationsRead(ctx, actor.ID.String(), oids)
}
