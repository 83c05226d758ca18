package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/models"
)

type EventService struct {
	base
	events models.EventsRepo
}

func NewEventService(events models.EventsRepo, logger *slog.Logger) *EventService {
	return &EventService{
		base:   newBase(nil, nil, logger),
		events: events,
	}
}

func (es *EventService) ownedEvent(ctx context.Context, actor Actor, id uuid.UUID) (*models.MusicianEvent, error) {
	event, err := es.events.GetMusicianEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.MusicianID != actor.ID {
		return nil, fmt.Errorf("only the event owner can change it: %w", models.ErrForbidden)
	}
	return event, nil
}

// UpdateMusicianEvent applies the owner's edits. A flagged event keeps its
// status until staff clear it.
func (es *EventService) UpdateMusicianEvent(ctx context.Context, actor Actor, id uuid.UUID, upd models.MusicianEventUpdate) (*models.MusicianEvent, error) {
	if err := models.Validate.Struct(upd); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if upd.IsEmpty() {
		return nil, fmt.Errorf("no fields to update: %w", models.ErrInvalidInput)
	}

	event, err := es.ownedEvent(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventFlagged && upd.Status != nil {
		return nil, fmt.Errorf("a flagged event cannot change status: %w", models.ErrConflict)
	}

	return es.events.UpdateMusicianEvent(ctx, id, upd.Fields(es.now()))
}

func (es *EventService) CreateTicketTier(ctx context.Context, actor Actor, tier *models.TicketTier) (*models.TicketTier, error) {
	if err := models.Validate.Struct(tier); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if tier.Price.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative: %w", models.ErrInvalidInput)
	}

	event, err := es.ownedEvent(ctx, actor, tier.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventCancelled || event.Status == models.EventFlagged {
		return nil, fmt.Errorf("cannot add tiers to a %s event: %w", event.Status, models.ErrConflict)
	}

	tier.ID = uuid.New()
	tier.Sold = 0
	tier.CreatedAt = es.now()
	return es.events.CreateTicketTier(ctx, tier)
}

func (es *EventService) ListTicketTiers(ctx context.Context, eventID uuid.UUID) ([]*models.TicketTier, error) {
	if eventID == uuid.Nil {
		return nil, fmt.Errorf("event_id is required: %w", models.ErrInvalidInput)
	}
	return es.events.ListTicketTiers(ctx, eventID)
}
