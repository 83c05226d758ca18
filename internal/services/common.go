package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/cache"
	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/mq"
)

// Actor is the authenticated caller as the services see it.
type Actor struct {
	ID          uuid.UUID
	Role        string
	IsAdmin     bool
	IsSupport   bool
	Suspended   bool
	KYCVerified bool
}

func (a Actor) IsStaff() bool {
	return a.IsAdmin || a.IsSupport
}

func (a Actor) IsMusician() bool {
	return a.Role == models.RoleMusician
}

func (a Actor) IsClient() bool {
	return a.Role == models.RoleClient
}

// requireActive rejects suspended accounts on anything that creates content.
func requireActive(actor Actor) error {
	if actor.Suspended {
		return fmt.Errorf("account is suspended: %w", models.ErrForbidden)
	}
	return nil
}

// base carries what every service shares.
type base struct {
	locks  *cache.Store
	events mq.EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func newBase(locks *cache.Store, pub mq.EventPublisher, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = mq.NewLocalPublisher(nil, logger)
	}
	return base{
		locks:  locks,
		events: pub,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// lock guards op on id against a concurrent second invocation.
func (b base) lock(ctx context.Context, op string, id uuid.UUID) (func(), error) {
	release, err := b.locks.Lock(ctx, cache.LockKey(op, id), cache.DefaultLockTTL)
	if errors.Is(err, cache.ErrLocked) {
		return nil, fmt.Errorf("%s already in progress: %w", op, models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	return release, nil
}

// publish never fails the caller: the write it describes is already committed.
func (b base) publish(ctx context.Context, envs ...events.Envelope) {
	for _, env := range envs {
		if env.RecipientID == uuid.Nil {
			continue
		}
		if err := b.events.Publish(ctx, env); err != nil {
			b.logger.Error("failed to publish event", "key", env.Key, "recipient", env.RecipientID, "error", err)
		}
	}
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
