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
	"github.com/joshua-takyi/gigbay/internal/obs"
	"github.com/joshua-takyi/gigbay/internal/pricing"
)

const escrowReleaseBatch = 50

type BookingService struct {
	base
	bookings models.BookingRepo
	ledger   models.LedgerRepo
	wallets  models.WalletRepo

	onComplete []func(bookingID uuid.UUID)
}

func NewBookingService(bookings models.BookingRepo, ledger models.LedgerRepo, wallets models.WalletRepo, locks *cache.Store, pub mq.EventPublisher, logger *slog.Logger) *BookingService {
	return &BookingService{
		base:     newBase(locks, pub, logger),
		bookings: bookings,
		ledger:   ledger,
		wallets:  wallets,
	}
}

// OnComplete registers fn to run after a booking is marked complete.
func (bs *BookingService) OnComplete(fn func(bookingID uuid.UUID)) {
	bs.onComplete = append(bs.onComplete, fn)
}

// BookingDetail is the booking page view: the row, what the caller may do
// next, the fee split and the escrow state.
type BookingDetail struct {
	Booking          *models.Booking           `json:"booking"`
	Fees             pricing.Breakdown         `json:"fees"`
	Escrow           *models.EscrowTransaction `json:"escrow,omitempty"`
	CanAccept        bool                      `json:"can_accept"`
	CanDecline       bool                      `json:"can_decline"`
	CanMarkComplete  bool                      `json:"can_mark_complete"`
	CanReleaseFunds  bool                      `json:"can_release_funds"`
	FundReleaseAt    *time.Time                `json:"fund_release_at,omitempty"`
	ReleaseCountdown int64                     `json:"release_countdown_seconds"`
}

func (bs *BookingService) loadForParty(ctx context.Context, actor Actor, id uuid.UUID) (*models.Booking, error) {
	booking, err := bs.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(actor.ID) && !actor.IsStaff() {
		return nil, fmt.Errorf("not a party to this booking: %w", models.ErrForbidden)
	}
	return booking, nil
}

func (bs *BookingService) GetBooking(ctx context.Context, actor Actor, id uuid.UUID) (*BookingDetail, error) {
	booking, err := bs.loadForParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	escrow, err := bs.wallets.GetEscrowForBooking(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return bs.detail(actor, booking, escrow), nil
}

func (bs *BookingService) detail(actor Actor, b *models.Booking, escrow *models.EscrowTransaction) *BookingDetail {
	now := bs.now()
	fees, _ := pricing.Calculate(b.Amount)
	isMusician := actor.ID == b.MusicianID
	pending := b.Status == models.BookingPending

	return &BookingDetail{
		Booking:          b,
		Fees:             fees,
		Escrow:           escrow,
		CanAccept:        isMusician && pending,
		CanDecline:       isMusician && pending,
		CanMarkComplete:  b.IsParty(actor.ID) && b.CanMarkComplete(now),
		CanReleaseFunds:  actor.ID == b.ClientID && b.Status == models.BookingCompleted && escrow != nil && escrow.Status == models.EscrowHeld,
		FundReleaseAt:    b.FundReleaseAt(),
		ReleaseCountdown: int64(b.ReleaseCountdown(now).Seconds()),
	}
}

// ListBookings shows a musician their gigs, a client their bookings and
// staff everything.
func (bs *BookingService) ListBookings(ctx context.Context, actor Actor, status models.BookingStatus, offset, limit int) ([]*models.Booking, int, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, fmt.Errorf("unknown booking status %q: %w", status, models.ErrInvalidInput)
	}

	filter := models.BookingFilter{Status: status}
	switch {
	case actor.IsStaff():
	case actor.IsMusician():
		filter.MusicianID = actor.ID
	default:
		filter.ClientID = actor.ID
	}

	offset, limit = clampPage(offset, limit)
	return bs.bookings.ListBookings(ctx, filter, offset, limit)
}

func (bs *BookingService) AcceptBooking(ctx context.Context, actor Actor, id uuid.UUID) (*models.Booking, error) {
	return bs.respond(ctx, actor, id, models.BookingConfirmed)
}

func (bs *BookingService) DeclineBooking(ctx context.Context, actor Actor, id uuid.UUID) (*models.Booking, error) {
	return bs.respond(ctx, actor, id, models.BookingDeclined)
}

func (bs *BookingService) respond(ctx context.Context, actor Actor, id uuid.UUID, to models.BookingStatus) (_ *models.Booking, err error) {
	ctx, span := obs.Start(ctx, "booking.respond")
	defer func() { obs.End(span, err) }()

	booking, err := bs.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.MusicianID != actor.ID {
		return nil, fmt.Errorf("only the booked musician can respond: %w", models.ErrForbidden)
	}
	if !booking.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("cannot move booking from %s to %s: %w", booking.Status, to, models.ErrConflict)
	}

	updated, err := bs.bookings.UpdateBookingStatus(ctx, id, models.BookingPending, to, bs.now())
	if err != nil {
		return nil, err
	}

	key, title := events.BookingConfirmed, "Booking accepted"
	if to == models.BookingDeclined {
		key, title = events.BookingDeclined, "Booking declined"
	}
	bs.publish(ctx, events.New(key, updated.ClientID, title,
		fmt.Sprintf("Your booking for %s was %s.", updated.EventDate.Format("2 Jan 2006"), to)).
		With("booking_id", id.String()))

	bs.logger.Info("booking status changed", "booking_id", id, "status", to)
	return updated, nil
}

// MarkComplete closes a paid, past booking and starts the escrow countdown.
func (bs *BookingService) MarkComplete(ctx context.Context, actor Actor, id uuid.UUID) (_ *models.Booking, err error) {
	ctx, span := obs.Start(ctx, "booking.mark_complete")
	defer func() { obs.End(span, err) }()

	booking, err := bs.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(actor.ID) {
		return nil, fmt.Errorf("only a party to the booking can mark it complete: %w", models.ErrForbidden)
	}
	if !booking.CanMarkComplete(bs.now()) {
		return nil, fmt.Errorf("booking must be paid, past its event date and still open: %w", models.ErrConflict)
	}

	release, err := bs.lock(ctx, "mark-complete", id)
	if err != nil {
		return nil, err
	}
	defer release()

	completed, err := bs.ledger.CompleteBooking(ctx, id, bs.now())
	if err != nil {
		return nil, err
	}
	for _, fn := range bs.onComplete {
		fn(id)
	}

	releaseAt := completed.FundReleaseAt()
	body := "The booking was marked complete."
	if releaseAt != nil {
		body = fmt.Sprintf("The booking was marked complete. Funds release at %s.", releaseAt.Format(time.RFC1123))
	}
	bs.publish(ctx,
		events.New(events.BookingCompleted, completed.Counterpart(actor.ID), "Booking completed", body).
			With("booking_id", id.String()),
	)
	return completed, nil
}

// ReleaseFunds lets the client pay the musician out before the countdown ends.
func (bs *BookingService) ReleaseFunds(ctx context.Context, actor Actor, id uuid.UUID) (_ *models.EscrowTransaction, err error) {
	ctx, span := obs.Start(ctx, "booking.release_funds")
	defer func() { obs.End(span, err) }()

	booking, err := bs.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.ClientID != actor.ID && !actor.IsAdmin {
		return nil, fmt.Errorf("only the client can release funds: %w", models.ErrForbidden)
	}
	if booking.Status != models.BookingCompleted {
		return nil, fmt.Errorf("booking must be completed before funds are released: %w", models.ErrConflict)
	}

	release, err := bs.lock(ctx, "release-funds", id)
	if err != nil {
		return nil, err
	}
	defer release()

	escrow, err := bs.ledger.ReleaseEscrow(ctx, id, bs.now(), false)
	if err != nil {
		return nil, err
	}
	bs.publishRelease(ctx, booking, escrow)
	return escrow, nil
}

func (bs *BookingService) publishRelease(ctx context.Context, b *models.Booking, e *models.EscrowTransaction) {
	bs.publish(ctx, events.New(events.PaymentReleased, b.MusicianID, "Funds released",
		fmt.Sprintf("%s %s has been released to you.", e.Currency, e.NetAmount.StringFixed(2))).
		With("booking_id", b.ID.String()))
}

// RunEscrowReleaser releases every escrow whose countdown has passed, on
// each tick until ctx is done.
func (bs *BookingService) RunEscrowReleaser(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bs.logger.Info("escrow releaser started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			bs.logger.Info("escrow releaser stopped")
			return
		case <-ticker.C:
			bs.ReleaseDueEscrows(ctx)
		}
	}
}

func (bs *BookingService) ReleaseDueEscrows(ctx context.Context) int {
	ids, err := bs.ledger.DueEscrowReleases(ctx, bs.now(), escrowReleaseBatch)
	if err != nil {
		bs.logger.Error("failed to fetch due escrows", "error", err)
		return 0
	}

	released := 0
	for _, id := range ids {
		escrow, err := bs.ledger.ReleaseEscrow(ctx, id, bs.now(), true)
		if errors.Is(err, models.ErrConflict) {
			// released by the client in the meantime
			continue
		}
		if err != nil {
			bs.logger.Error("failed to auto-release escrow", "booking_id", id, "error", err)
			continue
		}
		released++

		booking, err := bs.bookings.GetBooking(ctx, id)
		if err != nil {
			bs.logger.Warn("released escrow but could not load booking", "booking_id", id, "error", err)
			continue
		}
		bs.publishRelease(ctx, booking, escrow)
	}

	if released > 0 {
		bs.logger.Info("auto-released escrows", "count", released)
	}
	return released
}
