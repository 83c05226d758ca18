package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joshua-takyi/gigbay/internal/cache"
	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/mq"
	"github.com/joshua-takyi/gigbay/internal/obs"
	"github.com/joshua-takyi/gigbay/internal/pricing"
)

type WalletService struct {
	base
	wallets  models.WalletRepo
	ledger   models.LedgerRepo
	bookings models.BookingRepo
}

func NewWalletService(wallets models.WalletRepo, ledger models.LedgerRepo, bookings models.BookingRepo, locks *cache.Store, pub mq.EventPublisher, logger *slog.Logger) *WalletService {
	return &WalletService{
		base:     newBase(locks, pub, logger),
		wallets:  wallets,
		ledger:   ledger,
		bookings: bookings,
	}
}

type DepositResult struct {
	Wallet      *models.Wallet            `json:"wallet"`
	Transaction *models.WalletTransaction `json:"transaction"`
}

// GetWallet reads through the balance cache.
func (ws *WalletService) GetWallet(ctx context.Context, actor Actor) (*models.Wallet, error) {
	key := cache.WalletKey(actor.ID)

	var cached models.Wallet
	hit, err := ws.locks.GetJSON(ctx, key, &cached)
	if err != nil {
		ws.logger.Warn("wallet cache read failed", "client_id", actor.ID, "error", err)
	}
	if hit {
		return &cached, nil
	}

	wallet, err := ws.wallets.GetWallet(ctx, actor.ID)
	if errors.Is(err, models.ErrNotFound) {
		wallet, err = models.EmptyWallet(actor.ID), nil
	}
	if err != nil {
		return nil, err
	}

	if err := ws.locks.SetJSON(ctx, key, wallet, cache.WalletBalanceTTL); err != nil {
		ws.logger.Warn("wallet cache write failed", "client_id", actor.ID, "error", err)
	}
	return wallet, nil
}

func (ws *WalletService) invalidate(ctx context.Context, clientID uuid.UUID) {
	if err := ws.locks.Delete(ctx, cache.WalletKey(clientID)); err != nil {
		ws.logger.Warn("wallet cache invalidation failed", "client_id", clientID, "error", err)
	}
}

func (ws *WalletService) ListTransactions(ctx context.Context, actor Actor, offset, limit int) ([]*models.WalletTransaction, int, error) {
	offset, limit = clampPage(offset, limit)
	return ws.wallets.ListWalletTransactions(ctx, actor.ID, offset, limit)
}

func (ws *WalletService) Deposit(ctx context.Context, actor Actor, amount decimal.Decimal, reference string) (_ *DepositResult, err error) {
	ctx, span := obs.Start(ctx, "wallet.deposit")
	defer func() { obs.End(span, err) }()

	if !actor.IsClient() {
		return nil, fmt.Errorf("only clients have a wallet: %w", models.ErrForbidden)
	}
	if err := pricing.ValidateDeposit(amount); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if reference == "" {
		reference = "dep-" + uuid.NewString()
	}

	wallet, tx, err := ws.ledger.Deposit(ctx, actor.ID, amount, reference, ws.now())
	if err != nil {
		return nil, err
	}
	ws.invalidate(ctx, actor.ID)

	ws.publish(ctx, events.New(events.PaymentDeposited, actor.ID, "Wallet funded",
		fmt.Sprintf("%s %s was added to your wallet.", wallet.Currency, amount.StringFixed(2))).
		With("transaction_id", tx.ID.String()))
	return &DepositResult{Wallet: wallet, Transaction: tx}, nil
}

func (ws *WalletService) bookingForClient(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := ws.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ClientID != actor.ID {
		return nil, fmt.Errorf("only the booking client can pay: %w", models.ErrForbidden)
	}
	return booking, nil
}

func (ws *WalletService) PaymentOptions(ctx context.Context, actor Actor, bookingID uuid.UUID) (*pricing.Options, error) {
	booking, err := ws.bookingForClient(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	wallet, err := ws.GetWallet(ctx, actor)
	if err != nil {
		return nil, err
	}

	opts, err := pricing.PaymentOptions(wallet.Balance, booking.Amount)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	return &opts, nil
}

// PayFromWallet moves the booking amount from the client's wallet into
// escrow. The ledger re-checks the balance under a row lock.
func (ws *WalletService) PayFromWallet(ctx context.Context, actor Actor, bookingID uuid.UUID) (_ *models.PaymentReceipt, err error) {
	ctx, span := obs.Start(ctx, "wallet.pay_from_wallet")
	defer func() { obs.End(span, err) }()

	booking, err := ws.bookingForClient(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed || booking.PaymentStatus != models.PaymentUnpaid {
		return nil, fmt.Errorf("only confirmed, unpaid bookings can be paid: %w", models.ErrConflict)
	}

	release, err := ws.lock(ctx, "pay-from-wallet", bookingID)
	if err != nil {
		return nil, err
	}
	defer release()

	currency := booking.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	receipt, err := ws.ledger.PayFromWallet(ctx, models.WalletPayment{
		BookingID: bookingID,
		ClientID:  actor.ID,
		Amount:    booking.Amount,
		NetAmount: pricing.MusicianReceives(booking.Amount),
		Currency:  currency,
		Reference: "booking-" + bookingID.String(),
		At:        ws.now(),
	})
	if err != nil {
		return nil, err
	}
	ws.invalidate(ctx, actor.ID)

	amount := fmt.Sprintf("%s %s", currency, booking.Amount.StringFixed(2))
	ws.publish(ctx,
		events.New(events.PaymentWalletPaid, booking.MusicianID, "Booking paid",
			fmt.Sprintf("The client paid %s. It is held in escrow until the gig is complete.", amount)).
			With("booking_id", bookingID.String()),
		events.New(events.PaymentWalletPaid, actor.ID, "Payment successful",
			fmt.Sprintf("%s was paid from your wallet.", amount)).
			With("booking_id", bookingID.String()),
	)
	return receipt, nil
}

var walletCSVHeader = []string{"id", "created_at", "type", "amount", "balance_after", "currency", "booking_id", "reference", "status"}

// ExportTransactions writes the caller's whole wallet history as CSV.
func (ws *WalletService) ExportTransactions(ctx context.Context, actor Actor, w io.Writer) error {
	out := newCSV(w, walletCSVHeader)
	err := eachPage(func(offset, limit int) (int, int, error) {
		rows, total, err := ws.wallets.ListWalletTransactions(ctx, actor.ID, offset, limit)
		if err != nil {
			return 0, 0, err
		}
		for _, t := range rows {
			booking := ""
			if t.BookingID != nil {
				booking = t.BookingID.String()
			}
			if err := out.row(t.ID.String(), formatTime(t.CreatedAt), string(t.Type), t.Amount.StringFixed(2),
				t.BalanceAfter.StringFixed(2), t.Currency, booking, t.Reference, t.Status); err != nil {
				return 0, 0, err
			}
		}
		return len(rows), total, nil
	})
	if err != nil {
		return err
	}
	return out.flush()
}
