package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// LedgerRepo holds every money-moving mutation. Each method is a single
// transaction: either all of its rows change or none do.
type LedgerRepo interface {
	Deposit(ctx context.Context, clientID uuid.UUID, amount decimal.Decimal, reference string, at time.Time) (*Wallet, *WalletTransaction, error)
	PayFromWallet(ctx context.Context, req WalletPayment) (*PaymentReceipt, error)
	CompleteBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (*Booking, error)
	ReleaseEscrow(ctx context.Context, bookingID uuid.UUID, at time.Time, onlyIfDue bool) (*EscrowTransaction, error)
	DueEscrowReleases(ctx context.Context, at time.Time, limit int) ([]uuid.UUID, error)
}

// WalletPayment is a booking paid from the client's wallet. NetAmount is what
// the musician receives once the escrow is released.
type WalletPayment struct {
	BookingID uuid.UUID
	ClientID  uuid.UUID
	Amount    decimal.Decimal
	NetAmount decimal.Decimal
	Currency  string
	Reference string
	At        time.Time
}

type PaymentReceipt struct {
	Wallet      *Wallet            `json:"wallet"`
	Transaction *WalletTransaction `json:"transaction"`
	Escrow      *EscrowTransaction `json:"escrow"`
}

const bookingColumns = `id, client_id, musician_id, event_id, status, payment_status, amount, currency,
	event_date, event_location, latitude, longitude, tracking_active, marked_complete_at,
	funds_released_at, created_at, updated_at`

const walletColumns = `client_id, balance, total_funded, total_spent, pending_payments, currency, updated_at`

const escrowColumns = `id, booking_id, status, amount, net_amount, currency, held_at, release_at, released_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var (
		b                    Booking
		eventID              uuid.NullUUID
		location             sql.NullString
		lat, lng             sql.NullFloat64
		markedAt, releasedAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.ClientID, &b.MusicianID, &eventID, &b.Status, &b.PaymentStatus,
		&b.Amount, &b.Currency, &b.EventDate, &location, &lat, &lng, &b.TrackingActive,
		&markedAt, &releasedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if eventID.Valid {
		id := eventID.UUID
		b.EventID = &id
	}
	b.EventLocation = location.String
	if lat.Valid {
		b.Latitude = &lat.Float64
	}
	if lng.Valid {
		b.Longitude = &lng.Float64
	}
	if markedAt.Valid {
		b.MarkedCompleteAt = &markedAt.Time
	}
	if releasedAt.Valid {
		b.FundsReleasedAt = &releasedAt.Time
	}
	return &b, nil
}

func scanWallet(row rowScanner) (*Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ClientID, &w.Balance, &w.TotalFunded, &w.TotalSpent, &w.PendingPayments, &w.Currency, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanEscrow(row rowScanner) (*EscrowTransaction, error) {
	var (
		e                     EscrowTransaction
		releaseAt, releasedAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.BookingID, &e.Status, &e.Amount, &e.NetAmount, &e.Currency, &e.HeldAt, &releaseAt, &releasedAt); err != nil {
		return nil, err
	}
	if releaseAt.Valid {
		e.ReleaseAt = &releaseAt.Time
	}
	if releasedAt.Valid {
		e.ReleasedAt = &releasedAt.Time
	}
	return &e, nil
}

func insertWalletTransaction(ctx context.Context, tx *sql.Tx, t *WalletTransaction) error {
	var bookingID interface{}
	if t.BookingID != nil {
		bookingID = *t.BookingID
	}
	_, err := tx.ExecContext(ctx, `
	INSERT INTO client_wallet_transactions
		(id, client_id, booking_id, type, amount, balance_after, currency, reference, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.ClientID, bookingID, t.Type, t.Amount, t.BalanceAfter, t.Currency, t.Reference, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert wallet transaction: %w", err)
	}
	return nil
}

// EnsureIndexes creates the constraints the ledger relies on that the
// Supabase migrations do not carry.
func (pg *PostgresRepo) EnsureIndexes(ctx context.Context) error {
	_, err := pg.db.ExecContext(ctx, `
	CREATE UNIQUE INDEX IF NOT EXISTS client_wallet_transactions_deposit_reference_key
	ON client_wallet_transactions (client_id, reference)
	WHERE type = 'deposit'
	`)
	if err != nil {
		return fmt.Errorf("failed to create deposit reference index: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Deposit credits the wallet once per (client, reference). A replayed
// reference is a conflict and leaves the balance untouched.
func (pg *PostgresRepo) Deposit(ctx context.Context, clientID uuid.UUID, amount decimal.Decimal, reference string, at time.Time) (*Wallet, *WalletTransaction, error) {
	var (
		wallet *Wallet
		txRow  *WalletTransaction
	)

	err := pg.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
		INSERT INTO client_wallets
			(client_id, balance, total_funded, total_spent, pending_payments, currency, created_at, updated_at)
		VALUES ($1, $2, $2, 0, 0, $3, $4, $4)
		ON CONFLICT (client_id) DO UPDATE SET
			balance = client_wallets.balance + EXCLUDED.balance,
			total_funded = client_wallets.total_funded + EXCLUDED.total_funded,
			updated_at = EXCLUDED.updated_at
		RETURNING `+walletColumns, clientID, amount, DefaultCurrency, at)

		w, err := scanWallet(row)
		if err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}
		wallet = w

		// the upsert above holds the wallet row, so a concurrent replay waits
		// here until this transaction commits
		var seen bool
		if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM client_wallet_transactions
		WHERE client_id = $1 AND reference = $2 AND type = $3)
		`, clientID, reference, WalletTxDeposit).Scan(&seen); err != nil {
			return fmt.Errorf("failed to look up deposit reference: %w", err)
		}
		if seen {
			return fmt.Errorf("deposit %q was already credited: %w", reference, ErrConflict)
		}

		txRow = &WalletTransaction{
			ID:           uuid.New(),
			ClientID:     clientID,
			Type:         WalletTxDeposit,
			Amount:       amount,
			BalanceAfter: w.Balance,
			Currency:     w.Currency,
			Reference:    reference,
			Status:       "completed",
			CreatedAt:    at,
		}
		err = insertWalletTransaction(ctx, tx, txRow)
		if isUniqueViolation(err) {
			return fmt.Errorf("deposit %q was already credited: %w", reference, ErrConflict)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return wallet, txRow, nil
}

func (pg *PostgresRepo) PayFromWallet(ctx context.Context, req WalletPayment) (*PaymentReceipt, error) {
	receipt := &PaymentReceipt{}

	err := pg.WithTx(ctx, func(tx *sql.Tx) error {
		booking, err := scanBooking(tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, req.BookingID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking: %w", ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock booking: %w", err)
		}
		if booking.ClientID != req.ClientID {
			return fmt.Errorf("only the booking client can pay: %w", ErrForbidden)
		}
		if booking.Status != BookingConfirmed || booking.PaymentStatus != PaymentUnpaid {
			return fmt.Errorf("booking is %s/%s: %w", booking.Status, booking.PaymentStatus, ErrConflict)
		}

		var balance decimal.Decimal
		err = tx.QueryRowContext(ctx,
			`SELECT balance FROM client_wallets WHERE client_id = $1 FOR UPDATE`, req.ClientID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}
		if balance.LessThan(req.Amount) {
			return ErrInsufficientFunds
		}

		wallet, err := scanWallet(tx.QueryRowContext(ctx, `
		UPDATE client_wallets
		SET balance = balance - $2, total_spent = total_spent + $2, updated_at = $3
		WHERE client_id = $1
		RETURNING `+walletColumns, req.ClientID, req.Amount, req.At))
		if err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}
		receipt.Wallet = wallet

		bookingID := req.BookingID
		receipt.Transaction = &WalletTransaction{
			ID:           uuid.New(),
			ClientID:     req.ClientID,
			BookingID:    &bookingID,
			Type:         WalletTxPayment,
			Amount:       req.Amount,
			BalanceAfter: wallet.Balance,
			Currency:     req.Currency,
			Reference:    req.Reference,
			Status:       "completed",
			CreatedAt:    req.At,
		}
		if err := insertWalletTransaction(ctx, tx, receipt.Transaction); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET payment_status = $2, updated_at = $3 WHERE id = $1`,
			req.BookingID, PaymentPaid, req.At); err != nil {
			return fmt.Errorf("failed to mark booking paid: %w", err)
		}

		escrow, err := scanEscrow(tx.QueryRowContext(ctx, `
		INSERT INTO escrow_transactions (id, booking_id, status, amount, net_amount, currency, held_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+escrowColumns,
			uuid.New(), req.BookingID, EscrowHeld, req.Amount, req.NetAmount, req.Currency, req.At))
		if err != nil {
			return fmt.Errorf("failed to hold escrow: %w", err)
		}
		receipt.Escrow = escrow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// CompleteBooking re-checks eligibility in the WHERE clause so a second call
// (another tab, a retry) finds no row and reports a conflict.
func (pg *PostgresRepo) CompleteBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (*Booking, error) {
	var booking *Booking

	err := pg.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := scanBooking(tx.QueryRowContext(ctx, `
		UPDATE bookings
		SET status = $2, marked_complete_at = $3, updated_at = $3
		WHERE id = $1
			AND status = $4
			AND payment_status = $5
			AND event_date < $3
		RETURNING `+bookingColumns,
			bookingID, BookingCompleted, at, BookingConfirmed, PaymentPaid))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking cannot be marked complete: %w", ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to mark booking complete: %w", err)
		}
		booking = b

		if _, err := tx.ExecContext(ctx,
			`UPDATE escrow_transactions SET release_at = $2 WHERE booking_id = $1 AND status = $3`,
			bookingID, at.Add(FundReleaseDelay), EscrowHeld); err != nil {
			return fmt.Errorf("failed to schedule escrow release: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (pg *PostgresRepo) ReleaseEscrow(ctx context.Context, bookingID uuid.UUID, at time.Time, onlyIfDue bool) (*EscrowTransaction, error) {
	var escrow *EscrowTransaction

	err := pg.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
		UPDATE escrow_transactions
		SET status = $2, released_at = $3
		WHERE booking_id = $1 AND status = $4`
		if onlyIfDue {
			query += ` AND release_at IS NOT NULL AND release_at <= $3`
		}
		query += ` RETURNING ` + escrowColumns

		e, err := scanEscrow(tx.QueryRowContext(ctx, query, bookingID, EscrowReleased, at, EscrowHeld))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no held escrow for booking: %w", ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to release escrow: %w", err)
		}
		escrow = e

		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET funds_released_at = $2, updated_at = $2 WHERE id = $1`,
			bookingID, at); err != nil {
			return fmt.Errorf("failed to stamp funds release: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

func (pg *PostgresRepo) DueEscrowReleases(ctx context.Context, at time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := pg.db.QueryContext(ctx, `
	SELECT booking_id FROM escrow_transactions
	WHERE status = $1 AND release_at IS NOT NULL AND release_at <= $2
	ORDER BY release_at
	LIMIT $3
	`, EscrowHeld, at, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due escrows: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
