package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	WalletsTable            = "client_wallets"
	WalletTransactionsTable = "client_wallet_transactions"
	EscrowTable             = "escrow_transactions"

	DefaultCurrency = "NGN"
)

type Wallet struct {
	ClientID        uuid.UUID       `db:"client_id" json:"client_id"`
	Balance         decimal.Decimal `db:"balance" json:"balance"`
	TotalFunded     decimal.Decimal `db:"total_funded" json:"total_funded"`
	TotalSpent      decimal.Decimal `db:"total_spent" json:"total_spent"`
	PendingPayments decimal.Decimal `db:"pending_payments" json:"pending_payments"`
	Currency        string          `db:"currency" json:"currency"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// EmptyWallet is what a client without a wallet row sees.
func EmptyWallet(clientID uuid.UUID) *Wallet {
	return &Wallet{ClientID: clientID, Currency: DefaultCurrency}
}

type WalletTxType string

const (
	WalletTxDeposit WalletTxType = "deposit"
	WalletTxPayment WalletTxType = "payment"
)

type WalletTransaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ClientID     uuid.UUID       `db:"client_id" json:"client_id"`
	BookingID    *uuid.UUID      `db:"booking_id" json:"booking_id,omitempty"`
	Type         WalletTxType    `db:"type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Currency     string          `db:"currency" json:"currency"`
	Reference    string          `db:"reference" json:"reference"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
)

type EscrowTransaction struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	BookingID  uuid.UUID       `db:"booking_id" json:"booking_id"`
	Status     EscrowStatus    `db:"status" json:"status"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	NetAmount  decimal.Decimal `db:"net_amount" json:"net_amount"`
	Currency   string          `db:"currency" json:"currency"`
	HeldAt     time.Time       `db:"held_at" json:"held_at"`
	ReleaseAt  *time.Time      `db:"release_at" json:"release_at,omitempty"`
	ReleasedAt *time.Time      `db:"released_at" json:"released_at,omitempty"`
}

// WalletRepo is the read side of the wallet; writes go through LedgerRepo.
type WalletRepo interface {
	GetWallet(ctx context.Context, clientID uuid.UUID) (*Wallet, error)
	ListWalletTransactions(ctx context.Context, clientID uuid.UUID, offset, limit int) ([]*WalletTransaction, int, error)
	GetEscrowForBooking(ctx context.Context, bookingID uuid.UUID) (*EscrowTransaction, error)
}

func (su *SupabaseRepo) GetWallet(ctx context.Context, clientID uuid.UUID) (*Wallet, error) {
	raw, _, err := su.supabaseClient.From(WalletsTable).
		Select("client_id,balance,total_funded,total_spent,pending_payments,currency,updated_at", "", false).
		Eq("client_id", clientID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return decodeOne[Wallet](raw, "wallet")
}

func (su *SupabaseRepo) ListWalletTransactions(ctx context.Context, clientID uuid.UUID, offset, limit int) ([]*WalletTransaction, int, error) {
	q := su.supabaseClient.From(WalletTransactionsTable).
		Select("*", "exact", false).
		Eq("client_id", clientID.String())
	rows, total, err := listPage[WalletTransaction](q, "created_at", offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return rows, total, nil
}

func (su *SupabaseRepo) GetEscrowForBooking(ctx context.Context, bookingID uuid.UUID) (*EscrowTransaction, error) {
	raw, _, err := su.supabaseClient.From(EscrowTable).
		Select("*", "", false).
		Eq("booking_id", bookingID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	return decodeOne[EscrowTransaction](raw, "escrow")
}
