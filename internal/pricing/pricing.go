package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	PlatformFeeRate = decimal.RequireFromString("0.10")
	VATRate         = decimal.RequireFromString("0.075")

	MinDeposit = decimal.NewFromInt(100)
	MaxDeposit = decimal.NewFromInt(1_000_000)
)

var ErrNegativeAmount = errors.New("amount cannot be negative")

const (
	MethodWallet = "wallet"
	MethodDirect = "direct"

	InsufficientBalanceReason = "insufficient wallet balance"
)

type Breakdown struct {
	Amount           decimal.Decimal `json:"amount"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	VAT              decimal.Decimal `json:"vat"`
	MusicianReceives decimal.Decimal `json:"musician_receives"`
}

func PlatformFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(PlatformFeeRate).Round(2)
}

func VAT(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(VATRate).Round(2)
}

// MusicianReceives is what is left for the musician after the platform fee
// and VAT are both taken from the gross amount.
func MusicianReceives(amount decimal.Decimal) decimal.Decimal {
	return amount.Sub(PlatformFee(amount)).Sub(VAT(amount)).Round(2)
}

func Calculate(amount decimal.Decimal) (Breakdown, error) {
	if amount.IsNegative() {
		return Breakdown{}, ErrNegativeAmount
	}
	return Breakdown{
		Amount:           amount.Round(2),
		PlatformFee:      PlatformFee(amount),
		VAT:              VAT(amount),
		MusicianReceives: MusicianReceives(amount),
	}, nil
}

type Option struct {
	Method  string `json:"method"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

type Options struct {
	Breakdown     Breakdown       `json:"breakdown"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	Options       []Option        `json:"options"`
}

// PaymentOptions offers the wallet only when it covers the whole amount. The
// direct option is always available.
func PaymentOptions(balance, amount decimal.Decimal) (Options, error) {
	b, err := Calculate(amount)
	if err != nil {
		return Options{}, err
	}

	wallet := Option{Method: MethodWallet, Enabled: balance.GreaterThanOrEqual(amount)}
	if !wallet.Enabled {
		wallet.Reason = InsufficientBalanceReason
	}

	return Options{
		Breakdown:     b,
		WalletBalance: balance,
		Options:       []Option{wallet, {Method: MethodDirect, Enabled: true}},
	}, nil
}

func ValidateDeposit(amount decimal.Decimal) error {
	if amount.LessThan(MinDeposit) {
		return fmt.Errorf("minimum deposit is %s", MinDeposit.StringFixed(2))
	}
	if amount.GreaterThan(MaxDeposit) {
		return fmt.Errorf("maximum deposit is %s", MaxDeposit.StringFixed(2))
	}
	return nil
}
