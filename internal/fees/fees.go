// Package fees holds the platform fee tiers and the integer lamport split
// applied when a tip is released.
package fees

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	BpsSmallTip = 700 // below 0.05 SOL
	BpsMidTip   = 300 // 0.05 up to 0.5 SOL
	BpsLargeTip = 100 // 0.5 SOL and above
	MaxBps      = 10000

	lamportsExp = 9
)

var (
	smallTipCeiling = decimal.RequireFromString("0.05")
	midTipCeiling   = decimal.RequireFromString("0.5")
	maxLamports     = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)
)

var (
	ErrNonPositiveAmount  = errors.New("amount must be positive")
	ErrFractionalLamports = errors.New("amount has more precision than one lamport")
	ErrAmountTooLarge     = errors.New("amount exceeds the lamport range")
)

// FeeBps returns the platform fee in basis points for a tip of amountSOL.
// Tier boundaries belong to the cheaper tier.
func FeeBps(amountSOL decimal.Decimal, premium bool) int {
	if premium {
		return 0
	}
	switch {
	case amountSOL.LessThan(smallTipCeiling):
		return BpsSmallTip
	case amountSOL.LessThan(midTipCeiling):
		return BpsMidTip
	default:
		return BpsLargeTip
	}
}

func FeeBpsForLamports(lamports uint64, premium bool) int {
	return FeeBps(LamportsToSOL(lamports), premium)
}

// Tier renders a fee rate the way the pricing page shows it, e.g. "3%".
func Tier(bps int) string {
	return decimal.New(int64(bps), -2).String() + "%"
}

// Split is the result of applying a fee rate to a lamport amount.
type Split struct {
	Fee uint64 `json:"fee"`
	Net uint64 `json:"net"`
}

// SplitLamports floors the fee share so Fee+Net always equals total.
// bps outside [0, MaxBps] is clamped.
func SplitLamports(total uint64, bps int) Split {
	if bps < 0 {
		bps = 0
	}
	if bps > MaxBps {
		bps = MaxBps
	}
	fee := new(big.Int).SetUint64(total)
	fee.Mul(fee, big.NewInt(int64(bps)))
	fee.Quo(fee, big.NewInt(MaxBps))
	f := fee.Uint64()
	return Split{Fee: f, Net: total - f}
}

func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportsExp)
}

// SOLToLamports converts an exact SOL amount. It never rounds.
func SOLToLamports(sol decimal.Decimal) (uint64, error) {
	if !sol.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	l := sol.Shift(lamportsExp)
	if !l.IsInteger() {
		return 0, fmt.Errorf("%w: %s SOL", ErrFractionalLamports, sol.String())
	}
	if l.GreaterThan(maxLamports) {
		return 0, ErrAmountTooLarge
	}
	return l.BigInt().Uint64(), nil
}
