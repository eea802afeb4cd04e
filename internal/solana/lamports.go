package solana

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of minor units in one SOL.
const LamportsPerSOL = 1_000_000_000

// ErrInvalidAmount reports a non-positive or out-of-range transfer amount.
var ErrInvalidAmount = errors.New("amount must be positive")

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

var maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// ToLamports converts a user-facing SOL amount to integer lamports. The
// conversion truncates toward zero so the transfer can never exceed what the
// caller displayed.
func ToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	lamports := sol.Mul(lamportsPerSOL).Truncate(0)
	if lamports.Sign() <= 0 || lamports.GreaterThan(maxLamports) {
		return 0, ErrInvalidAmount
	}
	return lamports.BigInt().Uint64(), nil
}

// FromLamports converts integer lamports to the SOL display amount.
func FromLamports(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}
