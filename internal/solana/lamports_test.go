package solana

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToLamports_Floors(t *testing.T) {
	cases := []struct {
		sol  string
		want uint64
	}{
		{"1", 1_000_000_000},
		{"0.1", 100_000_000},
		{"0.0999999999", 99_999_999},
		{"0.05", 50_000_000},
		{"0.000000001", 1},
		{"0.0000000019", 1},
		{"2.5", 2_500_000_000},
	}
	for _, tc := range cases {
		sol := decimal.RequireFromString(tc.sol)
		got, err := ToLamports(sol)
		require.NoError(t, err, "convert %s", tc.sol)
		require.Equal(t, tc.want, got, "convert %s", tc.sol)
	}
}

func TestToLamports_Invalid(t *testing.T) {
	for _, raw := range []string{"0", "-1", "-0.25", "0.0000000001"} {
		sol := decimal.RequireFromString(raw)
		if _, err := ToLamports(sol); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("convert %s: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}

func TestFromLamports(t *testing.T) {
	sol := FromLamports(1_234_567_890)
	require.Equal(t, "1.23456789", sol.String())

	roundTrip, err := ToLamports(sol)
	require.NoError(t, err)
	require.Equal(t, uint64(1_234_567_890), roundTrip)
}
