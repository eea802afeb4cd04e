// Package solana provides the wire-level value types for the target ledger:
// canonical addresses, lamport amounts, blockhashes, and the transfer
// transaction encoding submitted through the wallet.
package solana

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// AddressLength is the size of a decoded public key.
const AddressLength = 32

// SystemProgram is the address of the native transfer program.
var SystemProgram = Address{}

// ErrDecodeAddress reports a wire address that is not base58 of a 32-byte
// public key. The authorization protocol pins base58; anything else is a
// protocol violation, never a reason to try another encoding.
var ErrDecodeAddress = errors.New("invalid address encoding")

// Address is the canonical form of a decoded public key. Equality is
// byte-for-byte of the decoded key, not of the original wire string.
type Address struct {
	key [AddressLength]byte
}

// DecodeAddress decodes a base58 wire address into its canonical form.
func DecodeAddress(raw string) (Address, error) {
	if raw == "" {
		return Address{}, fmt.Errorf("%w: empty address", ErrDecodeAddress)
	}
	decoded := base58.Decode(raw)
	if len(decoded) != AddressLength {
		return Address{}, fmt.Errorf("%w: %q decodes to %d bytes, want %d",
			ErrDecodeAddress, raw, len(decoded), AddressLength)
	}
	var addr Address
	copy(addr.key[:], decoded)
	return addr, nil
}

// AddressFromBytes builds an address from a decoded public key.
func AddressFromBytes(key []byte) (Address, error) {
	if len(key) != AddressLength {
		return Address{}, fmt.Errorf("%w: %d bytes, want %d", ErrDecodeAddress, len(key), AddressLength)
	}
	var addr Address
	copy(addr.key[:], key)
	return addr, nil
}

// Bytes returns a copy of the decoded public key.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.key[:])
	return out
}

// String returns the canonical base58 text form.
func (a Address) String() string {
	return base58.Encode(a.key[:])
}

// IsZero reports whether the address is the zero value. The system program
// address is all zero bytes, so callers distinguishing "unset" from it must
// compare against SystemProgram explicitly.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Short returns the abbreviated display form, e.g. "WTCy...ivd8".
func (a Address) Short() string {
	s := a.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}
