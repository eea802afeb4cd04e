package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// BlockhashLength is the size of a decoded blockhash.
const BlockhashLength = 32

// transferInstruction is the system program instruction index for a native
// transfer.
const transferInstruction = 2

// Blockhash is a decoded recent blockhash used as the transaction freshness
// marker.
type Blockhash struct {
	hash [BlockhashLength]byte
}

// DecodeBlockhash decodes the base58 blockhash returned by the ledger.
func DecodeBlockhash(raw string) (Blockhash, error) {
	decoded := base58.Decode(raw)
	if len(decoded) != BlockhashLength {
		return Blockhash{}, fmt.Errorf("invalid blockhash %q: %d bytes, want %d",
			raw, len(decoded), BlockhashLength)
	}
	var bh Blockhash
	copy(bh.hash[:], decoded)
	return bh, nil
}

// String returns the base58 text form.
func (b Blockhash) String() string {
	return base58.Encode(b.hash[:])
}

// IsZero reports whether the blockhash is unset.
func (b Blockhash) IsZero() bool {
	return b == Blockhash{}
}

// StakeTransaction is a built, unsigned value transfer. It is immutable once
// built; the submitter signs and sends it exactly once.
type StakeTransaction struct {
	From                 Address
	To                   Address
	Lamports             uint64
	RecentBlockhash      Blockhash
	LastValidBlockHeight uint64
}

// BuildTransfer constructs a native transfer of lamports from the session
// wallet to the destination vault. It performs no network calls; the caller
// supplies a blockhash fetched immediately beforehand.
func BuildTransfer(from, to Address, lamports uint64, recentBlockhash Blockhash, lastValidBlockHeight uint64) (*StakeTransaction, error) {
	if lamports == 0 {
		return nil, ErrInvalidAmount
	}
	if from.IsZero() {
		return nil, fmt.Errorf("build transfer: source address is unset")
	}
	if to.IsZero() {
		return nil, fmt.Errorf("build transfer: destination address is unset")
	}
	if recentBlockhash.IsZero() {
		return nil, fmt.Errorf("build transfer: recent blockhash is unset")
	}
	return &StakeTransaction{
		From:                 from,
		To:                   to,
		Lamports:             lamports,
		RecentBlockhash:      recentBlockhash,
		LastValidBlockHeight: lastValidBlockHeight,
	}, nil
}

// Message serializes the legacy transaction message: header, account keys,
// recent blockhash, and the single transfer instruction.
func (tx *StakeTransaction) Message() []byte {
	msg := make([]byte, 0, 3+1+3*AddressLength+BlockhashLength+16)

	// Header: one required signature (the fee payer), no readonly signed
	// accounts, one readonly unsigned account (the system program).
	msg = append(msg, 1, 0, 1)

	// Account keys: fee payer first, then the destination, then the program.
	msg = appendCompactU16(msg, 3)
	msg = append(msg, tx.From.key[:]...)
	msg = append(msg, tx.To.key[:]...)
	msg = append(msg, SystemProgram.key[:]...)

	msg = append(msg, tx.RecentBlockhash.hash[:]...)

	// Instructions.
	msg = appendCompactU16(msg, 1)
	msg = append(msg, 2) // program id index
	msg = appendCompactU16(msg, 2)
	msg = append(msg, 0, 1) // from, to

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], transferInstruction)
	binary.LittleEndian.PutUint64(data[4:12], tx.Lamports)
	msg = appendCompactU16(msg, len(data))
	msg = append(msg, data...)

	return msg
}

// Serialize returns the unsigned wire transaction: a zeroed signature slot
// followed by the message, as expected by the wallet's sign-and-send request.
func (tx *StakeTransaction) Serialize() []byte {
	msg := tx.Message()
	out := make([]byte, 0, 1+64+len(msg))
	out = appendCompactU16(out, 1)
	out = append(out, make([]byte, 64)...)
	out = append(out, msg...)
	return out
}

// appendCompactU16 appends the shortvec encoding used by the transaction
// wire format.
func appendCompactU16(b []byte, v int) []byte {
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
